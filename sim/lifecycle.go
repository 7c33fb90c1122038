package sim

import "github.com/aukilabs/go-tooling/pkg/logs"

// Subscribe registers an active consumer of the model. The first
// subscription starts the model up: its behavior's Setup runs, it joins
// the world's scheduled-update list, and the startup callback fires.
func (m *Model) Subscribe() {
	m.subs++
	m.world.totalSubs++

	if m.subs == 1 {
		m.startup()
	}
}

// Unsubscribe releases one consumer. Dropping the last subscription shuts
// the model down. Unsubscribing a model with no subscriptions is logged
// and ignored; the count never goes negative.
func (m *Model) Unsubscribe() {
	if m.subs == 0 {
		logs.WithTag("model", m.name).Warn("unsubscribe without active subscription")
		return
	}

	m.subs--
	m.world.totalSubs--

	if m.subs == 0 {
		m.shutdown()
	}
}

func (m *Model) startup() {
	if m.behavior != nil {
		m.behavior.Setup(m)
	}
	m.world.startUpdating(m)
	m.notify(PropStartup)
}

func (m *Model) shutdown() {
	if m.behavior != nil {
		m.behavior.Shutdown(m)
	}
	m.world.stopUpdating(m)
	m.notify(PropShutdown)
}

// UpdateIfDue runs Update when at least the model's update interval of
// simulated time has elapsed since the last update.
func (m *Model) UpdateIfDue() {
	if m.world.simTime >= m.lastUpdate+m.interval {
		m.Update()
	}
}

// Update runs the model's behavior, fires the update callback and stamps
// the update time.
func (m *Model) Update() {
	if m.behavior != nil {
		m.behavior.Update(m)
	}

	m.notify(PropUpdate)
	m.lastUpdate = m.world.simTime
}
