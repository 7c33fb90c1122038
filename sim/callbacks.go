package sim

// Property identifies a model field for callback registration. Every
// mutating setter stores the new value, performs its side effects, then
// notifies the property's callbacks exactly once.
type Property int

const (
	PropPose Property = iota
	PropGeometry
	PropColor
	PropMass
	PropVelocity
	PropStall
	PropParent
	PropObstacleReturn
	PropRangerReturn
	PropBlobReturn
	PropGripperReturn
	PropLaserReturn
	PropFiducialReturn
	PropFiducialKey
	PropStartup
	PropShutdown
	PropUpdate
)

// Callback observes a model mutation or lifecycle event.
type Callback func(m *Model)

// AddCallback registers cb for the given property and returns a handle for
// removal.
func (m *Model) AddCallback(p Property, cb Callback) int {
	if m.callbacks == nil {
		m.callbacks = make(map[Property]map[int]Callback)
	}
	if m.callbacks[p] == nil {
		m.callbacks[p] = make(map[int]Callback)
	}

	m.nextCBID++
	m.callbacks[p][m.nextCBID] = cb
	return m.nextCBID
}

// RemoveCallback unregisters a callback previously added with AddCallback.
func (m *Model) RemoveCallback(p Property, id int) {
	delete(m.callbacks[p], id)
}

func (m *Model) notify(p Property) {
	for _, cb := range m.callbacks[p] {
		cb(m)
	}
}
