package sim

import (
	"math/rand"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/grid"
)

const defaultWorldInterval = 100 * time.Millisecond

// World owns the model tree, the shared occupancy grid and the simulated
// clock. A world is not safe for concurrent use; drive it from a single
// goroutine.
type World struct {
	name  string
	runID string

	grid     *grid.Grid
	interval time.Duration
	simTime  time.Duration
	updates  uint64

	rand *rand.Rand

	nextID    int
	models    map[int]*Model
	names     map[string]*Model
	children  []*Model
	totalSubs int

	velocityList []*Model
	updateList   []*Model
}

// NewWorld creates an empty world. resolution is the grid cell size in
// meters, interval the simulated time per Update call. Non-positive values
// select defaults.
func NewWorld(name string, resolution float64, interval time.Duration) *World {
	if interval <= 0 {
		interval = defaultWorldInterval
	}

	return &World{
		name:     name,
		runID:    uuid.NewString(),
		grid:     grid.New(resolution),
		interval: interval,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		models:   make(map[int]*Model),
		names:    make(map[string]*Model),
	}
}

// Name returns the world's name.
func (w *World) Name() string { return w.name }

// RunID returns the unique identifier minted for this world instance.
func (w *World) RunID() string { return w.runID }

// Grid returns the world's shared occupancy index.
func (w *World) Grid() *grid.Grid { return w.grid }

// SimTime returns the simulated time elapsed since the world was created.
func (w *World) SimTime() time.Duration { return w.simTime }

// Updates returns the number of completed world ticks.
func (w *World) Updates() uint64 { return w.updates }

// Interval returns the simulated time one Update advances.
func (w *World) Interval() time.Duration { return w.interval }

// TotalSubscriptions returns the number of active subscriptions across all
// models.
func (w *World) TotalSubscriptions() int { return w.totalSubs }

// Models returns all registered models in creation order.
func (w *World) Models() []*Model {
	ms := make([]*Model, 0, len(w.models))
	for id := 1; id <= w.nextID; id++ {
		if m, ok := w.models[id]; ok {
			ms = append(ms, m)
		}
	}
	return ms
}

// Children returns a copy of the world's root models.
func (w *World) Children() []*Model {
	return append([]*Model(nil), w.children...)
}

// NewModel creates and registers a model. A nil parent makes it a root
// model. The model starts with a unit rectangle body centered on its
// origin, scaled to the default geometry.
func (w *World) NewModel(parent *Model, name string) *Model {
	w.nextID++

	m := &Model{
		world:           w,
		parent:          parent,
		id:              w.nextID,
		name:            name,
		globalPoseDirty: true,
		geometry: Geometry{
			Size: geom.Size{X: 0.1, Y: 0.1, Z: 0.1},
		},
		color:          DefaultColor,
		obstacleReturn: true,
		rangerReturn:   true,
		blobReturn:     true,
		laserReturn:    LaserVisible,
		interval:       defaultUpdateInterval,
	}

	m.AddBlockRect(-0.5, -0.5, 1, 1)
	ScaleBlocks(m.blocks, m.geometry.Size)
	m.Map()

	if parent != nil {
		parent.children = append(parent.children, m)
	} else {
		w.children = append(w.children, m)
	}

	w.models[m.id] = m
	if name != "" {
		w.names[name] = m
	}
	modelsGauge.Inc()

	return m
}

// ModelByID returns the registered model with the given identity, or nil.
func (w *World) ModelByID(id int) *Model {
	m, ok := w.models[id]
	if !ok {
		logs.WithTag("id", id).Warn("model id not registered")
		return nil
	}
	return m
}

// ModelByName returns the registered model with the given name, or nil.
func (w *World) ModelByName(name string) *Model {
	m, ok := w.names[name]
	if !ok {
		logs.WithTag("name", name).Warn("model name not registered")
		return nil
	}
	return m
}

func (w *World) unregister(m *Model) {
	delete(w.models, m.id)
	if m.name != "" && w.names[m.name] == m {
		delete(w.names, m.name)
	}
	modelsGauge.Dec()
}

func (w *World) addToVelocityList(m *Model) {
	w.velocityList = append(w.velocityList, m)
}

func (w *World) removeFromVelocityList(m *Model) {
	w.velocityList = removeModel(w.velocityList, m)
}

func (w *World) startUpdating(m *Model) {
	for _, x := range w.updateList {
		if x == m {
			return
		}
	}
	w.updateList = append(w.updateList, m)
}

func (w *World) stopUpdating(m *Model) {
	w.updateList = removeModel(w.updateList, m)
}

// Start subscribes every model that carries a behavior, bringing the world
// into a running state.
func (w *World) Start() {
	for _, m := range w.Models() {
		if m.behavior != nil {
			m.Subscribe()
		}
	}
}

// Update advances the world by one tick of simulated time: every model
// with a non-zero velocity attempts its move, then every started model
// whose update interval has elapsed runs its behavior.
func (w *World) Update() {
	start := time.Now()

	w.updates++
	w.simTime += w.interval

	// Snapshot both lists: UpdatePose and Update may mutate membership.
	moving := append([]*Model(nil), w.velocityList...)
	for _, m := range moving {
		m.UpdatePose()
	}

	due := append([]*Model(nil), w.updateList...)
	for _, m := range due {
		m.UpdateIfDue()
	}

	tickDuration.Observe(time.Since(start).Seconds())
}

// Raytrace casts a single world-frame ray and returns the first block that
// match accepts on behalf of finder.
func (w *World) Raytrace(origin geom.Pose, maxRange float64, match MatchFunc, finder *Model, ztest bool) (Sample, bool) {
	gs, ok := w.grid.Raytrace(origin, maxRange, func(o grid.Occupant) bool {
		return match(o.(*Block), finder)
	}, ztest)

	if !ok {
		return Sample{Range: gs.Range, X: gs.X, Y: gs.Y}, false
	}
	return Sample{Block: gs.Occupant.(*Block), Range: gs.Range, X: gs.X, Y: gs.Y}, true
}

// RaytraceFan casts count rays spread across fov centered on origin's
// heading and returns one sample per ray in bearing order. Missed rays
// report the maximum range with a nil block.
func (w *World) RaytraceFan(origin geom.Pose, maxRange, fov float64, count int, match MatchFunc, finder *Model, ztest bool) []Sample {
	gss := w.grid.RaytraceFan(origin, maxRange, fov, count, func(o grid.Occupant) bool {
		return match(o.(*Block), finder)
	}, ztest)

	samples := make([]Sample, len(gss))
	for i, gs := range gss {
		samples[i] = Sample{Range: gs.Range, X: gs.X, Y: gs.Y}
		if gs.Occupant != nil {
			samples[i].Block = gs.Occupant.(*Block)
		}
	}
	return samples
}
