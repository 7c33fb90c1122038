package sim

import (
	"math"
	"time"

	"github.com/robosim/stagehand/geom"
)

// Color is a packed ARGB color.
type Color uint32

// DefaultColor is solid red, the color models start with.
const DefaultColor Color = 0xFFFF0000

// LaserReturn describes how a model appears to laser sensors.
type LaserReturn int

const (
	LaserInvisible LaserReturn = iota
	LaserVisible
	LaserBright
)

// Geometry is a model's body placement: the pose of the body's origin
// within the model's frame, and the body's overall size.
type Geometry struct {
	Pose geom.Pose
	Size geom.Size
}

// TrailItem is one pose checkpoint recorded while a model moves.
type TrailItem struct {
	Pose  geom.Pose
	Color Color
	Time  time.Duration
}

// trailCap bounds the trail ring; the oldest checkpoint is evicted first.
const trailCap = 100

// Behavior is the per-variant capability hook. Models that carry a
// behavior run it at startup, on every due update and at shutdown.
type Behavior interface {
	Setup(m *Model)
	Update(m *Model)
	Shutdown(m *Model)
}

const defaultUpdateInterval = 10 * time.Millisecond

// Model is a node in the simulated-entity tree. It owns its blocks and its
// children, holds a local pose relative to its parent, and caches its
// global pose, recomputing it lazily when an ancestor moves.
type Model struct {
	world  *World
	parent *Model

	id   int
	name string

	children []*Model
	blocks   []*Block

	pose            geom.Pose
	globalPose      geom.Pose
	globalPoseDirty bool

	geometry Geometry

	velocity       geom.Velocity
	onVelocityList bool

	color Color
	mass  float64

	obstacleReturn bool
	rangerReturn   bool
	blobReturn     bool
	gripperReturn  bool
	laserReturn    LaserReturn
	fiducialReturn int
	fiducialKey    int

	disabled bool
	stall    bool

	subs       int
	behavior   Behavior
	lastUpdate time.Duration
	interval   time.Duration

	trail []TrailItem

	callbacks map[Property]map[int]Callback
	nextCBID  int
}

// ID returns the model's world-unique identity.
func (m *Model) ID() int { return m.id }

// Name returns the model's lookup name.
func (m *Model) Name() string { return m.name }

// World returns the world the model belongs to.
func (m *Model) World() *World { return m.world }

// Parent returns the model's parent, or nil for a root model.
func (m *Model) Parent() *Model { return m.parent }

// Children returns a copy of the model's child list.
func (m *Model) Children() []*Model {
	return append([]*Model(nil), m.children...)
}

// Blocks returns a copy of the model's block list.
func (m *Model) Blocks() []*Block {
	return append([]*Block(nil), m.blocks...)
}

// Pose returns the model's pose in its parent's frame.
func (m *Model) Pose() geom.Pose { return m.pose }

// Geometry returns the model's body geometry.
func (m *Model) Geometry() Geometry { return m.geometry }

// Velocity returns the model's velocity in its own frame.
func (m *Model) Velocity() geom.Velocity { return m.velocity }

// Color returns the model's color.
func (m *Model) Color() Color { return m.color }

// Mass returns the model's mass in kilograms.
func (m *Model) Mass() float64 { return m.mass }

// Stall reports whether the model's last attempted move was blocked.
func (m *Model) Stall() bool { return m.stall }

// Disabled reports whether pose updates are suspended for the model.
func (m *Model) Disabled() bool { return m.disabled }

// SetDisabled suspends or resumes the model's pose updates.
func (m *Model) SetDisabled(v bool) { m.disabled = v }

func (m *Model) ObstacleReturn() bool     { return m.obstacleReturn }
func (m *Model) RangerReturn() bool       { return m.rangerReturn }
func (m *Model) BlobReturn() bool         { return m.blobReturn }
func (m *Model) GripperReturn() bool      { return m.gripperReturn }
func (m *Model) LaserReturn() LaserReturn { return m.laserReturn }
func (m *Model) FiducialReturn() int      { return m.fiducialReturn }
func (m *Model) FiducialKey() int         { return m.fiducialKey }

// Subscriptions returns the model's active consumer count.
func (m *Model) Subscriptions() int { return m.subs }

// Behavior returns the model's attached behavior, or nil.
func (m *Model) Behavior() Behavior { return m.behavior }

// SetBehavior attaches the model-variant behavior hook. It takes effect on
// the next startup.
func (m *Model) SetBehavior(b Behavior) { m.behavior = b }

// UpdateInterval returns the simulated time between model updates.
func (m *Model) UpdateInterval() time.Duration { return m.interval }

// SetUpdateInterval sets the simulated time between model updates.
func (m *Model) SetUpdateInterval(d time.Duration) { m.interval = d }

// Trail returns a copy of the model's recent pose checkpoints, oldest
// first.
func (m *Model) Trail() []TrailItem {
	return append([]TrailItem(nil), m.trail...)
}

// GlobalPose returns the model's pose in the world frame, recomputed from
// the parent chain when stale. Children sit on top of their parent: the
// parent's body height is added along z.
func (m *Model) GlobalPose() geom.Pose {
	if !m.globalPoseDirty {
		return m.globalPose
	}

	if m.parent != nil {
		m.globalPose = geom.Compose(m.parent.GlobalPose(), m.pose)
		m.globalPose.Z += m.parent.geometry.Size.Z
	} else {
		m.globalPose = m.pose
	}

	m.globalPoseDirty = false
	return m.globalPose
}

// LocalToGlobal expresses a pose given in the model's body frame in world
// coordinates.
func (m *Model) LocalToGlobal(p geom.Pose) geom.Pose {
	return geom.Compose(geom.Compose(m.GlobalPose(), m.geometry.Pose), p)
}

// GlobalToLocal expresses a world pose in the model's body frame. It is
// the exact inverse of LocalToGlobal.
func (m *Model) GlobalToLocal(p geom.Pose) geom.Pose {
	return geom.ToLocal(p, geom.Compose(m.GlobalPose(), m.geometry.Pose))
}

// markGlobalPoseDirty invalidates the cached global pose of the model and
// its whole subtree.
func (m *Model) markGlobalPoseDirty() {
	m.globalPoseDirty = true
	for _, c := range m.children {
		c.markGlobalPoseDirty()
	}
}

// SetPose moves the model within its parent's frame. The model and its
// descendants are unmapped before the mutation and remapped after, so the
// grid never holds stale cells. The pose callback fires exactly once per
// call, whether or not the value changed.
func (m *Model) SetPose(p geom.Pose) {
	if !p.Equal(m.pose) {
		m.UnMapWithChildren()

		p.A = geom.NormalizeAngle(p.A)
		m.pose = p
		m.markGlobalPoseDirty()

		m.MapWithChildren()
	}

	m.notify(PropPose)
}

// SetGlobalPose moves the model to a pose given in world coordinates.
func (m *Model) SetGlobalPose(p geom.Pose) {
	if m.parent == nil {
		m.SetPose(p)
		return
	}

	frame := m.parent.GlobalPose()
	frame.Z += m.parent.geometry.Size.Z
	m.SetPose(geom.ToLocal(p, frame))
}

// AddToPose shifts the model's pose by the given deltas.
func (m *Model) AddToPose(dx, dy, dz, da float64) {
	if dx == 0 && dy == 0 && dz == 0 && da == 0 {
		return
	}

	p := m.pose
	p.X += dx
	p.Y += dy
	p.Z += dz
	p.A += da
	m.SetPose(p)
}

// SetVelocity stores the model's velocity and maintains its membership in
// the world's active velocity set: models enter the set when any component
// becomes non-zero and leave it when all return to zero.
func (m *Model) SetVelocity(v geom.Velocity) {
	m.velocity = v

	if !m.onVelocityList && !v.IsZero() {
		m.world.addToVelocityList(m)
		m.onVelocityList = true
	}
	if m.onVelocityList && v.IsZero() {
		m.world.removeFromVelocityList(m)
		m.onVelocityList = false
	}

	m.notify(PropVelocity)
}

// GlobalVelocity returns the model's velocity rotated into the world frame.
func (m *Model) GlobalVelocity() geom.Velocity {
	a := m.GlobalPose().A
	cosa := math.Cos(a)
	sina := math.Sin(a)

	return geom.Velocity{
		X: m.velocity.X*cosa - m.velocity.Y*sina,
		Y: m.velocity.X*sina + m.velocity.Y*cosa,
		Z: m.velocity.Z,
		A: m.velocity.A,
	}
}

// SetGlobalVelocity sets the model's velocity from a world-frame vector.
func (m *Model) SetGlobalVelocity(v geom.Velocity) {
	a := m.GlobalPose().A
	cosa := math.Cos(a)
	sina := math.Sin(a)

	m.SetVelocity(geom.Velocity{
		X: v.X*cosa + v.Y*sina,
		Y: -v.X*sina + v.Y*cosa,
		Z: v.Z,
		A: v.A,
	})
}

// SetGeometry replaces the model's body geometry, rescaling its blocks to
// the new size. Blocks are unmapped during the mutation.
func (m *Model) SetGeometry(g Geometry) {
	m.markGlobalPoseDirty()

	m.UnMap()
	m.geometry = g
	ScaleBlocks(m.blocks, g.Size)
	m.Map()

	m.notify(PropGeometry)
}

// SetColor sets the model's color.
func (m *Model) SetColor(c Color) {
	m.color = c
	m.notify(PropColor)
}

// SetMass sets the model's mass.
func (m *Model) SetMass(kg float64) {
	m.mass = kg
	m.notify(PropMass)
}

// SetStall records whether the model's last move was blocked.
func (m *Model) SetStall(v bool) {
	if v && !m.stall {
		stallCounter.Inc()
	}
	m.stall = v
	m.notify(PropStall)
}

func (m *Model) SetObstacleReturn(v bool) {
	m.obstacleReturn = v
	m.notify(PropObstacleReturn)
}

func (m *Model) SetRangerReturn(v bool) {
	m.rangerReturn = v
	m.notify(PropRangerReturn)
}

func (m *Model) SetBlobReturn(v bool) {
	m.blobReturn = v
	m.notify(PropBlobReturn)
}

func (m *Model) SetGripperReturn(v bool) {
	m.gripperReturn = v
	m.notify(PropGripperReturn)
}

func (m *Model) SetLaserReturn(v LaserReturn) {
	m.laserReturn = v
	m.notify(PropLaserReturn)
}

func (m *Model) SetFiducialReturn(v int) {
	m.fiducialReturn = v
	m.notify(PropFiducialReturn)
}

func (m *Model) SetFiducialKey(v int) {
	m.fiducialKey = v
	m.notify(PropFiducialKey)
}

// SetParent moves the model under a new parent (nil makes it a root). The
// subtree's cached global poses are invalidated.
func (m *Model) SetParent(parent *Model) {
	m.UnMapWithChildren()
	m.detach()

	m.parent = parent
	if parent != nil {
		parent.children = append(parent.children, m)
	} else {
		m.world.children = append(m.world.children, m)
	}

	m.markGlobalPoseDirty()
	m.MapWithChildren()

	m.notify(PropParent)
}

// detach removes the model from its parent's (or the world's) child list.
func (m *Model) detach() {
	if m.parent != nil {
		m.parent.children = removeModel(m.parent.children, m)
	} else {
		m.world.children = removeModel(m.world.children, m)
	}
}

// AddBlock appends a polygon block to the model's body. The point slice is
// copied; the caller keeps ownership of its buffer.
func (m *Model) AddBlock(pts []geom.Point, zMin, zMax float64, color Color, inheritColor bool) *Block {
	b := newBlock(m, pts, zMin, zMax, color, inheritColor)
	m.blocks = append(m.blocks, b)
	return b
}

// AddBlockRect appends an axis-aligned rectangular block with unit height.
func (m *Model) AddBlockRect(x, y, width, height float64) *Block {
	pts := []geom.Point{
		{X: x, Y: y},
		{X: x + width, Y: y},
		{X: x + width, Y: y + height},
		{X: x, Y: y + height},
	}
	return m.AddBlock(pts, 0, 1, 0, true)
}

// ClearBlocks unmaps and discards the model's body.
func (m *Model) ClearBlocks() {
	for _, b := range m.blocks {
		b.UnMap()
	}
	m.blocks = nil
}

// Map renders all the model's blocks into the grid.
func (m *Model) Map() {
	for _, b := range m.blocks {
		b.Map()
	}
}

// UnMap removes all the model's blocks from the grid.
func (m *Model) UnMap() {
	for _, b := range m.blocks {
		b.UnMap()
	}
}

// MapWithChildren maps the model and its whole subtree.
func (m *Model) MapWithChildren() {
	m.Map()
	for _, c := range m.children {
		c.MapWithChildren()
	}
}

// UnMapWithChildren unmaps the model and its whole subtree.
func (m *Model) UnMapWithChildren() {
	m.UnMap()
	for _, c := range m.children {
		c.UnMapWithChildren()
	}
}

// IsAntecedent reports whether x is this model or one of its ancestors.
func (m *Model) IsAntecedent(x *Model) bool {
	for a := m; a != nil; a = a.parent {
		if a == x {
			return true
		}
	}
	return false
}

// IsDescendent reports whether x is this model or in its subtree.
func (m *Model) IsDescendent(x *Model) bool {
	if m == x {
		return true
	}
	for _, c := range m.children {
		if c.IsDescendent(x) {
			return true
		}
	}
	return false
}

// IsRelated reports whether both models share the same root.
func (m *Model) IsRelated(x *Model) bool {
	if m == x {
		return true
	}

	root := m
	for root.parent != nil {
		root = root.parent
	}
	return root.IsDescendent(x)
}

// appendTrail records a pose checkpoint, evicting the oldest one once the
// trail holds trailCap entries.
func (m *Model) appendTrail() {
	if len(m.trail) >= trailCap {
		copy(m.trail, m.trail[1:])
		m.trail = m.trail[:trailCap-1]
	}

	m.trail = append(m.trail, TrailItem{
		Pose:  m.pose,
		Color: m.color,
		Time:  m.world.simTime,
	})
}

// Destroy unmaps the model, destroys its children, and removes it from its
// parent and the world registries.
func (m *Model) Destroy() {
	for len(m.children) > 0 {
		m.children[len(m.children)-1].Destroy()
	}

	m.UnMap()

	if m.onVelocityList {
		m.world.removeFromVelocityList(m)
		m.onVelocityList = false
	}
	m.world.stopUpdating(m)

	m.detach()
	m.world.unregister(m)
}

func removeModel(list []*Model, m *Model) []*Model {
	for i, x := range list {
		if x == m {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
