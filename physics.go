package main

import (
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

// PhysicsEngine is the capability set the game needs from a 2D rigid-body
// simulation. The combat, drawing and tick code only talk to this interface.
type PhysicsEngine interface {
	Step(dt float64)
	Add(b *Body)
	Remove(id string)
	Body(id string) (*Body, bool)
	ContainsPoint(id string, p Point) bool
	OnCollisionStart(fn func(CollisionPair))
	Clear()
}

// BodyKind labels what a body stands for in the game
type BodyKind int

const (
	KindTank BodyKind = iota
	KindShell
	KindReactor
	KindTurret
	KindFortress
	KindShape
	KindWall
)

// Collision categories
const (
	CatTank uint32 = 1 << iota
	CatShell
	CatReactor
	CatTurret
	CatFortress
	CatShape
	CatWall
)

// categoryMasks decides which kinds collide with which. Shells fly over
// turrets and fortresses.
var categoryMasks = map[BodyKind][2]uint32{
	KindTank:     {CatTank, CatTank | CatShell | CatReactor | CatTurret | CatFortress | CatShape | CatWall},
	KindShell:    {CatShell, CatTank | CatReactor | CatShape | CatWall},
	KindReactor:  {CatReactor, CatTank | CatShell},
	KindTurret:   {CatTurret, CatTank},
	KindFortress: {CatFortress, CatTank},
	KindShape:    {CatShape, CatTank | CatShell},
	KindWall:     {CatWall, CatTank | CatShell},
}

// Body is the game-side view of one simulated object. Velocities are in
// world units per physics step (1/60 s). A body has exactly one collision geometry: a circle
// (Radius), an axis-aligned box (HalfW, HalfH) or a static segment chain
// (Segments, Thickness).
type Body struct {
	ID     string
	Kind   BodyKind
	Static bool
	// Pinned bodies are held in place by a position lock; they collide like
	// static ones until released.
	Pinned bool

	Pos        Point
	Vel        Point
	Angle      float64
	AngularVel float64

	Radius       float64
	HalfW, HalfH float64
	Segments     [][2]Point
	Thickness    float64

	Mass        float64
	FrictionAir float64
	Restitution float64

	Category uint32
	Mask     uint32
}

// NewBody fills in collision filtering for kind
func NewBody(id string, kind BodyKind) *Body {
	m := categoryMasks[kind]
	return &Body{
		ID:       id,
		Kind:     kind,
		Mass:     1,
		Category: m[0],
		Mask:     m[1],
	}
}

// Speed returns the magnitude of the linear velocity
func (b *Body) Speed() float64 {
	return math.Hypot(b.Vel.X, b.Vel.Y)
}

// ApplyImpulse adds an instantaneous velocity change of impulse/mass.
func (b *Body) ApplyImpulse(ix, iy float64) {
	if b.Static {
		return
	}
	m := b.Mass
	if m <= 0 {
		m = 1
	}
	b.Vel.X += ix / m
	b.Vel.Y += iy / m
}

// Pin zeroes all motion and locks the body in place
func (b *Body) Pin() {
	b.Vel = Point{}
	b.AngularVel = 0
	b.Pinned = true
}

// Release removes the position lock
func (b *Body) Release() {
	b.Pinned = false
}

// CollisionPair is reported once when two bodies start touching
type CollisionPair struct {
	A, B  *Body
	Point Point
}

// Other returns the body of the pair that is not b
func (c CollisionPair) Other(b *Body) *Body {
	if c.A == b {
		return c.B
	}
	return c.A
}

// maxSubstepTravel bounds how far the fastest body may move in one substep,
// keeping shells from tunnelling through thin drawn walls.
const (
	maxSubstepTravel = 6.0
	maxSubsteps      = 10
	stepSeconds      = 1.0 / TickRate
)

// bodyCollision is the single chipmunk collision type every shape carries;
// filtering is done with category masks.
const bodyCollision cp.CollisionType = 1

// staticElasticity is used for bodies without their own restitution, so a
// bounce off a wall or shape keeps the mover's restitution.
const staticElasticity = 1.0

type worldEntry struct {
	body   *Body
	cb     *cp.Body
	shapes []*cp.Shape
}

// World is the PhysicsEngine backed by a chipmunk space: no gravity,
// per-body air friction. Game code owns the Body values; World copies them
// into the space before each step and back out afterwards.
type World struct {
	space    *cp.Space
	entries  map[string]*worldEntry
	order    []string
	started  map[[2]string]CollisionPair
	handlers []func(CollisionPair)
}

// NewWorld creates an empty world
func NewWorld() *World {
	w := &World{}
	w.reset()
	return w
}

func (w *World) reset() {
	w.space = cp.NewSpace()
	w.space.SetGravity(cp.Vector{})
	h := w.space.NewCollisionHandler(bodyCollision, bodyCollision)
	h.BeginFunc = w.begin
	w.entries = make(map[string]*worldEntry)
	w.order = nil
	w.started = make(map[[2]string]CollisionPair)
}

func vec(p Point) cp.Vector { return cp.Vector{X: p.X, Y: p.Y} }

func (w *World) Add(b *Body) {
	if _, ok := w.entries[b.ID]; ok {
		w.Remove(b.ID)
	}
	e := &worldEntry{body: b}
	if b.Static {
		e.cb = cp.NewStaticBody()
	} else {
		mass := b.Mass
		if mass <= 0 {
			mass = 1
		}
		e.cb = cp.NewBody(mass, cp.MomentForCircle(mass, 0, math.Max(b.Radius, 1), cp.Vector{}))
		friction := b.FrictionAir
		e.cb.SetVelocityUpdateFunc(func(cb *cp.Body, gravity cp.Vector, _, dt float64) {
			cp.BodyUpdateVelocity(cb, gravity, math.Pow(1-friction, dt/stepSeconds), dt)
		})
	}
	e.cb.SetPosition(vec(b.Pos))
	e.cb.SetAngle(b.Angle)
	e.cb.UserData = b
	w.space.AddBody(e.cb)

	switch {
	case b.Radius > 0:
		e.shapes = append(e.shapes, cp.NewCircle(e.cb, b.Radius, cp.Vector{}))
	case b.HalfW > 0:
		e.shapes = append(e.shapes, cp.NewBox(e.cb, 2*b.HalfW, 2*b.HalfH, 0))
	}
	for _, seg := range b.Segments {
		a := cp.Vector{X: seg[0].X - b.Pos.X, Y: seg[0].Y - b.Pos.Y}
		c := cp.Vector{X: seg[1].X - b.Pos.X, Y: seg[1].Y - b.Pos.Y}
		e.shapes = append(e.shapes, cp.NewSegment(e.cb, a, c, b.Thickness/2))
	}

	elasticity := b.Restitution
	if elasticity <= 0 {
		elasticity = staticElasticity
	}
	for _, shape := range e.shapes {
		if !b.Static {
			shape.SetMass(e.cb.Mass())
		}
		shape.SetElasticity(elasticity)
		shape.SetFriction(0)
		shape.SetCollisionType(bodyCollision)
		shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, uint(b.Category), uint(b.Mask)))
		shape.UserData = b
		w.space.AddShape(shape)
	}
	if b.Pinned {
		e.cb.SetType(cp.BODY_KINEMATIC)
	}

	w.entries[b.ID] = e
	w.order = append(w.order, b.ID)
}

func (w *World) Remove(id string) {
	e, ok := w.entries[id]
	if !ok {
		return
	}
	for _, shape := range e.shapes {
		w.space.RemoveShape(shape)
	}
	w.space.RemoveBody(e.cb)
	delete(w.entries, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *World) Body(id string) (*Body, bool) {
	e, ok := w.entries[id]
	if !ok {
		return nil, false
	}
	return e.body, true
}

func (w *World) OnCollisionStart(fn func(CollisionPair)) {
	w.handlers = append(w.handlers, fn)
}

func (w *World) Clear() {
	w.reset()
}

// Len returns the number of bodies in the world
func (w *World) Len() int { return len(w.entries) }

func (w *World) ContainsPoint(id string, p Point) bool {
	e, ok := w.entries[id]
	if !ok {
		return false
	}
	b := e.body
	switch {
	case b.Radius > 0:
		return b.Pos.Dist(p) <= b.Radius
	case b.HalfW > 0:
		return math.Abs(p.X-b.Pos.X) <= b.HalfW && math.Abs(p.Y-b.Pos.Y) <= b.HalfH
	case len(b.Segments) > 0:
		for _, s := range b.Segments {
			if distToSegment(p, s[0], s[1]) <= b.Thickness/2 {
				return true
			}
		}
	}
	return false
}

// Step advances the simulation by dt seconds. Collision-start handlers run
// after the space has finished stepping, in body id order.
func (w *World) Step(dt float64) {
	scale := dt / stepSeconds

	fastest := 0.0
	for _, id := range w.order {
		e := w.entries[id]
		if !e.body.Static && !e.body.Pinned {
			fastest = math.Max(fastest, e.body.Speed()*scale)
		}
		w.push(e)
	}
	substeps := int(math.Ceil(fastest / maxSubstepTravel))
	if substeps < 1 {
		substeps = 1
	}
	if substeps > maxSubsteps {
		substeps = maxSubsteps
	}

	w.started = make(map[[2]string]CollisionPair)
	for i := 0; i < substeps; i++ {
		w.space.Step(dt / float64(substeps))
	}
	for _, id := range w.order {
		w.pull(w.entries[id])
	}

	keys := make([][2]string, 0, len(w.started))
	for k := range w.started {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		// an earlier handler may have removed one of the bodies
		if _, ok := w.entries[k[0]]; !ok {
			continue
		}
		if _, ok := w.entries[k[1]]; !ok {
			continue
		}
		pair := w.started[k]
		for _, fn := range w.handlers {
			fn(pair)
		}
	}
}

// push copies game-side state into the chipmunk body
func (w *World) push(e *worldEntry) {
	b := e.body
	if b.Static {
		return
	}
	want := cp.BODY_DYNAMIC
	if b.Pinned {
		want = cp.BODY_KINEMATIC
	}
	if e.cb.GetType() != want {
		e.cb.SetType(want)
	}
	if pos := e.cb.Position(); pos.X != b.Pos.X || pos.Y != b.Pos.Y {
		e.cb.SetPosition(vec(b.Pos))
	}
	e.cb.SetVelocity(b.Vel.X/stepSeconds, b.Vel.Y/stepSeconds)
	e.cb.SetAngle(b.Angle)
	e.cb.SetAngularVelocity(b.AngularVel / stepSeconds)
}

// pull copies the simulated state back, converting to units per step
func (w *World) pull(e *worldEntry) {
	b := e.body
	if b.Static {
		return
	}
	pos, vel := e.cb.Position(), e.cb.Velocity()
	b.Pos = Point{pos.X, pos.Y}
	if b.Pinned {
		b.Vel = Point{}
		b.AngularVel = 0
		return
	}
	b.Vel = Point{vel.X * stepSeconds, vel.Y * stepSeconds}
	b.Angle = e.cb.Angle()
	b.AngularVel = e.cb.AngularVelocity() * stepSeconds
}

// begin records the first contact of each pair during a step
func (w *World) begin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	sa, sb := arb.Shapes()
	a, _ := sa.UserData.(*Body)
	b, _ := sb.UserData.(*Body)
	if a == nil || b == nil {
		return true
	}
	if a.ID > b.ID {
		a, b = b, a
	}
	key := [2]string{a.ID, b.ID}
	if _, seen := w.started[key]; seen {
		return true
	}
	at := Point{(a.Pos.X + b.Pos.X) / 2, (a.Pos.Y + b.Pos.Y) / 2}
	if set := arb.ContactPointSet(); set.Count > 0 {
		p := set.Points[0].PointA
		at = Point{p.X, p.Y}
	}
	w.started[key] = CollisionPair{A: a, B: b, Point: at}
	return true
}

func closestOnSegment(p, a, b Point) Point {
	abx, aby := b.X-a.X, b.Y-a.Y
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return a
	}
	t := Clamp(((p.X-a.X)*abx+(p.Y-a.Y)*aby)/l2, 0, 1)
	return Point{a.X + abx*t, a.Y + aby*t}
}

func distToSegment(p, a, b Point) float64 {
	return p.Dist(closestOnSegment(p, a, b))
}
