package main

const (
	TankSize          = 60.0
	TankHitPoints     = 2
	TankFrictionAir   = 0.06
	TankRestitution   = 0.3
	TurretSize        = 44.0
	TurretHitPoints   = 1
	ReactorSize       = 70.0
	ReactorHitPoints  = 1
	FortressSize      = 180.0
	ShellSize         = 16.0
	ShellFrictionAir  = 0.012
	ShellRestitution  = 0.6
	MaxTrackPoints    = 20
	TanksPerPlayer    = 3
	TurretsPerPlayer  = 2
	fortressBaseRatio = 0.1 // fortress distance from a player's baseline, of world height
	tankBaseRatio     = 0.3
)

// Unit is a tank, turret, reactor or fortress. Position and angle live in
// the physics body; the unit carries the game-side state.
type Unit struct {
	ID        string
	Kind      BodyKind
	Owner     int
	Size      float64
	HitPoints int
	body      *Body

	// tanks only
	Active bool // launched and not yet settled
	Tracks []Point
}

// Pos returns the unit's current position
func (u *Unit) Pos() Point {
	return u.body.Pos
}

// addTrack records a trail sample, dropping the oldest past MaxTrackPoints
func (u *Unit) addTrack(p Point) {
	u.Tracks = append(u.Tracks, p)
	if len(u.Tracks) > MaxTrackPoints {
		u.Tracks = u.Tracks[len(u.Tracks)-MaxTrackPoints:]
	}
}

// ToState converts to protocol state
func (u *Unit) ToState() UnitState {
	s := UnitState{
		ID:        u.ID,
		Owner:     u.Owner,
		X:         round1(u.body.Pos.X),
		Y:         round1(u.body.Pos.Y),
		Angle:     round1(u.body.Angle),
		Size:      u.Size,
		HitPoints: u.HitPoints,
	}
	if len(u.Tracks) > 0 {
		s.Tracks = append([]Point(nil), u.Tracks...)
	}
	return s
}

// Shell is a projectile in flight
type Shell struct {
	ID    string
	Owner int
	Size  float64
	body  *Body
}

// ToState converts to protocol state
func (s *Shell) ToState() ShellState {
	return ShellState{
		ID:    s.ID,
		Owner: s.Owner,
		X:     round1(s.body.Pos.X),
		Y:     round1(s.body.Pos.Y),
		VX:    round1(s.body.Vel.X),
		VY:    round1(s.body.Vel.Y),
		Size:  s.Size,
	}
}

func newCircleUnit(id string, kind BodyKind, owner int, pos Point, size float64, hp int) *Unit {
	b := NewBody(id, kind)
	b.Pos = pos
	b.Radius = size / 2
	switch kind {
	case KindTank:
		b.FrictionAir = TankFrictionAir
		b.Restitution = TankRestitution
		b.Mass = 1
		b.Pin()
	default:
		b.Static = true
	}
	return &Unit{ID: id, Kind: kind, Owner: owner, Size: size, HitPoints: hp, body: b}
}

func newFortress(id string, owner int, pos Point) *Unit {
	b := NewBody(id, KindFortress)
	b.Pos = pos
	b.Static = true
	b.HalfW, b.HalfH = FortressSize/2, FortressSize/2
	return &Unit{ID: id, Kind: KindFortress, Owner: owner, Size: FortressSize, body: b}
}

func newShell(owner int, pos, vel Point) *Shell {
	id := "shell-" + GenerateID(4)
	b := NewBody(id, KindShell)
	b.Pos = pos
	b.Vel = vel
	b.Radius = ShellSize / 2
	b.Mass = 0.2
	b.FrictionAir = ShellFrictionAir
	b.Restitution = ShellRestitution
	return &Shell{ID: id, Owner: owner, Size: ShellSize, body: b}
}

func unitStates(units []*Unit) []UnitState {
	out := make([]UnitState, 0, len(units))
	for _, u := range units {
		out = append(out, u.ToState())
	}
	return out
}

func removeUnit(units []*Unit, id string) ([]*Unit, *Unit) {
	for i, u := range units {
		if u.ID == id {
			return append(units[:i], units[i+1:]...), u
		}
	}
	return units, nil
}

func findUnit(units []*Unit, id string) *Unit {
	for _, u := range units {
		if u.ID == id {
			return u
		}
	}
	return nil
}
