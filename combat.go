package main

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

const (
	MaxHoldDuration = 450 * time.Millisecond
	MinHoldDuration = 100 * time.Millisecond
	MinDragDistance = 10.0
	MinActionForce  = 4.0
	MaxActionForce  = 24.0
	MinShellSpeed   = 7.5 // units per step
	TankImpulse     = 1.0 // velocity change per unit of force, scaled by mass
	ShellSpeedScale = 1.25
	shellSpawnGap   = 1.0
)

// ActionMode is what a click-and-hold does with the selected unit
type ActionMode int

const (
	ActionMove ActionMode = iota + 1
	ActionShoot
)

// ParseActionMode maps the wire name onto an ActionMode
func ParseActionMode(s string) (ActionMode, bool) {
	switch s {
	case "move":
		return ActionMove, true
	case "shoot":
		return ActionShoot, true
	}
	return 0, false
}

func (m ActionMode) String() string {
	switch m {
	case ActionMove:
		return "move"
	case ActionShoot:
		return "shoot"
	}
	return "unknown"
}

// PendingAction is a held click awaiting release. It owns the task that
// forces the release when the client never sends mouseUp.
type PendingAction struct {
	Player   int
	Start    time.Time
	StartPos Point
	EndPos   Point
	HasEnd   bool
	UnitID   string
	Mode     ActionMode
	cancel   Cancel
}

func (pa *PendingAction) cancelTask() {
	if pa.cancel != nil {
		pa.cancel()
		pa.cancel = nil
	}
}

func (pa *PendingAction) lastPos() Point {
	if pa.HasEnd {
		return pa.EndPos
	}
	return pa.StartPos
}

// Pending returns the pending action held by peer, if any
func (r *Room) Pending(peer Peer) *PendingAction {
	return r.pending[peer]
}

func randomPlayer() int {
	return rand.IntN(2) + 1
}

// clampHold bounds a hold time to [MinHoldDuration, MaxHoldDuration]
func clampHold(d time.Duration) time.Duration {
	if d < MinHoldDuration {
		return MinHoldDuration
	}
	if d > MaxHoldDuration {
		return MaxHoldDuration
	}
	return d
}

// forceFor maps a clamped hold time linearly onto [MinActionForce, MaxActionForce].
func forceFor(d time.Duration) float64 {
	d = clampHold(d)
	t := float64(d-MinHoldDuration) / float64(MaxHoldDuration-MinHoldDuration)
	return Lerp(MinActionForce, MaxActionForce, t)
}

// unitAt returns the first of player's units eligible for mode under p
func (r *Room) unitAt(player int, mode ActionMode, p Point) *Unit {
	var candidates []*Unit
	switch mode {
	case ActionMove:
		candidates = r.tanks
	case ActionShoot:
		candidates = append(append(candidates, r.tanks...), r.turrets...)
	}
	for _, u := range candidates {
		if u.Owner == player && r.physics.ContainsPoint(u.ID, p) {
			return u
		}
	}
	return nil
}

// mouseDown starts a move or shoot action on one of player's units
func (r *Room) mouseDown(peer Peer, player int, p Point, mode ActionMode) error {
	if r.Phase != PhaseGameRunning {
		return ErrWrongPhase
	}
	if r.currentTurn != player {
		return ErrNotYourTurn
	}
	if !r.inBounds(p) {
		return ErrOutOfBounds
	}
	if r.pending[peer] != nil {
		return ErrActionPending
	}
	u := r.unitAt(player, mode, p)
	if u == nil {
		return ErrInvalidClick
	}

	pa := &PendingAction{
		Player:   player,
		Start:    r.clock.Now(),
		StartPos: p,
		UnitID:   u.ID,
		Mode:     mode,
	}
	pa.cancel = r.clock.AfterFunc(MaxHoldDuration, func() { r.forceRelease(peer, pa) })
	r.pending[peer] = pa
	peer.SendJSON(Envelope{T: MsgValidClick, Data: ValidClickMsg{UnitID: u.ID, ActionMode: mode.String()}})
	return nil
}

// mouseMove tracks the drag end while an action is held
func (r *Room) mouseMove(peer Peer, p Point) error {
	pa := r.pending[peer]
	if pa == nil {
		return ErrNoPending
	}
	if !r.inBounds(p) {
		return ErrOutOfBounds
	}
	pa.EndPos = p
	pa.HasEnd = true
	return nil
}

func (r *Room) forceRelease(peer Peer, pa *PendingAction) {
	if r.closed || r.pending[peer] != pa {
		return
	}
	if err := r.mouseUp(peer, pa.lastPos(), true); errors.Is(err, ErrActionTooSmall) {
		peer.SendJSON(Envelope{T: MsgActionTooSmall})
	}
}

// mouseUp commits the held action. A forced release uses the full hold
// time and the last known drag position.
func (r *Room) mouseUp(peer Peer, p Point, forced bool) error {
	pa := r.pending[peer]
	if pa == nil {
		return ErrNoPending
	}
	// out-of-world releases are dropped; the hold timer still fires
	if !forced && !r.inBounds(p) {
		return ErrOutOfBounds
	}
	r.clearPending(peer)
	if r.Phase != PhaseGameRunning {
		return ErrWrongPhase
	}

	var hold time.Duration
	end := p
	if forced {
		hold = MaxHoldDuration
		end = pa.lastPos()
	} else {
		hold = clampHold(r.clock.Now().Sub(pa.Start))
	}

	if pa.StartPos.Dist(end) < MinDragDistance {
		return ErrActionTooSmall
	}
	force := forceFor(hold)
	// launch against the drag: pull back, release forward
	dir, ok := Point{pa.StartPos.X - end.X, pa.StartPos.Y - end.Y}.unit()
	if !ok {
		return ErrActionTooSmall
	}

	switch pa.Mode {
	case ActionMove:
		tank := findUnit(r.tanks, pa.UnitID)
		if tank == nil {
			return ErrInvalidClick
		}
		r.launchTank(tank, dir, force)
	case ActionShoot:
		u := findUnit(r.tanks, pa.UnitID)
		if u == nil {
			u = findUnit(r.turrets, pa.UnitID)
		}
		if u == nil {
			return ErrInvalidClick
		}
		r.fireShell(u, dir, force)
	}

	if forced {
		peer.SendJSON(Envelope{T: MsgPowerCapped, Data: PowerCappedMsg{Duration: hold.Milliseconds()}})
	}
	r.switchTurn()
	return nil
}

func (r *Room) launchTank(tank *Unit, dir Point, force float64) {
	dir, ok := dir.unit()
	if !ok {
		return
	}
	b := tank.body
	b.Release()
	b.ApplyImpulse(dir.X*force*TankImpulse, dir.Y*force*TankImpulse)
	b.Angle = math.Atan2(dir.Y, dir.X)
	tank.Active = true
	tank.addTrack(b.Pos)
}

// fireShell spawns a shell just clear of the firing unit, travelling along
// dir. It returns nil when dir has no usable direction.
func (r *Room) fireShell(from *Unit, dir Point, force float64) *Shell {
	dir, ok := dir.unit()
	if !ok {
		return nil
	}
	offset := from.Size/2 + ShellSize/2 + shellSpawnGap
	origin := from.Pos()
	pos := Point{origin.X + dir.X*offset, origin.Y + dir.Y*offset}
	vel := Point{dir.X * force * ShellSpeedScale, dir.Y * force * ShellSpeedScale}
	if speed := math.Hypot(vel.X, vel.Y); speed < MinShellSpeed {
		vel = Point{dir.X * MinShellSpeed, dir.Y * MinShellSpeed}
	}
	s := newShell(from.Owner, pos, vel)
	r.shells = append(r.shells, s)
	r.physics.Add(s.body)
	return s
}

func (r *Room) clearPending(peer Peer) {
	if pa := r.pending[peer]; pa != nil {
		pa.cancelTask()
		delete(r.pending, peer)
	}
}

// switchTurn hands the turn to the other player and restarts the turn timer
func (r *Room) switchTurn() {
	if r.Phase != PhaseGameRunning {
		return
	}
	r.currentTurn = opponent(r.currentTurn)
	r.broadcast(MsgTurnChanged, TurnChangedMsg{CurrentTurn: r.currentTurn})
	if r.timer != nil {
		r.timer.Start()
	}
}

// turnTimeUp passes the turn without an action
func (r *Room) turnTimeUp() {
	if r.closed || r.Phase != PhaseGameRunning {
		return
	}
	for peer, pa := range r.pending {
		if pa.Player == r.currentTurn {
			r.clearPending(peer)
		}
	}
	r.switchTurn()
}
