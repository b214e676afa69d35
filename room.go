package main

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle stage of a room
type Phase int

const (
	PhaseLobby Phase = iota
	PhasePreGame
	PhaseGameRunning
	PhasePostGame
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "LOBBY"
	case PhasePreGame:
		return "PRE_GAME"
	case PhaseGameRunning:
		return "GAME_RUNNING"
	case PhasePostGame:
		return "POST_GAME"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

const (
	WorldWidth             = 1885.0
	NoDrawZonePaddingRatio = 0.02
)

// WorldHeight keeps the portrait A-series ratio of the client canvas.
var WorldHeight = math.Round(WorldWidth / (1 / 1.4142))

// Peer is a connection bound to a seat. The websocket Client implements it;
// tests use a recorder.
type Peer interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Timings for one room, in seconds
type RoomTimings struct {
	DrawingSeconds int
	TurnSeconds    int
}

// DefaultTimings returns the standard phase durations
func DefaultTimings() RoomTimings {
	return RoomTimings{DrawingSeconds: 120, TurnSeconds: 30}
}

// Room is one isolated match. It is not safe for concurrent use; the hub
// loop owns it.
type Room struct {
	ID        string
	Passcode  bool
	CreatedAt time.Time
	Phase     Phase

	Width        float64
	Height       float64
	DividingLine float64

	players [2]Peer
	ready   [2]bool

	// drawing, indexed by player number
	shapeCount   [3]int
	endedDrawing [3]bool
	sessions     map[int]*DrawingSession
	allPaths     []*Shape
	noDrawZones  []Polygon
	shapeSeq     int

	// combat
	tanks       []*Unit
	reactors    []*Unit
	fortresses  []*Unit
	turrets     []*Unit
	shells      []*Shell
	currentTurn int
	pending     map[Peer]*PendingAction
	timer       *Timer
	startedAt   time.Time

	tick     uint64
	stopTick Cancel

	physics PhysicsEngine
	clock   Clock
	timings RoomTimings
	closed  bool
	log     zerolog.Logger

	// onGameOver is called once after gameOver has been broadcast
	onGameOver func(r *Room, winner int, reason string)
	// onShapeClosed is called for every finalized shape
	onShapeClosed func(r *Room, shape *Shape)
	// coinFlip picks the first player, 1 or 2
	coinFlip func() int
}

// NewRoom creates a room in LOBBY with creator seated as player 1
func NewRoom(id string, creator Peer, passcode bool, clock Clock, physics PhysicsEngine, timings RoomTimings, logger zerolog.Logger) *Room {
	r := &Room{
		ID:           id,
		Passcode:     passcode,
		CreatedAt:    clock.Now(),
		Phase:        PhaseLobby,
		Width:        WorldWidth,
		Height:       WorldHeight,
		DividingLine: WorldHeight / 2,
		sessions:     make(map[int]*DrawingSession),
		pending:      make(map[Peer]*PendingAction),
		physics:      physics,
		clock:        clock,
		timings:      timings,
		log:          logger.With().Str("room", id).Logger(),
		coinFlip:     randomPlayer,
	}
	r.players[0] = creator
	physics.OnCollisionStart(r.handleCollision)
	return r
}

// Player returns the peer in seat n (1 or 2), nil when empty
func (r *Room) Player(n int) Peer {
	if n < 1 || n > 2 {
		return nil
	}
	return r.players[n-1]
}

// PlayerCount returns the number of occupied seats
func (r *Room) PlayerCount() int {
	n := 0
	for _, p := range r.players {
		if p != nil {
			n++
		}
	}
	return n
}

// seat puts peer into the first empty slot and returns its player number
func (r *Room) seat(peer Peer) (int, error) {
	for i, p := range r.players {
		if p == nil {
			r.players[i] = peer
			return i + 1, nil
		}
	}
	return 0, ErrRoomFull
}

// Joinable reports whether a quick-match player can take the open seat
func (r *Room) Joinable() bool {
	return !r.Passcode && r.Phase == PhaseLobby && r.PlayerCount() < 2 && !r.closed
}

// CurrentTurn returns the player whose turn it is, 0 outside combat
func (r *Room) CurrentTurn() int { return r.currentTurn }

// ShapeCount returns how many shapes player has finalized
func (r *Room) ShapeCount(player int) int { return r.shapeCount[player] }

func opponent(player int) int {
	return 3 - player
}

// broadcast sends to every seated peer
func (r *Room) broadcast(t string, data interface{}) {
	msg := Envelope{T: t, Data: data}
	for _, p := range r.players {
		if p != nil {
			p.SendJSON(msg)
		}
	}
}

// broadcastExcept sends to every seated peer but player
func (r *Room) broadcastExcept(player int, t string, data interface{}) {
	msg := Envelope{T: t, Data: data}
	for i, p := range r.players {
		if p != nil && i+1 != player {
			p.SendJSON(msg)
		}
	}
}

func (r *Room) sendTo(player int, t string, data interface{}) {
	if p := r.Player(player); p != nil {
		p.SendJSON(Envelope{T: t, Data: data})
	}
}

// mirror maps a player 1 layout position onto player 2's half
func (r *Room) mirror(p Point) Point {
	return Point{r.Width - p.X, r.Height - p.Y}
}

// placeEntities builds fortresses, reactors, turrets, tanks and world walls
// for both players, and the no-draw zone around each fortress.
func (r *Room) placeEntities() {
	w, h := r.Width, r.Height
	pad := NoDrawZonePaddingRatio * h

	for i, wall := range [][2]Point{
		{{0, 0}, {w, 0}},
		{{w, 0}, {w, h}},
		{{w, h}, {0, h}},
		{{0, h}, {0, 0}},
	} {
		b := NewBody(fmt.Sprintf("wall-%d", i), KindWall)
		b.Static = true
		b.Segments = [][2]Point{wall}
		b.Thickness = 2
		r.physics.Add(b)
	}

	for player := 1; player <= 2; player++ {
		place := func(p Point) Point {
			if player == 2 {
				return r.mirror(p)
			}
			return p
		}
		fc := Point{w / 2, h - fortressBaseRatio*h}
		fortress := newFortress(fmt.Sprintf("fortress-%d", player), player, place(fc))
		r.fortresses = append(r.fortresses, fortress)
		pos := fortress.Pos()
		r.noDrawZones = append(r.noDrawZones, rectPolygon(pos.X, pos.Y, FortressSize, FortressSize, pad))

		reactor := newCircleUnit(fmt.Sprintf("reactor-%d", player), KindReactor, player, place(fc), ReactorSize, ReactorHitPoints)
		r.reactors = append(r.reactors, reactor)

		for i := 0; i < TurretsPerPlayer; i++ {
			dx := -FortressSize / 2
			if i == 1 {
				dx = FortressSize / 2
			}
			tp := Point{fc.X + dx, fc.Y - FortressSize/2}
			turret := newCircleUnit(fmt.Sprintf("turret-%d-%d", player, i), KindTurret, player, place(tp), TurretSize, TurretHitPoints)
			r.turrets = append(r.turrets, turret)
		}

		for i := 0; i < TanksPerPlayer; i++ {
			tp := Point{w * float64(i+1) / float64(TanksPerPlayer+1), h - tankBaseRatio*h}
			tank := newCircleUnit(fmt.Sprintf("tank-%d-%d", player, i), KindTank, player, place(tp), TankSize, TankHitPoints)
			if player == 2 {
				tank.body.Angle = math.Pi
			}
			r.tanks = append(r.tanks, tank)
		}
	}

	for _, set := range [][]*Unit{r.fortresses, r.reactors, r.turrets, r.tanks} {
		for _, u := range set {
			r.physics.Add(u.body)
		}
	}
}

// Snapshot collects the state of every live entity
func (r *Room) Snapshot() WorldState {
	shells := make([]ShellState, 0, len(r.shells))
	for _, s := range r.shells {
		shells = append(shells, s.ToState())
	}
	return WorldState{
		Tanks:      unitStates(r.tanks),
		Reactors:   unitStates(r.reactors),
		Fortresses: unitStates(r.fortresses),
		Turrets:    unitStates(r.turrets),
		Shells:     shells,
		Tick:       r.tick,
	}
}

// shutdown stops every timer and task the room owns and empties the
// physics world. It is safe to call more than once.
func (r *Room) shutdown() {
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.stopTicking()
	for peer, pa := range r.pending {
		pa.cancelTask()
		delete(r.pending, peer)
	}
	r.physics.Clear()
	r.shells = nil
}

// Info summarizes the room for the ops listing
func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:       r.ID,
		Passcode: r.Passcode,
		Phase:    r.Phase.String(),
		Players:  r.PlayerCount(),
	}
}
