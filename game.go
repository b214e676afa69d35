package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MatchLedger receives match history. Implementations must not block.
type MatchLedger interface {
	Track(evtType, roomID string, data interface{})
	RecordMatch(m MatchRecord)
}

// seat tags a connection with its room and player number
type seat struct {
	room   *Room
	player int
}

// Engine dispatches protocol events to rooms. It is not safe for concurrent
// use: the hub loop calls every method.
type Engine struct {
	rooms      *RoomRegistry
	seats      map[Peer]seat
	clock      Clock
	timings    RoomTimings
	newPhysics func() PhysicsEngine
	ledger     MatchLedger
	log        zerolog.Logger
}

// NewEngine creates an Engine. ledger may be nil.
func NewEngine(rooms *RoomRegistry, clock Clock, timings RoomTimings, ledger MatchLedger, logger zerolog.Logger) *Engine {
	return &Engine{
		rooms:      rooms,
		seats:      make(map[Peer]seat),
		clock:      clock,
		timings:    timings,
		newPhysics: func() PhysicsEngine { return NewWorld() },
		ledger:     ledger,
		log:        logger.With().Str("component", "engine").Logger(),
	}
}

// Rooms returns the registry
func (e *Engine) Rooms() *RoomRegistry { return e.rooms }

// RoomOf returns the room and player number peer is seated as
func (e *Engine) RoomOf(peer Peer) (*Room, int) {
	s, ok := e.seats[peer]
	if !ok {
		return nil, 0
	}
	return s.room, s.player
}

// rejections maps validation failures onto the event sent back to the peer.
// Errors not listed are protocol misuse and get no reply.
var rejections = []struct {
	err error
	msg string
}{
	{ErrInvalidPasscode, MsgInvalidPasscode},
	{ErrRoomFull, MsgGameFull},
	{ErrServerFull, MsgServerFull},
	{ErrNotYourTurn, MsgNotYourTurn},
	{ErrInvalidClick, MsgInvalidClick},
	{ErrInvalidActionMode, MsgInvalidActionMode},
	{ErrActionTooSmall, MsgActionTooSmall},
	{ErrShapeCap, MsgDrawingDisabled},
	{ErrDrawingEnded, MsgDrawingDisabled},
}

func (e *Engine) reject(peer Peer, event string, err error) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			peer.SendJSON(Envelope{T: r.msg})
			return
		}
	}
	e.log.Debug().Str("event", event).Err(err).Msg("ignored")
}

// Handle routes one client message
func (e *Engine) Handle(peer Peer, env InEnvelope) {
	var err error
	switch env.T {
	case MsgJoinGame:
		var msg JoinGameMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.join(peer, msg)
		}
	case MsgReady:
		err = e.ready(peer)
	case MsgStartDrawing:
		var msg StartDrawingMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.withSeat(peer, func(r *Room, player int) error {
				return r.beginDrawing(player, msg.DrawingSessionID)
			})
		}
	case MsgDrawing:
		var msg DrawingMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.withSeat(peer, func(r *Room, player int) error {
				return r.extendDrawing(player, msg)
			})
		}
	case MsgEndDrawing:
		err = e.withSeat(peer, func(r *Room, player int) error {
			return r.endDrawing(player)
		})
	case MsgEndDrawingPhase:
		err = e.withSeat(peer, func(r *Room, player int) error {
			return r.endDrawingPhase(player)
		})
	case MsgEraseLastDrawing:
		err = e.withSeat(peer, func(r *Room, player int) error {
			return r.eraseLastDrawing(player)
		})
	case MsgMouseDown:
		var msg MouseMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.withSeat(peer, func(r *Room, player int) error {
				if r.Phase != PhaseGameRunning {
					return ErrWrongPhase
				}
				mode, ok := ParseActionMode(msg.ActionMode)
				if !ok {
					return ErrInvalidActionMode
				}
				return r.mouseDown(peer, player, Point{msg.X, msg.Y}, mode)
			})
		}
	case MsgMouseMove:
		var msg MouseMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.withSeat(peer, func(r *Room, _ int) error {
				return r.mouseMove(peer, Point{msg.X, msg.Y})
			})
		}
	case MsgMouseUp:
		var msg MouseMsg
		if err = decode(env.D, &msg); err == nil {
			err = e.withSeat(peer, func(r *Room, _ int) error {
				return r.mouseUp(peer, Point{msg.X, msg.Y}, false)
			})
		}
	default:
		err = fmt.Errorf("unknown message type %q", env.T)
	}
	if err != nil {
		e.reject(peer, env.T, err)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func (e *Engine) withSeat(peer Peer, fn func(r *Room, player int) error) error {
	r, player := e.RoomOf(peer)
	if r == nil {
		return ErrNotSeated
	}
	return fn(r, player)
}

// join seats peer in a passcode room, or quick-matches it
func (e *Engine) join(peer Peer, msg JoinGameMsg) error {
	if r, _ := e.RoomOf(peer); r != nil {
		return nil
	}

	var (
		r      *Room
		player int
		err    error
	)
	if msg.Passcode != "" {
		code, perr := NormalizePasscode(msg.Passcode)
		if perr != nil {
			return perr
		}
		r = e.rooms.Get(code)
		if r == nil {
			r, err = e.createRoom(code, peer, true)
			player = 1
		} else if r.Phase != PhaseLobby {
			err = ErrRoomFull
		} else {
			player, err = r.seat(peer)
		}
	} else {
		r = e.rooms.FindJoinable()
		if r == nil {
			r, err = e.createRoom(uuid.NewString(), peer, false)
			player = 1
		} else {
			player, err = r.seat(peer)
		}
	}
	if err != nil {
		return err
	}

	e.seats[peer] = seat{room: r, player: player}
	peer.SendJSON(Envelope{T: MsgPlayerInfo, Data: PlayerInfoMsg{
		PlayerNumber:    player,
		RoomID:          r.ID,
		GameWorldWidth:  r.Width,
		GameWorldHeight: r.Height,
	}})
	r.log.Info().Int("player", player).Msg("player joined")
	if r.PlayerCount() == 2 {
		r.broadcast(MsgPreGame, nil)
	}
	return nil
}

func (e *Engine) createRoom(id string, creator Peer, passcode bool) (*Room, error) {
	r := NewRoom(id, creator, passcode, e.clock, e.newPhysics(), e.timings, e.log)
	r.onGameOver = e.finishMatch
	r.onShapeClosed = func(r *Room, shape *Shape) {
		e.track(EvtShapeClosed, r.ID, map[string]interface{}{
			"player":   shape.Owner,
			"segments": len(shape.Segments),
		})
	}
	if err := e.rooms.Add(r); err != nil {
		return nil, err
	}
	e.track(EvtRoomCreated, r.ID, map[string]interface{}{"passcode": passcode})
	return r, nil
}

// ready marks peer ready; both players ready opens the drawing phase
func (e *Engine) ready(peer Peer) error {
	r, player := e.RoomOf(peer)
	if r == nil {
		return ErrNotSeated
	}
	if r.Phase != PhaseLobby || r.PlayerCount() < 2 {
		return ErrWrongPhase
	}
	r.ready[player-1] = true
	if r.ready[0] && r.ready[1] {
		r.startPreGame()
		e.track(EvtMatchStart, r.ID, nil)
	}
	return nil
}

// Disconnect removes peer from its room. Any disconnection of a seated
// player tears the room down.
func (e *Engine) Disconnect(peer Peer) {
	s, ok := e.seats[peer]
	if !ok {
		return
	}
	delete(e.seats, peer)
	r := s.room
	r.clearPending(peer)
	r.players[s.player-1] = nil
	r.log.Info().Int("player", s.player).Str("phase", r.Phase.String()).Msg("player disconnected")
	e.track(EvtDisconnect, r.ID, map[string]interface{}{"player": s.player, "phase": r.Phase.String()})

	r.broadcast(MsgPlayerDisconnected, PlayerDisconnectedMsg{PlayerNumber: s.player})
	e.closeRoom(r)
}

// finishMatch runs after gameOver has been broadcast
func (e *Engine) finishMatch(r *Room, winner int, reason string) {
	rec := MatchRecord{
		RoomID: r.ID,
		Winner: winner,
		Reason: reason,
		Shapes: len(r.allPaths),
	}
	if !r.startedAt.IsZero() {
		rec.Duration = e.clock.Now().Sub(r.startedAt).Seconds()
	}
	if e.ledger != nil {
		e.ledger.RecordMatch(rec)
	}
	e.track(EvtMatchEnd, r.ID, map[string]interface{}{"winner": winner, "reason": reason})
	e.closeRoom(r)
}

// closeRoom stops everything the room owns, removes it from the registry,
// unseats its players and tells them to reset.
func (e *Engine) closeRoom(r *Room) {
	if r.closed {
		return
	}
	r.shutdown()
	e.rooms.Delete(r.ID)
	for _, p := range r.players {
		if p != nil {
			delete(e.seats, p)
		}
	}
	r.broadcast(MsgResetGame, nil)
	r.log.Info().Msg("room closed")
}

// Shutdown closes every room, used on server exit
func (e *Engine) Shutdown() {
	for _, r := range e.rooms.List() {
		e.closeRoom(r)
	}
}

func (e *Engine) track(evt, roomID string, data interface{}) {
	if e.ledger != nil {
		e.ledger.Track(evt, roomID, data)
	}
}
