package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- helpers ----------

// fakeClock runs scheduled callbacks synchronously inside Advance
type fakeClock struct {
	now          time.Time
	seq          int
	tasks        []*fakeTask
	ignoreCancel bool // emulate a callback that was already queued when cancelled
}

type fakeTask struct {
	at    time.Time
	every time.Duration
	fn    func()
	seq   int
	dead  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) schedule(d, every time.Duration, fn func()) Cancel {
	c.seq++
	task := &fakeTask{at: c.now.Add(d), every: every, fn: fn, seq: c.seq}
	c.tasks = append(c.tasks, task)
	return func() {
		if !c.ignoreCancel {
			task.dead = true
		}
	}
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Cancel {
	return c.schedule(d, 0, fn)
}

func (c *fakeClock) Every(d time.Duration, fn func()) Cancel {
	return c.schedule(d, d, fn)
}

// Advance moves time forward, running every due callback in time order
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var next *fakeTask
		for _, task := range c.tasks {
			if task.dead || task.at.After(target) {
				continue
			}
			if next == nil || task.at.Before(next.at) || (task.at.Equal(next.at) && task.seq < next.seq) {
				next = task
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			next.dead = true
		}
		next.fn()
	}
	c.now = target
	live := c.tasks[:0]
	for _, task := range c.tasks {
		if !task.dead {
			live = append(live, task)
		}
	}
	c.tasks = live
}

// recPeer records everything sent to it
type recPeer struct {
	msgs   []Envelope
	binary [][]byte
}

func (p *recPeer) SendJSON(msg interface{}) {
	if env, ok := msg.(Envelope); ok {
		p.msgs = append(p.msgs, env)
	}
}

func (p *recPeer) SendBinary(data []byte) {
	p.binary = append(p.binary, data)
}

func (p *recPeer) count(t string) int {
	n := 0
	for _, m := range p.msgs {
		if m.T == t {
			n++
		}
	}
	return n
}

func (p *recPeer) last(t string) (Envelope, bool) {
	for i := len(p.msgs) - 1; i >= 0; i-- {
		if p.msgs[i].T == t {
			return p.msgs[i], true
		}
	}
	return Envelope{}, false
}

func (p *recPeer) reset() {
	p.msgs = nil
	p.binary = nil
}

// recLedger records analytics events and match results
type recLedger struct {
	events  []string
	matches []MatchRecord
}

func (l *recLedger) Track(evtType, roomID string, data interface{}) {
	l.events = append(l.events, evtType)
}

func (l *recLedger) RecordMatch(m MatchRecord) {
	l.matches = append(l.matches, m)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *recLedger) {
	t.Helper()
	clock := newFakeClock()
	ledger := &recLedger{}
	e := NewEngine(NewRoomRegistry(10), clock, DefaultTimings(), ledger, zerolog.Nop())
	return e, clock, ledger
}

func inEnv(t *testing.T, typ string, data interface{}) InEnvelope {
	t.Helper()
	env := InEnvelope{T: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.D = raw
	}
	return env
}

// joinPair seats two peers in a passcode room
func joinPair(t *testing.T, e *Engine) (*Room, *recPeer, *recPeer) {
	t.Helper()
	p1, p2 := &recPeer{}, &recPeer{}
	e.Handle(p1, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	e.Handle(p2, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	r, _ := e.RoomOf(p1)
	require.NotNil(t, r)
	return r, p1, p2
}

// startDrawing seats two peers and readies both
func startDrawing(t *testing.T, e *Engine) (*Room, *recPeer, *recPeer) {
	t.Helper()
	r, p1, p2 := joinPair(t, e)
	e.Handle(p1, inEnv(t, MsgReady, nil))
	e.Handle(p2, inEnv(t, MsgReady, nil))
	require.Equal(t, PhasePreGame, r.Phase)
	return r, p1, p2
}

// startCombat skips drawing and gives player 1 the first turn
func startCombat(t *testing.T, e *Engine) (*Room, *recPeer, *recPeer) {
	t.Helper()
	r, p1, p2 := startDrawing(t, e)
	r.coinFlip = func() int { return 1 }
	e.Handle(p1, inEnv(t, MsgEndDrawingPhase, nil))
	e.Handle(p2, inEnv(t, MsgEndDrawingPhase, nil))
	require.Equal(t, PhaseGameRunning, r.Phase)
	require.Equal(t, 1, r.CurrentTurn())
	p1.reset()
	p2.reset()
	return r, p1, p2
}

// ---------- tests ----------

func TestJoinPasscodeSeatsTwoPlayers(t *testing.T) {
	e, _, ledger := newTestEngine(t)
	r, p1, p2 := joinPair(t, e)

	info1, ok := p1.last(MsgPlayerInfo)
	require.True(t, ok)
	info2, ok := p2.last(MsgPlayerInfo)
	require.True(t, ok)
	assert.Equal(t, 1, info1.Data.(PlayerInfoMsg).PlayerNumber)
	assert.Equal(t, 2, info2.Data.(PlayerInfoMsg).PlayerNumber)
	assert.Equal(t, "ABC123", info2.Data.(PlayerInfoMsg).RoomID)
	assert.Equal(t, WorldWidth, info1.Data.(PlayerInfoMsg).GameWorldWidth)
	assert.Equal(t, 2666.0, info1.Data.(PlayerInfoMsg).GameWorldHeight)

	assert.Equal(t, 1, p1.count(MsgPreGame))
	assert.Equal(t, 1, p2.count(MsgPreGame))
	assert.Equal(t, PhaseLobby, r.Phase)
	assert.Equal(t, []string{EvtRoomCreated}, ledger.events)
}

func TestJoinPasscodeThirdPlayerGetsGameFull(t *testing.T) {
	e, _, _ := newTestEngine(t)
	joinPair(t, e)

	p3 := &recPeer{}
	e.Handle(p3, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	assert.Equal(t, 1, p3.count(MsgGameFull))
	r, _ := e.RoomOf(p3)
	assert.Nil(t, r)
}

func TestJoinInvalidPasscode(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for _, code := range []string{"abc", "ABC12!", "ABCDEFG"} {
		p := &recPeer{}
		e.Handle(p, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: code}))
		assert.Equal(t, 1, p.count(MsgInvalidPasscode), code)
	}
	assert.Equal(t, 0, e.Rooms().Len())
}

func TestJoinFullWidthPasscodeMatchesASCII(t *testing.T) {
	e, _, _ := newTestEngine(t)
	p1, p2 := &recPeer{}, &recPeer{}
	e.Handle(p1, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	e.Handle(p2, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ＡＢＣ１２３"}))
	r1, _ := e.RoomOf(p1)
	r2, n := e.RoomOf(p2)
	assert.Same(t, r1, r2)
	assert.Equal(t, 2, n)
}

func TestQuickMatchPairsAndSkipsPasscodeRooms(t *testing.T) {
	e, _, _ := newTestEngine(t)
	host := &recPeer{}
	e.Handle(host, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "PRIV01"}))

	a, b := &recPeer{}, &recPeer{}
	e.Handle(a, inEnv(t, MsgJoinGame, JoinGameMsg{}))
	e.Handle(b, inEnv(t, MsgJoinGame, JoinGameMsg{}))

	ra, na := e.RoomOf(a)
	rb, nb := e.RoomOf(b)
	require.NotNil(t, ra)
	assert.Same(t, ra, rb)
	assert.NotEqual(t, "PRIV01", ra.ID)
	assert.Equal(t, 1, na)
	assert.Equal(t, 2, nb)
	assert.Equal(t, 2, e.Rooms().Len())
}

func TestJoinServerFull(t *testing.T) {
	clock := newFakeClock()
	e := NewEngine(NewRoomRegistry(1), clock, DefaultTimings(), nil, zerolog.Nop())
	e.Handle(&recPeer{}, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ROOM01"}))

	p := &recPeer{}
	e.Handle(p, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ROOM02"}))
	assert.Equal(t, 1, p.count(MsgServerFull))
}

func TestReadyBothStartsPreGame(t *testing.T) {
	e, _, ledger := newTestEngine(t)
	r, p1, p2 := joinPair(t, e)

	e.Handle(p1, inEnv(t, MsgReady, nil))
	assert.Equal(t, PhaseLobby, r.Phase)
	e.Handle(p2, inEnv(t, MsgReady, nil))
	assert.Equal(t, PhasePreGame, r.Phase)

	env, ok := p2.last(MsgStartPreGame)
	require.True(t, ok)
	msg := env.Data.(StartPreGameMsg)
	assert.Equal(t, 1333.0, msg.DividingLine)
	assert.Len(t, msg.NoDrawZones, 2)
	assert.Len(t, msg.State.Tanks, 2*TanksPerPlayer)
	assert.Len(t, msg.State.Reactors, 2)
	assert.Contains(t, ledger.events, EvtMatchStart)

	timer, ok := p1.last(MsgUpdateTimer)
	require.True(t, ok)
	assert.Equal(t, UpdateTimerMsg{Phase: "drawing", TimeLeft: 120}, timer.Data)
}

func TestLayoutIsMirrored(t *testing.T) {
	e, _, _ := newTestEngine(t)
	r, _, _ := startDrawing(t, e)

	for _, set := range [][]*Unit{r.tanks, r.reactors, r.turrets, r.fortresses} {
		for _, u := range set {
			if u.Owner == 1 {
				assert.Greater(t, u.Pos().Y, r.DividingLine, u.ID)
			} else {
				assert.Less(t, u.Pos().Y, r.DividingLine, u.ID)
			}
		}
	}
	r1, r2 := r.reactors[0].Pos(), r.reactors[1].Pos()
	assert.InDelta(t, r.Width-r1.X, r2.X, 1e-9)
	assert.InDelta(t, r.Height-r1.Y, r2.Y, 1e-9)
}

func TestUnseatedEventsAreIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t)
	p := &recPeer{}
	e.Handle(p, inEnv(t, MsgReady, nil))
	e.Handle(p, inEnv(t, MsgStartDrawing, StartDrawingMsg{DrawingSessionID: "s1"}))
	e.Handle(p, inEnv(t, "bogus", nil))
	assert.Empty(t, p.msgs)
}

func TestInvalidActionMode(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, p1, _ := startCombat(t, e)
	e.Handle(p1, inEnv(t, MsgMouseDown, MouseMsg{X: 1, Y: 1, ActionMode: "fly"}))
	assert.Equal(t, 1, p1.count(MsgInvalidActionMode))
}

func TestInvalidActionModeOutsideCombatIsSilent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	bad := MouseMsg{X: 1, Y: 1, ActionMode: "fly"}

	stranger := &recPeer{}
	e.Handle(stranger, inEnv(t, MsgMouseDown, bad))
	assert.Empty(t, stranger.msgs)

	_, p1, _ := startDrawing(t, e)
	p1.reset()
	e.Handle(p1, inEnv(t, MsgMouseDown, bad))
	assert.Empty(t, p1.msgs)
}

func TestDisconnectTearsDownRoom(t *testing.T) {
	e, clock, ledger := newTestEngine(t)
	r, p1, p2 := startCombat(t, e)

	e.Disconnect(p2)
	assert.Equal(t, 1, p1.count(MsgPlayerDisconnected))
	assert.Equal(t, 1, p1.count(MsgResetGame))
	assert.Equal(t, 0, e.Rooms().Len())
	assert.True(t, r.closed)
	assert.Contains(t, ledger.events, EvtDisconnect)

	gone, _ := e.RoomOf(p1)
	assert.Nil(t, gone)

	// nothing the room scheduled survives it
	p1.reset()
	clock.Advance(time.Minute)
	assert.Empty(t, p1.msgs)
	assert.Empty(t, p1.binary)
}

func TestDisconnectInLobbyFreesPasscode(t *testing.T) {
	e, _, _ := newTestEngine(t)
	p1 := &recPeer{}
	e.Handle(p1, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	e.Disconnect(p1)
	assert.Nil(t, e.Rooms().Get("ABC123"))

	p2 := &recPeer{}
	e.Handle(p2, inEnv(t, MsgJoinGame, JoinGameMsg{Passcode: "ABC123"}))
	_, n := e.RoomOf(p2)
	assert.Equal(t, 1, n)
}

func TestShutdownClosesEveryRoom(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, p1, _ := joinPair(t, e)
	e.Shutdown()
	assert.Equal(t, 0, e.Rooms().Len())
	assert.Equal(t, 1, p1.count(MsgResetGame))
}

func TestShapeClosedIsTracked(t *testing.T) {
	e, _, ledger := newTestEngine(t)
	_, p1, _ := startDrawing(t, e)
	drawSquare(t, e, p1, "s1", Point{100, 1500}, 100)

	var n int
	for _, evt := range ledger.events {
		if evt == EvtShapeClosed {
			n++
		}
	}
	assert.Equal(t, 1, n)
}
