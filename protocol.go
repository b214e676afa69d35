package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoinGame         = "joinGame"
	MsgReady            = "ready"
	MsgStartDrawing     = "startDrawing"
	MsgDrawing          = "drawing"
	MsgEndDrawing       = "endDrawing"
	MsgEndDrawingPhase  = "endDrawingPhase"
	MsgEraseLastDrawing = "eraseLastDrawing"
	MsgMouseDown        = "mouseDown"
	MsgMouseMove        = "mouseMove"
	MsgMouseUp          = "mouseUp"
)

// Server -> Client message types
const (
	MsgPlayerInfo   = "playerInfo"
	MsgPreGame      = "preGame"
	MsgStartPreGame = "startPreGame"
	MsgGameRunning  = "gameRunning"
	MsgGameOver     = "gameOver"
	MsgResetGame    = "resetGame"

	MsgDrawingMirror       = "drawingMirror"
	MsgShapeClosed         = "shapeClosed"
	MsgEraseDrawingSession = "eraseDrawingSession"
	MsgDrawingIllegally    = "drawingIllegally"
	MsgDrawingDisabled     = "drawingDisabled"
	MsgDrawingEnabled      = "drawingEnabled"

	MsgValidClick        = "validClick"
	MsgInvalidClick      = "invalidClick"
	MsgInvalidActionMode = "invalidActionMode"
	MsgActionTooSmall    = "actionTooSmall"
	MsgNotYourTurn       = "notYourTurn"
	MsgPowerCapped       = "powerCapped"

	MsgTurnChanged = "turnChanged"
	MsgUpdateTimer = "updateTimer"

	MsgInitialGameState = "initialGameState"
	MsgGameUpdate       = "gameUpdate"

	MsgExplosion        = "explosion"
	MsgTankDestroyed    = "tankDestroyed"
	MsgReactorDestroyed = "reactorDestroyed"
	MsgUpdateHitPoints  = "updateHitPoints"

	MsgPlayerDisconnected = "playerDisconnected"
	MsgGameFull           = "gameFull"
	MsgInvalidPasscode    = "invalidPasscode"
	MsgServerFull         = "serverFull"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinGameMsg asks for a seat, in a passcode room when Passcode is set
type JoinGameMsg struct {
	Passcode string `json:"passcode,omitempty"`
}

// StartDrawingMsg opens a drawing session
type StartDrawingMsg struct {
	DrawingSessionID string `json:"drawingSessionId"`
}

// DrawingMsg extends the active drawing session by one segment
type DrawingMsg struct {
	From      Point   `json:"from"`
	To        Point   `json:"to"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

// MouseMsg carries pointer events in world coordinates
type MouseMsg struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ActionMode string  `json:"actionMode,omitempty"`
}

// PlayerInfoMsg is sent to a connection once it has a seat
type PlayerInfoMsg struct {
	PlayerNumber    int     `json:"playerNumber"`
	RoomID          string  `json:"roomID"`
	GameWorldWidth  float64 `json:"gameWorldWidth"`
	GameWorldHeight float64 `json:"gameWorldHeight"`
}

// StartPreGameMsg opens the drawing phase
type StartPreGameMsg struct {
	DividingLine float64    `json:"dividingLine"`
	NoDrawZones  []Polygon  `json:"noDrawZones"`
	State        WorldState `json:"state"`
}

// GameRunningMsg announces combat and who moves first
type GameRunningMsg struct {
	CurrentTurn int `json:"currentTurn"`
}

// GameOverMsg names the winner
type GameOverMsg struct {
	Winner int    `json:"winner"`
	Reason string `json:"reason"`
}

// DrawingMirrorMsg relays one drawn segment to the room
type DrawingMirrorMsg struct {
	PlayerNumber     int     `json:"playerNumber"`
	DrawingSessionID string  `json:"drawingSessionId"`
	From             Point   `json:"from"`
	To               Point   `json:"to"`
	Color            string  `json:"color"`
	LineWidth        float64 `json:"lineWidth"`
}

// ShapeClosedMsg announces a finalized shape
type ShapeClosedMsg struct {
	PlayerNumber     int       `json:"playerNumber"`
	DrawingSessionID string    `json:"drawingSessionId"`
	Segments         []Segment `json:"segments"`
	ShapeCount       int       `json:"shapeCount"`
}

// DrawingSessionMsg identifies a session, used by erase and illegal notices
type DrawingSessionMsg struct {
	PlayerNumber     int    `json:"playerNumber"`
	DrawingSessionID string `json:"drawingSessionId"`
	Reason           string `json:"reason,omitempty"`
}

// ValidClickMsg acknowledges a mouseDown on an eligible unit
type ValidClickMsg struct {
	UnitID     string `json:"unitId"`
	ActionMode string `json:"actionMode"`
}

// PowerCappedMsg reports a server-forced release
type PowerCappedMsg struct {
	Duration int64 `json:"duration"` // ms
}

// TurnChangedMsg announces whose turn it is
type TurnChangedMsg struct {
	CurrentTurn int `json:"currentTurn"`
}

// UpdateTimerMsg carries the phase countdown
type UpdateTimerMsg struct {
	Phase    string `json:"phase"`
	TimeLeft int    `json:"timeLeft"`
}

// ExplosionMsg marks an impact point
type ExplosionMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UnitMsg identifies a unit, used for hit point updates and destruction
type UnitMsg struct {
	ID        string `json:"id"`
	Owner     int    `json:"owner"`
	HitPoints int    `json:"hitPoints"`
}

// PlayerDisconnectedMsg tells the survivor their opponent left
type PlayerDisconnectedMsg struct {
	PlayerNumber int `json:"playerNumber"`
}

// UnitState is broadcast per tank, turret, reactor and fortress
type UnitState struct {
	ID        string  `json:"id" msgpack:"id"`
	Owner     int     `json:"owner" msgpack:"o"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Angle     float64 `json:"angle" msgpack:"a"`
	Size      float64 `json:"size" msgpack:"s"`
	HitPoints int     `json:"hitPoints" msgpack:"hp"`
	Tracks    []Point `json:"tracks,omitempty" msgpack:"tr,omitempty"`
}

// ShellState is broadcast per shell in flight
type ShellState struct {
	ID    string  `json:"id" msgpack:"id"`
	Owner int     `json:"owner" msgpack:"o"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	VX    float64 `json:"vx" msgpack:"vx"`
	VY    float64 `json:"vy" msgpack:"vy"`
	Size  float64 `json:"size" msgpack:"s"`
}

// WorldState is the full snapshot broadcast each tick
type WorldState struct {
	Tanks      []UnitState  `json:"tanks" msgpack:"t"`
	Reactors   []UnitState  `json:"reactors" msgpack:"r"`
	Fortresses []UnitState  `json:"fortresses" msgpack:"f"`
	Turrets    []UnitState  `json:"turrets" msgpack:"tu"`
	Shells     []ShellState `json:"shells" msgpack:"sh"`
	Tick       uint64       `json:"tick" msgpack:"tick"`
}

// RoomInfo is used in the ops room listing
type RoomInfo struct {
	ID       string `json:"id"`
	Passcode bool   `json:"passcode"`
	Phase    string `json:"phase"`
	Players  int    `json:"players"`
}
