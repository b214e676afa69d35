package main

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	InkBudget          = 2000.0
	MaxShapesPerPlayer = 5
	shapeThicknessMin  = 4.0
	minShapeArea       = 1.0 // square units
	illegalColor       = "red"
)

// Segment is one stroke piece of a drawing
type Segment struct {
	From  Point   `json:"from"`
	To    Point   `json:"to"`
	Color string  `json:"color"`
	Width float64 `json:"lineWidth"`
}

// Length returns the segment's euclidean length
func (s Segment) Length() float64 {
	return s.From.Dist(s.To)
}

// DrawingSession is a shape under construction. Once Legal turns false it
// stays false.
type DrawingSession struct {
	ID       string
	Path     []Segment
	InkUsed  float64
	Legal    bool
	notified bool
}

// Shape is a finalized closed drawing. Its last segment returns to the
// first point.
type Shape struct {
	Owner     int
	SessionID string
	Segments  []Segment
	Polygon   Polygon
	bodyID    string
}

// Session returns the player's active drawing session, if any
func (r *Room) Session(player int) *DrawingSession {
	return r.sessions[player]
}

// Shapes returns the finalized shapes in drawing order
func (r *Room) Shapes() []*Shape {
	return r.allPaths
}

func (r *Room) inBounds(p Point) bool {
	return p.X >= 0 && p.X <= r.Width && p.Y >= 0 && p.Y <= r.Height
}

// inHalf reports whether p is on player's side of the dividing line.
// Player 1 owns the lower half of the world (larger y); player 2 sees the
// board rotated, so their half is the upper one.
func (r *Room) inHalf(player int, p Point) bool {
	if player == 1 {
		return p.Y >= r.DividingLine
	}
	return p.Y <= r.DividingLine
}

// beginDrawing opens a fresh session for player. An unfinished session is
// discarded first.
func (r *Room) beginDrawing(player int, sessionID string) error {
	if r.Phase != PhasePreGame {
		return ErrWrongPhase
	}
	if r.endedDrawing[player] {
		return ErrDrawingEnded
	}
	if r.shapeCount[player] >= MaxShapesPerPlayer {
		return ErrShapeCap
	}
	if old := r.sessions[player]; old != nil {
		r.eraseSession(player, old, "replaced")
	}
	r.sessions[player] = &DrawingSession{ID: sessionID, Legal: true}
	return nil
}

// extendDrawing appends one segment to player's session and mirrors it.
func (r *Room) extendDrawing(player int, msg DrawingMsg) error {
	if r.Phase != PhasePreGame {
		return ErrWrongPhase
	}
	s := r.sessions[player]
	if s == nil {
		return ErrNoSession
	}
	if !r.inBounds(msg.From) || !r.inBounds(msg.To) {
		return ErrOutOfBounds
	}

	seg := Segment{From: msg.From, To: msg.To, Color: msg.Color, Width: msg.LineWidth}
	s.InkUsed += seg.Length()
	s.Path = append(s.Path, seg)

	if s.Legal {
		if reason := r.segmentViolation(player, seg); reason != "" {
			s.Legal = false
			if !s.notified {
				s.notified = true
				r.sendTo(player, MsgDrawingIllegally, DrawingSessionMsg{
					PlayerNumber:     player,
					DrawingSessionID: s.ID,
					Reason:           reason,
				})
			}
		}
	}

	color := illegalColor
	if s.Legal && s.InkUsed <= InkBudget {
		color = fadeColor(msg.Color, 1-s.InkUsed/InkBudget)
	}
	r.broadcastExcept(player, MsgDrawingMirror, DrawingMirrorMsg{
		PlayerNumber:     player,
		DrawingSessionID: s.ID,
		From:             seg.From,
		To:               seg.To,
		Color:            color,
		LineWidth:        seg.Width,
	})
	return nil
}

// segmentViolation returns why seg may not be drawn by player, or "".
func (r *Room) segmentViolation(player int, seg Segment) string {
	if !r.inHalf(player, seg.From) || !r.inHalf(player, seg.To) {
		return "outsideHalf"
	}
	for _, shape := range r.allPaths {
		if shape.Owner == player && segmentHitsPolygon(seg.From, seg.To, shape.Polygon) {
			return "crossesShape"
		}
	}
	for _, zone := range r.noDrawZones {
		if segmentHitsPolygon(seg.From, seg.To, zone) {
			return "noDrawZone"
		}
	}
	return ""
}

// endDrawing closes player's session into a shape, or erases it when the
// result would be illegal.
func (r *Room) endDrawing(player int) error {
	if r.Phase != PhasePreGame {
		return ErrWrongPhase
	}
	s := r.sessions[player]
	if s == nil {
		return ErrNoSession
	}
	if len(s.Path) == 0 {
		return ErrEmptyPath
	}
	if s.InkUsed > InkBudget {
		r.eraseSession(player, s, "outOfInk")
		return nil
	}
	if !s.Legal {
		r.eraseSession(player, s, "illegal")
		return nil
	}
	if len(s.Path) < 2 {
		r.eraseSession(player, s, "tooShort")
		return nil
	}

	first, last := s.Path[0], s.Path[len(s.Path)-1]
	if last.To != first.From {
		s.Path = append(s.Path, Segment{From: last.To, To: first.From, Color: last.Color, Width: last.Width})
	}
	poly := pathPolygon(s.Path)
	if distinctVertices(poly) < 3 || polygonArea(poly) < minShapeArea {
		r.eraseSession(player, s, "tooShort")
		return nil
	}

	for _, shape := range r.allPaths {
		if shape.Owner != player {
			continue
		}
		if polygonsIntersect(poly, shape.Polygon) ||
			polygonContained(poly, shape.Polygon) ||
			polygonContained(shape.Polygon, poly) {
			r.eraseSession(player, s, "overlapsShape")
			return nil
		}
	}
	for _, zone := range r.noDrawZones {
		if polygonsIntersect(poly, zone) {
			r.eraseSession(player, s, "noDrawZone")
			return nil
		}
	}

	shape := &Shape{Owner: player, SessionID: s.ID, Segments: s.Path, Polygon: poly}
	r.addShapeBody(shape)
	r.allPaths = append(r.allPaths, shape)
	r.shapeCount[player]++
	delete(r.sessions, player)

	r.broadcast(MsgShapeClosed, ShapeClosedMsg{
		PlayerNumber:     player,
		DrawingSessionID: s.ID,
		Segments:         shape.Segments,
		ShapeCount:       r.shapeCount[player],
	})
	r.log.Debug().Int("player", player).Int("shapes", r.shapeCount[player]).Msg("shape closed")
	if r.onShapeClosed != nil {
		r.onShapeClosed(r, shape)
	}

	if r.shapeCount[player] >= MaxShapesPerPlayer {
		r.sendTo(player, MsgDrawingDisabled, nil)
	}
	r.maybeStartGame()
	return nil
}

// endDrawingPhase lets player give up their remaining shapes
func (r *Room) endDrawingPhase(player int) error {
	if r.Phase != PhasePreGame {
		return ErrWrongPhase
	}
	if r.endedDrawing[player] {
		return nil
	}
	if s := r.sessions[player]; s != nil {
		r.eraseSession(player, s, "phaseEnded")
	}
	r.endedDrawing[player] = true
	r.shapeCount[player] = MaxShapesPerPlayer
	r.sendTo(player, MsgDrawingDisabled, nil)
	r.maybeStartGame()
	return nil
}

// eraseLastDrawing undoes player's most recent shape
func (r *Room) eraseLastDrawing(player int) error {
	if r.Phase != PhasePreGame {
		return ErrWrongPhase
	}
	if r.endedDrawing[player] {
		return ErrDrawingEnded
	}
	idx := -1
	for i := len(r.allPaths) - 1; i >= 0; i-- {
		if r.allPaths[i].Owner == player {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNothingToErase
	}
	shape := r.allPaths[idx]
	r.allPaths = append(r.allPaths[:idx], r.allPaths[idx+1:]...)
	r.physics.Remove(shape.bodyID)

	wasCapped := r.shapeCount[player] >= MaxShapesPerPlayer
	r.shapeCount[player]--
	r.broadcast(MsgEraseDrawingSession, DrawingSessionMsg{
		PlayerNumber:     player,
		DrawingSessionID: shape.SessionID,
	})
	if wasCapped {
		r.sendTo(player, MsgDrawingEnabled, nil)
	}
	return nil
}

func (r *Room) eraseSession(player int, s *DrawingSession, reason string) {
	delete(r.sessions, player)
	r.broadcast(MsgEraseDrawingSession, DrawingSessionMsg{
		PlayerNumber:     player,
		DrawingSessionID: s.ID,
		Reason:           reason,
	})
}

// addShapeBody turns a finalized shape into static collision geometry
func (r *Room) addShapeBody(shape *Shape) {
	r.shapeSeq++
	shape.bodyID = fmt.Sprintf("shape-%d-%d", shape.Owner, r.shapeSeq)
	b := NewBody(shape.bodyID, KindShape)
	b.Static = true
	b.Thickness = shapeThicknessMin
	for _, seg := range shape.Segments {
		b.Segments = append(b.Segments, [2]Point{seg.From, seg.To})
		if seg.Width > b.Thickness {
			b.Thickness = seg.Width
		}
	}
	r.physics.Add(b)
}

// startPreGame opens the drawing phase once both players are ready
func (r *Room) startPreGame() {
	r.Phase = PhasePreGame
	r.placeEntities()
	r.timer = NewTimer(r.clock, r.timings.DrawingSeconds, func(left int) {
		r.broadcast(MsgUpdateTimer, UpdateTimerMsg{Phase: "drawing", TimeLeft: left})
	}, r.drawingTimeUp)
	r.broadcast(MsgStartPreGame, StartPreGameMsg{
		DividingLine: r.DividingLine,
		NoDrawZones:  r.noDrawZones,
		State:        r.Snapshot(),
	})
	r.timer.Start()
}

// drawingTimeUp finalizes what is on the board and forces both players to
// the cap.
func (r *Room) drawingTimeUp() {
	if r.closed || r.Phase != PhasePreGame {
		return
	}
	for player := 1; player <= 2; player++ {
		if r.sessions[player] != nil {
			r.endDrawing(player)
		}
		if r.Phase != PhasePreGame {
			return
		}
		r.endedDrawing[player] = true
		r.shapeCount[player] = MaxShapesPerPlayer
	}
	r.maybeStartGame()
}

func (r *Room) maybeStartGame() {
	if r.Phase != PhasePreGame {
		return
	}
	if r.shapeCount[1] < MaxShapesPerPlayer || r.shapeCount[2] < MaxShapesPerPlayer {
		return
	}
	r.startGame()
}

// startGame moves the room from drawing to combat. Runs exactly once.
func (r *Room) startGame() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.sessions = make(map[int]*DrawingSession)
	r.currentTurn = r.coinFlip()
	r.Phase = PhaseGameRunning
	r.noDrawZones = nil
	r.startedAt = r.clock.Now()

	r.broadcast(MsgGameRunning, GameRunningMsg{CurrentTurn: r.currentTurn})
	r.broadcast(MsgInitialGameState, r.Snapshot())
	r.log.Info().Int("firstTurn", r.currentTurn).Int("shapes", len(r.allPaths)).Msg("game running")

	r.timer = NewTimer(r.clock, r.timings.TurnSeconds, func(left int) {
		r.broadcast(MsgUpdateTimer, UpdateTimerMsg{Phase: "turn", TimeLeft: left})
	}, r.turnTimeUp)
	r.startTicking()
	r.broadcast(MsgTurnChanged, TurnChangedMsg{CurrentTurn: r.currentTurn})
	r.timer.Start()
}

// fadeColor renders color at the given opacity. Hex and rgb() colors are
// converted to rgba(); anything else is passed through.
func fadeColor(color string, alpha float64) string {
	alpha = Clamp(alpha, 0, 1)
	a := strconv.FormatFloat(alpha, 'f', 2, 64)
	c := strings.TrimSpace(color)
	if strings.HasPrefix(c, "#") {
		hex := c[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) >= 6 {
			rgb, err := strconv.ParseUint(hex[:6], 16, 32)
			if err == nil {
				return fmt.Sprintf("rgba(%d,%d,%d,%s)", rgb>>16&0xff, rgb>>8&0xff, rgb&0xff, a)
			}
		}
		return c
	}
	if strings.HasPrefix(c, "rgb(") && strings.HasSuffix(c, ")") {
		return "rgba(" + strings.TrimSuffix(strings.TrimPrefix(c, "rgb("), ")") + "," + a + ")"
	}
	return c
}
