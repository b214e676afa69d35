package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types for analytics tracking
const (
	EvtRoomCreated = "room_created"
	EvtMatchStart  = "match_start"
	EvtShapeClosed = "shape_closed"
	EvtMatchEnd    = "match_end"
	EvtDisconnect  = "disconnect"
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	RoomID    string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics handles event tracking and match records with batched
// background writes, so the game loop never waits on the database.
type Analytics struct {
	db      *DB
	events  chan AnalyticsEvent
	matches chan MatchRecord
	stop    chan struct{}
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB, logger zerolog.Logger) *Analytics {
	a := &Analytics{
		db:      db,
		events:  make(chan AnalyticsEvent, 1024),
		matches: make(chan MatchRecord, 64),
		stop:    make(chan struct{}),
		log:     logger.With().Str("component", "analytics").Logger(),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType, roomID string, data interface{}) {
	if a == nil {
		return
	}
	var payload string
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		RoomID:    roomID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full: drop event rather than blocking game loop
	}
}

// RecordMatch enqueues a finished match (non-blocking)
func (a *Analytics) RecordMatch(m MatchRecord) {
	if a == nil {
		return
	}
	select {
	case a.matches <- m:
	default:
		a.log.Warn().Str("room", m.RoomID).Msg("match queue full, dropping record")
	}
}

// Stop gracefully shuts down the writer, flushing what is queued
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				a.flush(batch)
				batch = batch[:0]
			}
		case m := <-a.matches:
			a.saveMatch(m)
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
					continue
				case m := <-a.matches:
					a.saveMatch(m)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				a.flush(batch)
			}
			return
		}
	}
}

func (a *Analytics) saveMatch(m MatchRecord) {
	if a.db == nil {
		return
	}
	if _, err := a.db.RecordMatch(m); err != nil {
		a.log.Error().Err(err).Str("room", m.RoomID).Msg("record match")
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		a.log.Error().Err(err).Msg("begin tx")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, room_id, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		a.log.Error().Err(err).Msg("prepare insert")
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		var data interface{}
		if evt.Data != "" {
			data = evt.Data
		}
		if _, err := stmt.Exec(evt.Type, evt.RoomID, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			a.log.Error().Err(err).Str("event", evt.Type).Msg("insert event")
		}
	}
	if err := tx.Commit(); err != nil {
		a.log.Error().Err(err).Msg("commit events")
	}
}
