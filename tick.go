package main

import (
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TickRate         = 60 // physics ticks per second
	TickDuration     = time.Second / TickRate
	ShellRestSpeed   = 0.5  // units per step
	TankRestSpeed    = 0.15 // units per step
	TankRestAngular  = 0.01 // radians per step
	TrackSampleEvery = 6    // ticks between tank track samples
)

// startTicking begins the fixed-rate physics loop
func (r *Room) startTicking() {
	r.stopTicking()
	r.stopTick = r.clock.Every(TickDuration, r.step)
}

func (r *Room) stopTicking() {
	if r.stopTick != nil {
		r.stopTick()
		r.stopTick = nil
	}
}

// step runs one tick: advance physics, prune resting shells, settle tanks
// and broadcast the snapshot.
func (r *Room) step() {
	if r.closed || r.Phase != PhaseGameRunning {
		r.stopTicking()
		return
	}
	r.tick++
	r.physics.Step(1.0 / TickRate)
	if r.closed || r.Phase != PhaseGameRunning {
		// a collision ended the game
		return
	}

	kept := r.shells[:0]
	for _, s := range r.shells {
		if s.body.Speed() < ShellRestSpeed {
			r.physics.Remove(s.ID)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(r.shells); i++ {
		r.shells[i] = nil
	}
	r.shells = kept

	for _, tank := range r.tanks {
		if !tank.Active {
			continue
		}
		b := tank.body
		if b.Speed() < TankRestSpeed && math.Abs(b.AngularVel) < TankRestAngular {
			b.Pin()
			tank.Active = false
			tank.addTrack(b.Pos)
			continue
		}
		b.Release()
		if r.tick%TrackSampleEvery == 0 {
			tank.addTrack(b.Pos)
		}
	}

	r.broadcastSnapshot()
}

// gameUpdateFrame is the binary counterpart of Envelope
type gameUpdateFrame struct {
	T string     `msgpack:"t"`
	D WorldState `msgpack:"d"`
}

// broadcastSnapshot sends the world state as a msgpack binary frame
func (r *Room) broadcastSnapshot() {
	data, err := msgpack.Marshal(gameUpdateFrame{T: MsgGameUpdate, D: r.Snapshot()})
	if err != nil {
		r.log.Error().Err(err).Msg("encode snapshot")
		return
	}
	for _, p := range r.players {
		if p != nil {
			p.SendBinary(data)
		}
	}
}
