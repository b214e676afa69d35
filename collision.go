package main

// handleCollision reacts to the physics engine reporting two bodies that
// just started touching. Only pairs involving a shell matter.
func (r *Room) handleCollision(c CollisionPair) {
	if r.closed || r.Phase != PhaseGameRunning {
		return
	}
	shellBody := c.A
	if shellBody.Kind != KindShell {
		shellBody = c.B
	}
	if shellBody.Kind != KindShell {
		return
	}
	other := c.Other(shellBody)
	if r.findShell(shellBody.ID) == nil {
		return
	}

	switch other.Kind {
	case KindTank:
		if u := findUnit(r.tanks, other.ID); u != nil {
			r.hitUnit(shellBody.ID, u, c.Point)
		}
	case KindReactor:
		if u := findUnit(r.reactors, other.ID); u != nil {
			r.hitUnit(shellBody.ID, u, c.Point)
		}
	case KindShape:
		r.removeShell(shellBody.ID)
	}
}

// hitUnit applies one point of damage from a shell impact
func (r *Room) hitUnit(shellID string, u *Unit, at Point) {
	r.broadcast(MsgExplosion, ExplosionMsg{X: round1(at.X), Y: round1(at.Y)})
	r.removeShell(shellID)

	u.HitPoints--
	r.broadcast(MsgUpdateHitPoints, UnitMsg{ID: u.ID, Owner: u.Owner, HitPoints: u.HitPoints})
	if u.HitPoints > 0 {
		return
	}

	r.physics.Remove(u.ID)
	switch u.Kind {
	case KindTank:
		r.tanks, _ = removeUnit(r.tanks, u.ID)
		r.broadcast(MsgTankDestroyed, UnitMsg{ID: u.ID, Owner: u.Owner})
		if r.tanksLeft(u.Owner) == 0 {
			r.gameOver(opponent(u.Owner), "tanksDestroyed")
		}
	case KindReactor:
		r.reactors, _ = removeUnit(r.reactors, u.ID)
		r.broadcast(MsgReactorDestroyed, UnitMsg{ID: u.ID, Owner: u.Owner})
		r.gameOver(opponent(u.Owner), "reactorDestroyed")
	}
}

func (r *Room) tanksLeft(player int) int {
	n := 0
	for _, t := range r.tanks {
		if t.Owner == player {
			n++
		}
	}
	return n
}

func (r *Room) findShell(id string) *Shell {
	for _, s := range r.shells {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Room) removeShell(id string) {
	for i, s := range r.shells {
		if s.ID == id {
			r.shells = append(r.shells[:i], r.shells[i+1:]...)
			break
		}
	}
	r.physics.Remove(id)
}

// gameOver ends the match. The first call wins; later hits in the same
// step find the room out of GAME_RUNNING.
func (r *Room) gameOver(winner int, reason string) {
	if r.Phase != PhaseGameRunning {
		return
	}
	r.Phase = PhasePostGame
	r.currentTurn = 0
	r.broadcast(MsgGameOver, GameOverMsg{Winner: winner, Reason: reason})
	r.log.Info().Int("winner", winner).Str("reason", reason).Msg("game over")
	if r.onGameOver != nil {
		r.onGameOver(r, winner, reason)
	}
}
