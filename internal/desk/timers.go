package desk

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/scheduler"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

// Heartbeat checks the session with the backend. A session_conflict verdict
// during a live quiz force-submits it as cheat_conflict.
func (d *Desk) Heartbeat(ctx context.Context) sheets.SessionValidation {
	id := d.Identity()
	if id == nil {
		return sheets.SessionValidation{Valid: false, Reason: sheets.ReasonNoSession}
	}
	v := d.api.Heartbeat(ctx, *id)
	d.mu.Lock()
	d.validation = &v
	d.mu.Unlock()
	if v.Valid {
		return v
	}
	d.log.WithField("reason", v.Reason).Warn("session rejected by backend")
	if v.Reason == sheets.ReasonSessionConflict && d.quiz.State() == quiz.InProgress {
		if _, _, err := d.quiz.Finish(ctx, quiz.ReasonCheatConflict); err != nil {
			d.log.WithError(err).Warn("conflict submission could not reach the backend")
		}
	}
	return v
}

// Tick auto-finishes a timed attempt whose duration has run out.
func (d *Desk) Tick(ctx context.Context) bool {
	if !d.quiz.Expired(d.now()) {
		return false
	}
	_, changed, err := d.quiz.Finish(ctx, quiz.ReasonTimeout)
	if err != nil {
		d.log.WithError(err).Warn("timeout submission could not reach the backend")
	}
	return changed
}

func (d *Desk) startHeartbeat() {
	if d.sched == nil {
		return
	}
	_ = d.sched.Every(scheduler.TagHeartbeat, d.hbInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Heartbeat(ctx)
	})
}

func (d *Desk) startClock() {
	if d.sched == nil {
		return
	}
	_ = d.sched.Every(scheduler.TagClock, d.clockInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Tick(ctx)
	})
}

func (d *Desk) stopClock() {
	if d.sched != nil {
		d.sched.Remove(scheduler.TagClock)
	}
}

func (d *Desk) stopTimers() {
	if d.sched != nil {
		d.sched.Remove(scheduler.TagClock)
		d.sched.Remove(scheduler.TagHeartbeat)
	}
}
