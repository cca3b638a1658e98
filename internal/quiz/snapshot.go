package quiz

import (
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

// Snapshot is a read-only copy of the quiz for rendering.
type Snapshot struct {
	State          State              `json:"state"`
	Questions      []exam.Question    `json:"questions"`
	CurrentIndex   int                `json:"currentIndex"`
	Answers        []json.RawMessage  `json:"answers"`
	StartTime      time.Time          `json:"startTime"`
	EndTime        *time.Time         `json:"endTime,omitempty"`
	ElapsedSeconds int                `json:"elapsedSeconds"`
	TabSwitchCount int                `json:"tabSwitchCount"`
	Score          int                `json:"score"`
	Reason         Reason             `json:"submissionReason"`
	Meta           Meta               `json:"meta"`
	Attempt        *Attempt           `json:"attempt,omitempty"`
	Result         *sheets.QuizResult `json:"result,omitempty"`

	answers []Answer
}

// Answer returns the typed answer at i, or nil.
func (s Snapshot) Answer(i int) Answer {
	if i < 0 || i >= len(s.answers) {
		return nil
	}
	return s.answers[i]
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.now())
}

func (c *Controller) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{
		State:          c.stateLocked(),
		Questions:      append([]exam.Question(nil), c.questions...),
		CurrentIndex:   c.index,
		Answers:        make([]json.RawMessage, len(c.answers)),
		StartTime:      c.startTime,
		ElapsedSeconds: int(c.elapsedLocked(now).Seconds()),
		TabSwitchCount: c.tabSwitches,
		Score:          c.score,
		Reason:         c.reason,
		Meta:           c.meta,
		Result:         c.result,
		answers:        append([]Answer(nil), c.answers...),
	}
	for i, a := range c.answers {
		s.Answers[i] = EncodeAnswer(a)
	}
	if c.complete {
		t := c.endTime
		s.EndTime = &t
	}
	if c.attempt != nil {
		a := *c.attempt
		s.Attempt = &a
	}
	return s
}

// Context returns what violation reports and submissions need to know about
// the live quiz.
func (c *Controller) Context() (Meta, *sheets.Identity, *Attempt, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var id *sheets.Identity
	if c.identity != nil {
		v := *c.identity
		id = &v
	}
	var at *Attempt
	if c.attempt != nil {
		v := *c.attempt
		at = &v
	}
	return c.meta, id, at, c.index
}
