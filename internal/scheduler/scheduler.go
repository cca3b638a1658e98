// Package scheduler runs the desk's periodic jobs (session heartbeat, quiz
// clock) on a gocron scheduler.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Job tags.
const (
	TagHeartbeat = "heartbeat"
	TagClock     = "clock"
)

type Scheduler struct {
	s   *gocron.Scheduler
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()
	return &Scheduler{s: s, log: log}
}

// Every replaces any job carrying tag with fn running every interval. The
// first run happens one interval from now.
func (s *Scheduler) Every(tag string, interval time.Duration, fn func()) error {
	s.Remove(tag)
	_, err := s.s.Every(interval).WaitForSchedule().Tag(tag).Do(fn)
	if err != nil {
		s.log.WithError(err).WithField("job", tag).Warn("schedule failed")
	}
	return err
}

// Remove cancels the job carrying tag. Unknown tags are ignored.
func (s *Scheduler) Remove(tag string) {
	_ = s.s.RemoveByTag(tag)
}

// Has reports whether a job with tag is scheduled.
func (s *Scheduler) Has(tag string) bool {
	jobs, err := s.s.FindJobsByTag(tag)
	return err == nil && len(jobs) > 0
}

func (s *Scheduler) Start() { s.s.StartAsync() }

func (s *Scheduler) Stop() { s.s.Stop() }
