// Package progress holds the per-topic level unlock policy.
//
// The gate is advisory: the backend does not verify that a level was unlocked
// before serving its questions, so callers must not treat it as an integrity
// control.
package progress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

// Map is "<grade>_<topic>" -> highest unlocked level.
type Map map[string]int

func Key(grade int, topic string) string {
	return strconv.Itoa(grade) + "_" + topic
}

// Level returns the highest unlocked level for the topic (at least 1).
func (m Map) Level(grade int, topic string) int {
	if n := m[Key(grade, topic)]; n > 0 {
		return n
	}
	return 1
}

func (m Map) Unlocked(grade int, topic string, level int) bool {
	if level <= 1 {
		return true
	}
	return level <= m.Level(grade, topic)
}

// Advance records that level was passed with canAdvance and returns the new
// unlocked level. It never lowers an existing entry.
func (m Map) Advance(grade int, topic string, level int) int {
	k := Key(grade, topic)
	if next := level + 1; next > m[k] {
		m[k] = next
	}
	return m[k]
}

func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LockedError explains why a level cannot be started yet.
type LockedError struct {
	Level     int
	Threshold int // percent needed on the previous level; 0 if unknown
}

func (e *LockedError) Error() string {
	if e.Threshold <= 0 {
		return fmt.Sprintf("pass level %d to unlock level %d", e.Level-1, e.Level)
	}
	return fmt.Sprintf("complete level %d with at least %d%% to unlock level %d", e.Level-1, e.Threshold, e.Level)
}

// UnmarshalJSON accepts an object or a JSON-encoded string holding one; the
// backend stores progress as a sheet cell.
func (m *Map) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*m = Map{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(inner), m); err != nil {
			// unparsable cell reads as empty progress
			*m = Map{}
		}
		return nil
	}
	var raw map[string]exam.Num
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Map, len(raw))
	for k, v := range raw {
		out[k] = v.Int()
	}
	*m = out
	return nil
}
