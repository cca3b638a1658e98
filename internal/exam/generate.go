package exam

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Blueprint is one row of an exam structure: draw Count questions of the given
// topic and difficulty level.
type Blueprint struct {
	Topic string `json:"topic" validate:"required"`
	Level string `json:"level" validate:"required"`
	Count int    `json:"count" validate:"gt=0"`
}

var ErrEmptyStructure = errors.New("exam structure has no items")

// Available counts pool questions matching grade, topic and level.
func Available(pool []Question, grade int, topic, level string) int {
	n := 0
	for _, q := range pool {
		if matches(q, grade, topic, level) {
			n++
		}
	}
	return n
}

// CheckStructure validates every item against the pool before any exam is
// generated.
func CheckStructure(pool []Question, grade int, items []Blueprint) error {
	if len(items) == 0 {
		return ErrEmptyStructure
	}
	for _, it := range items {
		if strings.TrimSpace(it.Topic) == "" {
			return errors.New("topic required")
		}
		if it.Count <= 0 {
			return fmt.Errorf("%s/%s: count must be positive", it.Topic, it.Level)
		}
		avail := Available(pool, grade, it.Topic, it.Level)
		if avail == 0 {
			return fmt.Errorf("%s/%s: no questions in the bank", it.Topic, it.Level)
		}
		if it.Count > avail {
			return fmt.Errorf("%s/%s: only %d questions available", it.Topic, it.Level, avail)
		}
	}
	return nil
}

// Total is the number of questions an exam built from items will hold.
func Total(items []Blueprint) int {
	sum := 0
	for _, it := range items {
		sum += it.Count
	}
	return sum
}

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Draw samples each blueprint item from the pool without replacement and
// shuffles the combined set. Call CheckStructure first; short pools yield
// fewer questions rather than an error.
func (g *Generator) Draw(pool []Question, grade int, items []Blueprint) []Question {
	buckets := map[string][]Question{}
	for _, it := range items {
		k := it.Topic + "_" + it.Level
		if _, ok := buckets[k]; ok {
			continue
		}
		var qs []Question
		for _, q := range pool {
			if matches(q, grade, it.Topic, it.Level) {
				qs = append(qs, q)
			}
		}
		buckets[k] = qs
	}

	out := make([]Question, 0, Total(items))
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, it := range items {
		src := buckets[it.Topic+"_"+it.Level]
		perm := g.rnd.Perm(len(src))
		n := min(it.Count, len(src))
		for _, i := range perm[:n] {
			out = append(out, src[i])
		}
	}
	g.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func matches(q Question, grade int, topic, level string) bool {
	return q.Grade.Int() == grade && q.Topic == topic && q.Level == level
}
