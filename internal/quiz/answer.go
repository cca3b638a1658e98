package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindChoice  Kind = "mc"
	KindClauses Kind = "tf"
	KindShort   Kind = "short"
)

// Answer is one question's response. Wire returns the form the backend
// stores and grades against.
type Answer interface {
	Kind() Kind
	Wire() string
}

// Choice is a multiple-choice selection ("A".."D").
type Choice struct {
	Letter string
}

func (Choice) Kind() Kind     { return KindChoice }
func (c Choice) Wire() string { return c.Letter }

type Verdict string

const (
	Unset Verdict = ""
	True  Verdict = "Đ"
	False Verdict = "S"
)

// Clauses is a true/false verdict for each of the four statements a) to d).
type Clauses struct {
	Parts [4]Verdict
}

func (Clauses) Kind() Kind { return KindClauses }

// Wire renders "Đ-S-?-?"; unset clauses are "?".
func (c Clauses) Wire() string {
	parts := make([]string, 4)
	for i, v := range c.Parts {
		if v == Unset {
			parts[i] = "?"
		} else {
			parts[i] = string(v)
		}
	}
	return strings.Join(parts, "-")
}

// Set returns a copy with one clause updated.
func (c Clauses) Set(slot int, v Verdict) (Clauses, error) {
	if slot < 0 || slot > 3 {
		return c, fmt.Errorf("clause %d out of range", slot)
	}
	if err := v.valid(); err != nil {
		return c, err
	}
	c.Parts[slot] = v
	return c, nil
}

func (v Verdict) valid() error {
	switch v {
	case Unset, True, False:
		return nil
	}
	return fmt.Errorf("invalid verdict %q", string(v))
}

type ShortText struct {
	Text string
}

func (ShortText) Kind() Kind     { return KindShort }
func (s ShortText) Wire() string { return s.Text }

var ErrBadAnswer = errors.New("invalid answer")

type answerJSON struct {
	Kind   Kind      `json:"kind"`
	Choice string    `json:"choice,omitempty"`
	Parts  []Verdict `json:"parts,omitempty"`
	Text   string    `json:"text,omitempty"`
}

// DecodeAnswer parses {"kind":"mc","choice":"B"}, {"kind":"tf","parts":[...]}
// or {"kind":"short","text":"..."}.
func DecodeAnswer(b []byte) (Answer, error) {
	var w answerJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAnswer, err)
	}
	switch w.Kind {
	case KindChoice:
		l := strings.ToUpper(strings.TrimSpace(w.Choice))
		if len(l) != 1 || l[0] < 'A' || l[0] > 'D' {
			return nil, fmt.Errorf("%w: choice must be A-D", ErrBadAnswer)
		}
		return Choice{Letter: l}, nil
	case KindClauses:
		if len(w.Parts) != 4 {
			return nil, fmt.Errorf("%w: tf answers need 4 parts", ErrBadAnswer)
		}
		var c Clauses
		for i, p := range w.Parts {
			if p == "?" {
				p = Unset
			}
			if err := p.valid(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadAnswer, err)
			}
			c.Parts[i] = p
		}
		return c, nil
	case KindShort:
		return ShortText{Text: w.Text}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrBadAnswer, w.Kind)
}

// EncodeAnswer is the inverse of DecodeAnswer; nil encodes as null.
func EncodeAnswer(a Answer) json.RawMessage {
	var w answerJSON
	switch v := a.(type) {
	case Choice:
		w = answerJSON{Kind: KindChoice, Choice: v.Letter}
	case Clauses:
		w = answerJSON{Kind: KindClauses, Parts: v.Parts[:]}
	case ShortText:
		w = answerJSON{Kind: KindShort, Text: v.Text}
	default:
		return json.RawMessage("null")
	}
	b, _ := json.Marshal(w)
	return b
}
