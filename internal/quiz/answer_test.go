package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnswer(t *testing.T) {
	a, err := DecodeAnswer([]byte(`{"kind":"mc","choice":" b "}`))
	require.NoError(t, err)
	assert.Equal(t, Choice{Letter: "B"}, a)
	assert.Equal(t, "B", a.Wire())

	a, err = DecodeAnswer([]byte(`{"kind":"tf","parts":["Đ","S","",""]}`))
	require.NoError(t, err)
	assert.Equal(t, "Đ-S-?-?", a.Wire())

	a, err = DecodeAnswer([]byte(`{"kind":"tf","parts":["Đ","?","S","Đ"]}`))
	require.NoError(t, err)
	assert.Equal(t, "Đ-?-S-Đ", a.Wire())

	a, err = DecodeAnswer([]byte(`{"kind":"short","text":" 12,5 "}`))
	require.NoError(t, err)
	assert.Equal(t, " 12,5 ", a.Wire())
}

func TestDecodeAnswerRejects(t *testing.T) {
	for _, in := range []string{
		`{"kind":"mc","choice":"E"}`,
		`{"kind":"mc"}`,
		`{"kind":"tf","parts":["Đ","S"]}`,
		`{"kind":"tf","parts":["T","F","T","F"]}`,
		`{"kind":"essay","text":"x"}`,
		`"B"`,
	} {
		_, err := DecodeAnswer([]byte(in))
		assert.ErrorIs(t, err, ErrBadAnswer, in)
	}
}

func TestClausesSet(t *testing.T) {
	var c Clauses
	c, err := c.Set(2, False)
	require.NoError(t, err)
	assert.Equal(t, "?-?-S-?", c.Wire())

	_, err = c.Set(4, True)
	assert.Error(t, err)
	_, err = c.Set(0, Verdict("x"))
	assert.Error(t, err)
}

func TestEncodeAnswer(t *testing.T) {
	assert.JSONEq(t, `{"kind":"mc","choice":"A"}`, string(EncodeAnswer(Choice{Letter: "A"})))
	assert.JSONEq(t, `{"kind":"tf","parts":["Đ","","",""]}`, string(EncodeAnswer(Clauses{Parts: [4]Verdict{True}})))
	assert.Equal(t, "null", string(EncodeAnswer(nil)))
}
