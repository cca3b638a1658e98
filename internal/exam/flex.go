package exam

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Num decodes a JSON number that the sheets backend may also send as a string
// ("12", "", "85.5"). Empty or unparsable strings decode to zero.
type Num float64

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Num(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Num(v)
	return nil
}

func (n Num) Int() int { return int(n) }

func (n Num) Float() float64 { return float64(n) }
