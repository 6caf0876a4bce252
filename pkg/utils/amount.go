package utils

import (
	"bytes"
	"encoding/json"
)

// ParseAmount accepts only a bare JSON integer greater than zero. Strings, fractions and
// exponents are rejected.
func ParseAmount(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	amount, err := n.Int64()
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
