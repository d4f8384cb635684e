package handler

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxQuantity bounds coerced quantities well inside int range.
const maxQuantity = 1_000_000

// Quantity is a JSON quantity that may arrive as a number or a numeric string.
// Fractions are truncated. Decoding never fails; bad input is flagged instead
// so the caller can answer with a quantity message.
type Quantity struct {
	Value   int
	Set     bool
	Invalid bool
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		q.Set, q.Invalid = true, true
		return nil
	}
	switch t := v.(type) {
	case nil:
		*q = Quantity{}
	case float64:
		q.set(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			q.Set, q.Invalid = true, true
			return nil
		}
		q.set(f)
	default:
		q.Set, q.Invalid = true, true
	}
	return nil
}

func (q *Quantity) set(f float64) {
	q.Set = true
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxQuantity {
		q.Invalid = true
		return
	}
	q.Value = int(math.Trunc(f))
}

// OrDefault returns the quantity, or def when none was sent.
func (q Quantity) OrDefault(def int) (int, bool) {
	if !q.Set {
		return def, true
	}
	return q.Value, !q.Invalid
}

// Required returns the quantity; ok is false when it is missing or malformed.
func (q Quantity) Required() (int, bool) {
	if !q.Set || q.Invalid {
		return 0, false
	}
	return q.Value, true
}
