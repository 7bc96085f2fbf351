package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// ID is a platform identifier normalized to an arbitrary-precision integer.
// User, chat and channel ids are built through NewID or ParseID at the
// ingestion boundary and compared with Equal.
type ID struct {
	n *big.Int
}

// NewID wraps a primitive platform id.
func NewID(v int64) ID {
	return ID{n: big.NewInt(v)}
}

// ParseID parses a decimal id. Surrounding whitespace is ignored.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID{}, fmt.Errorf("id is empty")
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return ID{}, fmt.Errorf("invalid id %q", raw)
	}
	return ID{n: n}, nil
}

func (id ID) value() *big.Int {
	if id.n == nil {
		return new(big.Int)
	}
	return id.n
}

// Equal reports whether both ids hold the same integer value.
func (id ID) Equal(other ID) bool {
	return id.value().Cmp(other.value()) == 0
}

// IsZero reports whether the id is unset or zero.
func (id ID) IsZero() bool {
	return id.value().Sign() == 0
}

// Int64 returns the id as int64 when it fits.
func (id ID) Int64() (int64, bool) {
	v := id.value()
	if !v.IsInt64() {
		return 0, false
	}
	return v.Int64(), true
}

func (id ID) String() string {
	return id.value().String()
}

// MarshalJSON encodes the id as a decimal string so no precision is lost.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts a decimal string, a JSON number, or a wrapped
// {"value": ...} object. All three forms show up in cached entities.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case '{':
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if len(wrapped.Value) == 0 {
			return fmt.Errorf("wrapped id has no value")
		}
		return id.UnmarshalJSON(wrapped.Value)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		parsed, err := ParseID(num.String())
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
}
