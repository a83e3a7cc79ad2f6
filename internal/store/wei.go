package store

import (
	"math/big"
)

// Wei wraps an arbitrary-precision integer amount of wei so it always
// round-trips through JSON as a decimal string, never a float64.
type Wei struct {
	*big.Int
}

// NewWei wraps v, treating a nil v as zero.
func NewWei(v *big.Int) Wei {
	if v == nil {
		return Wei{big.NewInt(0)}
	}
	return Wei{new(big.Int).Set(v)}
}

// WeiFromInt64 is a convenience constructor for literal/test amounts.
func WeiFromInt64(v int64) Wei {
	return Wei{big.NewInt(v)}
}

func (w Wei) MarshalJSON() ([]byte, error) {
	if w.Int == nil {
		return []byte(`"0"`), nil
	}
	return []byte(`"` + w.Int.String() + `"`), nil
}

func (w *Wei) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	w.Int = v
	return nil
}
