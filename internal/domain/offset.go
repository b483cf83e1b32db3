package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Offset is a lead time before an event's start at which an advance ping fires.
type Offset string

const (
	Offset30m Offset = "30m"
	Offset1h  Offset = "1h"
	Offset2h  Offset = "2h"
	Offset4h  Offset = "4h"
	Offset6h  Offset = "6h"
	Offset12h Offset = "12h"
	Offset24h Offset = "24h"
)

// Offsets is the fixed vocabulary shared by all events, shortest lead first.
var Offsets = []Offset{Offset30m, Offset1h, Offset2h, Offset4h, Offset6h, Offset12h, Offset24h}

var offsetDurations = map[Offset]time.Duration{
	Offset30m: 30 * time.Minute,
	Offset1h:  time.Hour,
	Offset2h:  2 * time.Hour,
	Offset4h:  4 * time.Hour,
	Offset6h:  6 * time.Hour,
	Offset12h: 12 * time.Hour,
	Offset24h: 24 * time.Hour,
}

func ParseOffset(s string) (Offset, error) {
	o := Offset(s)
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOffset, s)
	}
	return o, nil
}

func (o Offset) Valid() bool {
	_, ok := offsetDurations[o]
	return ok
}

func (o Offset) Duration() time.Duration {
	return offsetDurations[o]
}

// OffsetSet maps offsets to a flag. It is used both for the armed flags of an
// event and for the offsets waiting to be re-armed.
type OffsetSet map[Offset]bool

// NewOffsetSet returns a set with every offset of the vocabulary present and
// the given ones set to true.
func NewOffsetSet(on ...Offset) OffsetSet {
	s := make(OffsetSet, len(Offsets))
	for _, o := range Offsets {
		s[o] = false
	}
	for _, o := range on {
		s[o] = true
	}
	return s
}

// On lists the offsets whose flag is set, in vocabulary order.
func (s OffsetSet) On() []Offset {
	var out []Offset
	for _, o := range Offsets {
		if s[o] {
			out = append(out, o)
		}
	}
	return out
}

func (s OffsetSet) Clone() OffsetSet {
	c := make(OffsetSet, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

func (s OffsetSet) validate() error {
	for o := range s {
		if !o.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownOffset, string(o))
		}
	}
	return nil
}

// MarshalOffsets encodes the set as a JSON object for storage.
func MarshalOffsets(s OffsetSet) (string, error) {
	if s == nil {
		s = OffsetSet{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalOffsets decodes a stored set; unknown offsets are rejected.
func UnmarshalOffsets(raw string) (OffsetSet, error) {
	s := OffsetSet{}
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode offsets: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}
