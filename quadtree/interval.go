package quadtree

import (
	"github.com/chewxy/math32"
	"github.com/segmentio/encoding/json"
)

// Interval is a closed range of heights. The zero value is the empty interval.
type Interval struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`

	set bool
}

// Span returns the interval between a and b.
func Span(a, b float32) Interval {
	return Interval{
		Min: math32.Min(a, b),
		Max: math32.Max(a, b),
		set: true,
	}
}

// Empty reports whether the interval holds no value.
func (i Interval) Empty() bool {
	return !i.set
}

// Extend returns the interval grown to include z.
func (i Interval) Extend(z float32) Interval {
	if !i.set {
		return Span(z, z)
	}
	return Interval{
		Min: math32.Min(i.Min, z),
		Max: math32.Max(i.Max, z),
		set: true,
	}
}

// Union returns the smallest interval containing both i and o. Empty
// intervals are ignored.
func (i Interval) Union(o Interval) Interval {
	switch {
	case !o.set:
		return i
	case !i.set:
		return o
	}

	return Interval{
		Min: math32.Min(i.Min, o.Min),
		Max: math32.Max(i.Max, o.Max),
		set: true,
	}
}

// Contains reports whether z is inside the interval.
func (i Interval) Contains(z float32) bool {
	return i.set && z >= i.Min && z <= i.Max
}

// Length returns Max - Min, or 0 for an empty interval.
func (i Interval) Length() float32 {
	if !i.set {
		return 0
	}
	return i.Max - i.Min
}

// MarshalJSON encodes an empty interval as null.
func (i Interval) MarshalJSON() ([]byte, error) {
	if !i.set {
		return []byte("null"), nil
	}

	return json.Marshal(struct {
		Min float32 `json:"min"`
		Max float32 `json:"max"`
	}{
		Min: i.Min,
		Max: i.Max,
	})
}

// UnmarshalJSON decodes an interval encoded by MarshalJSON.
func (i *Interval) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = Interval{}
		return nil
	}

	var v struct {
		Min float32 `json:"min"`
		Max float32 `json:"max"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	*i = Span(v.Min, v.Max)
	return nil
}
