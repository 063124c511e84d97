package qos

import (
	"errors"
	"fmt"
)

// Advisory ranges. The protocol does not enforce them.
const (
	MinQosPriority uint32 = 1
	MaxQosPriority uint32 = 127
	MinArpPriority uint32 = 1
	MaxArpPriority uint32 = 15
)

// ErrOutOfRange is wrapped by every RangeError.
var ErrOutOfRange = errors.New("qos: value outside advisory range")

// RangeError reports one field outside its advisory range.
type RangeError struct {
	Field string
	Value uint64
	Min   uint64
	Max   uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("qos: %s=%d outside advisory range %d-%d", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// CheckAdvisory returns the joined range errors for u, or nil.
func CheckAdvisory(u Update) error {
	var errs []error
	if u.QosPriority != nil {
		if err := checkRange("qos_priority", uint64(*u.QosPriority), uint64(MinQosPriority), uint64(MaxQosPriority)); err != nil {
			errs = append(errs, err)
		}
	}
	if u.ArpPriority != nil {
		if err := checkRange("arp_priority", uint64(*u.ArpPriority), uint64(MinArpPriority), uint64(MaxArpPriority)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkRange(field string, v, lo, hi uint64) error {
	if v < lo || v > hi {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}
