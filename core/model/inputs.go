package model

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrInvalidInput reports a supplied input value that cannot be simulated.
var ErrInvalidInput = errors.New("invalid input")

// MaxInputMW bounds the magnitude of any supplied flow. Far larger values
// overflow once converted to energy.
const MaxInputMW = 1e6

// Input attributes accepted per household on every step.
const (
	AttrGenerationMW = "p_mw_pv"
	AttrLoadMW       = "p_mw_load"
	AttrNetMW        = "p_mw_net"
)

// Inputs maps an entity id to the attribute values supplied for one step.
// Entities or attributes that are absent fall back to the household profile.
type Inputs map[string]map[string]float64

// Lookup returns the value supplied for eid and attr, if any.
func (in Inputs) Lookup(eid, attr string) (float64, bool) {
	attrs, ok := in[eid]
	if !ok {
		return 0, false
	}
	v, ok := attrs[attr]
	return v, ok
}

// Validate rejects NaN, infinite and out of range values. Entities are
// checked in sorted order so the reported error is stable.
func (in Inputs) Validate() error {
	for _, eid := range slices.Sorted(maps.Keys(in)) {
		attrs := in[eid]
		for _, attr := range slices.Sorted(maps.Keys(attrs)) {
			if v := attrs[attr]; math.IsNaN(v) || math.Abs(v) > MaxInputMW {
				return fmt.Errorf("%w: %s %s = %v", ErrInvalidInput, eid, attr, v)
			}
		}
	}
	return nil
}
