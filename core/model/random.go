package model

import (
	"math"
	"math/rand"
)

var (
	randomTypes    = []HouseholdType{Consumer, PV, Prosumer}
	randomProfiles = []ProfileKind{ProfileConstant, ProfileSolar}
)

// RandomDescription draws a household from fixed ranges: 5 to 15 kWh of
// capacity, 1 to 10 kW of peak generation and 0.2 to 2 kW of load.
// Seed rng to make the result reproducible.
func RandomDescription(rng *rand.Rand) HouseholdDescription {
	capacity := float64(5 + rng.Intn(11))
	return HouseholdDescription{
		Type:             randomTypes[rng.Intn(len(randomTypes))],
		CapacityKWh:      capacity,
		InitialChargeKWh: math.Round(rng.Float64()*capacity*100) / 100,
		Profile: Profile{
			Kind:         randomProfiles[rng.Intn(len(randomProfiles))],
			GenerationMW: 0.001 + rng.Float64()*0.009,
			LoadMW:       0.0002 + rng.Float64()*0.0018,
		},
	}
}

// RandomDescriptions returns n random households drawn from rng.
func RandomDescriptions(rng *rand.Rand, n int) []HouseholdDescription {
	if n <= 0 {
		return nil
	}
	out := make([]HouseholdDescription, n)
	for i := range out {
		out[i] = RandomDescription(rng)
	}
	return out
}
