package model

// MWToKWh converts a power in megawatts sustained for the given number of
// seconds into kilowatt-hours. The sign of the power is preserved.
func MWToKWh(powerMW, seconds float64) float64 {
	kW := powerMW * 1000
	return kW * (seconds / 3600.)
}

// KWhToMW returns the constant power in megawatts that moves kWh over the
// given number of seconds. A zero duration yields an infinite or NaN result.
func KWhToMW(seconds, kWh float64) float64 {
	hours := seconds / 3600.
	kW := kWh / hours
	return kW * 1000 / (1000 * 1000)
}
