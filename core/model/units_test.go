package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMWToKWhRegression(t *testing.T) {
	assert.Equal(t, 20*1000*(20/3600.), MWToKWh(20, 20))
	assert.Equal(t, -0.000359375*1000*(900/3600.), MWToKWh(-0.000359375, 900))
}

func TestMWToKWhZeroAndNaN(t *testing.T) {
	assert.Equal(t, 0.0, MWToKWh(0, 900))
	assert.Equal(t, 0.0, MWToKWh(5, 0))
	assert.True(t, math.IsNaN(MWToKWh(math.NaN(), 60)))
}

func TestKWhToMWInverse(t *testing.T) {
	kwh := MWToKWh(0.004, 900)
	assert.InDelta(t, 0.004, KWhToMW(900, kwh), 1e-12)
}
