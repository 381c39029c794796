package indicators

import (
	"testing"

	"paper-trade-bot-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultParams = Params{
	RSIPeriod:  14,
	EMAFast:    12,
	EMASlow:    26,
	MACDFast:   12,
	MACDSlow:   26,
	MACDSignal: 9,
	BBPeriod:   20,
	BBStdDev:   2,
}

func series(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestMinCloses(t *testing.T) {
	// MACD needs slow + signal - 1 bars
	assert.Equal(t, 34, defaultParams.MinCloses())

	short := Params{RSIPeriod: 14, EMAFast: 3, EMASlow: 5, MACDFast: 3, MACDSlow: 5, MACDSignal: 2, BBPeriod: 5, BBStdDev: 2}
	assert.Equal(t, 16, short.MinCloses())
}

func TestLatest_InsufficientData(t *testing.T) {
	_, err := Latest(series(10, 100, 1), defaultParams)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLatest_RisingSeries(t *testing.T) {
	closes := series(100, 100, 1)

	s, err := Latest(closes, defaultParams)

	require.NoError(t, err)
	assert.Equal(t, 199.0, s.Close)
	assert.InDelta(t, 100.0, s.RSI, 1e-9)
	assert.True(t, s.FastAboveSlow())
	assert.True(t, s.PrevFastAboveSlow())
	assert.Greater(t, s.MACD, 0.0)
	assert.Less(t, s.BBLower, s.BBMiddle)
	assert.Less(t, s.BBMiddle, s.BBUpper)
	// SMA(20) of 180..199
	assert.InDelta(t, 189.5, s.BBMiddle, 1e-9)
}

func TestLatest_FallingSeries(t *testing.T) {
	s, err := Latest(series(60, 500, -2), defaultParams)

	require.NoError(t, err)
	assert.InDelta(t, 0.0, s.RSI, 1e-9)
	assert.False(t, s.FastAboveSlow())
	assert.Less(t, s.MACD, 0.0)
}

func TestLatest_ConstantSeries(t *testing.T) {
	s, err := Latest(series(50, 42, 0), defaultParams)

	require.NoError(t, err)
	assert.InDelta(t, 42.0, s.EMAFast, 1e-9)
	assert.InDelta(t, 42.0, s.EMASlow, 1e-9)
	assert.InDelta(t, 42.0, s.BBUpper, 1e-9)
	assert.InDelta(t, 0.0, s.MACDHist, 1e-9)
}

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFromConfig(config.Strategy{RSIPeriod: 7, EMAFast: 5, EMASlow: 10, MACDFast: 5, MACDSlow: 10, MACDSignal: 3, BBPeriod: 8, BBStdDev: 1.5})
	assert.Equal(t, 7, p.RSIPeriod)
	assert.Equal(t, 1.5, p.BBStdDev)
	assert.Equal(t, 12, p.MinCloses())
}
