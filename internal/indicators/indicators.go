package indicators

import (
	"errors"
	"fmt"
	"math"

	"paper-trade-bot-go/internal/config"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientData is returned when there are too few closes for the
// slowest indicator.
var ErrInsufficientData = errors.New("insufficient data")

// Params holds indicator periods.
type Params struct {
	RSIPeriod  int
	EMAFast    int
	EMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	BBPeriod   int
	BBStdDev   float64
}

// ParamsFromConfig builds Params from the strategy section of the config.
func ParamsFromConfig(cfg config.Strategy) Params {
	return Params{
		RSIPeriod:  cfg.RSIPeriod,
		EMAFast:    cfg.EMAFast,
		EMASlow:    cfg.EMASlow,
		MACDFast:   cfg.MACDFast,
		MACDSlow:   cfg.MACDSlow,
		MACDSignal: cfg.MACDSignal,
		BBPeriod:   cfg.BBPeriod,
		BBStdDev:   cfg.BBStdDev,
	}
}

// MinCloses returns how many closes Latest needs. One extra bar is kept so the
// previous EMA pair is valid too.
func (p Params) MinCloses() int {
	n := p.EMASlow + 1
	n = max(n, p.EMAFast+1)
	n = max(n, p.RSIPeriod+2)
	n = max(n, p.MACDSlow+p.MACDSignal-1)
	n = max(n, p.BBPeriod)
	return n
}

// Snapshot holds the latest indicator values and the previous EMA pair used
// for crossover detection.
type Snapshot struct {
	Close       float64 `json:"close"`
	RSI         float64 `json:"rsi"`
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	PrevEMAFast float64 `json:"prev_ema_fast"`
	PrevEMASlow float64 `json:"prev_ema_slow"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	MACDHist    float64 `json:"macd_histogram"`
	BBUpper     float64 `json:"bb_upper"`
	BBMiddle    float64 `json:"bb_middle"`
	BBLower     float64 `json:"bb_lower"`
}

// FastAboveSlow reports whether the fast EMA is above the slow EMA.
func (s Snapshot) FastAboveSlow() bool {
	return s.EMAFast > s.EMASlow
}

// PrevFastAboveSlow reports whether the fast EMA was above the slow EMA one bar ago.
func (s Snapshot) PrevFastAboveSlow() bool {
	return s.PrevEMAFast > s.PrevEMASlow
}

// Latest computes every indicator over closes (oldest first) and returns the
// values of the last bar.
func Latest(closes []float64, p Params) (Snapshot, error) {
	if need := p.MinCloses(); len(closes) < need {
		return Snapshot{}, fmt.Errorf("%w: have %d closes, need %d", ErrInsufficientData, len(closes), need)
	}

	last := len(closes) - 1
	rsi := talib.Rsi(closes, p.RSIPeriod)
	fast := talib.Ema(closes, p.EMAFast)
	slow := talib.Ema(closes, p.EMASlow)
	macd, signal, hist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	upper, middle, lower := talib.BBands(closes, p.BBPeriod, p.BBStdDev, p.BBStdDev, talib.SMA)

	s := Snapshot{
		Close:       closes[last],
		RSI:         rsi[last],
		EMAFast:     fast[last],
		EMASlow:     slow[last],
		PrevEMAFast: fast[last-1],
		PrevEMASlow: slow[last-1],
		MACD:        macd[last],
		MACDSignal:  signal[last],
		MACDHist:    hist[last],
		BBUpper:     upper[last],
		BBMiddle:    middle[last],
		BBLower:     lower[last],
	}

	for _, v := range []float64{s.RSI, s.EMAFast, s.EMASlow, s.PrevEMAFast, s.PrevEMASlow} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Snapshot{}, fmt.Errorf("%w: indicator not yet defined", ErrInsufficientData)
		}
	}
	return s, nil
}
