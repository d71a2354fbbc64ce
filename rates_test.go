package srcmanager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatePair_MaxOutput(t *testing.T) {
	tests := []struct {
		pair RatePair
		n    int
		want int
	}{
		{RatePair{RateDAT, RateDAT}, 4, 4},
		{RatePair{RateCD, RateHiRes192}, 4, 18},
		{RatePair{RateDAT, RateHiRes192}, 4, 16},
		{RatePair{RateHiRes192, RateCD}, 4, 1},
		{RatePair{RateDAT, RateCD}, 256, 236},
		{RatePair{0, RateCD}, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.pair.MaxOutput(tt.n), "%s n=%d", tt.pair, tt.n)
	}
}

// Every supported pair within the default worst case fits 5*N samples.
func TestRatePair_WorstCaseCoversSupportedPairs(t *testing.T) {
	for _, in := range SupportedRates() {
		for _, out := range SupportedRates() {
			p := RatePair{Input: in, Output: out}
			if p.Validate(DefaultRatioMax) != nil {
				continue
			}
			assert.LessOrEqual(t, p.MaxOutput(DefaultInSamples), DefaultRatioMax*DefaultInSamples, "%s", p)
		}
	}
}

func TestRatePair_Validate(t *testing.T) {
	require.NoError(t, RatePair{RateCD, RateHiRes192}.Validate(5))
	require.ErrorIs(t, RatePair{RateCD, RateHiRes192}.Validate(4), ErrInvalidRate)
	require.ErrorIs(t, RatePair{11025, RateDAT}.Validate(5), ErrInvalidRate)
	require.ErrorIs(t, RatePair{RateDAT, 0}.Validate(5), ErrInvalidRate)
}

func TestRatePair_RatioAndString(t *testing.T) {
	p := RatePair{Input: RateDAT, Output: RateHiRes96}
	assert.InDelta(t, 2.0, p.Ratio(), 1e-12)
	assert.Equal(t, "48000->96000", p.String())
	assert.Zero(t, RatePair{}.Ratio())
}

func TestSupportedRates_ReturnsCopy(t *testing.T) {
	rates := SupportedRates()
	rates[0] = 1
	assert.True(t, IsSupportedRate(RateCD))
	assert.False(t, IsSupportedRate(1))
}

func TestRateMailbox_LatchAndTake(t *testing.T) {
	mb := newRateMailbox(RatePair{RateDAT, RateDAT})

	_, ok := mb.take()
	assert.False(t, ok, "nothing latched at start")

	next, latched, err := mb.update(5, func(p *RatePair) { p.Output = RateHiRes96 })
	require.NoError(t, err)
	assert.True(t, latched)
	assert.Equal(t, RatePair{RateDAT, RateHiRes96}, next)

	got, ok := mb.take()
	require.True(t, ok)
	assert.Equal(t, next, got)

	_, ok = mb.take()
	assert.False(t, ok, "a latch is consumed exactly once")
}

func TestRateMailbox_SameValueDoesNotLatch(t *testing.T) {
	mb := newRateMailbox(RatePair{RateDAT, RateDAT})

	_, latched, err := mb.update(5, func(p *RatePair) { p.Output = RateDAT })
	require.NoError(t, err)
	assert.False(t, latched)

	_, pending := mb.peek()
	assert.False(t, pending)
}

func TestRateMailbox_ConcurrentNotificationsNeverLost(t *testing.T) {
	mb := newRateMailbox(RatePair{RateDAT, RateDAT})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, _ = mb.update(5, func(p *RatePair) { p.Input = RateCD })
	}()
	go func() {
		defer wg.Done()
		_, _, _ = mb.update(5, func(p *RatePair) { p.Output = RateHiRes192 })
	}()
	wg.Wait()

	got, ok := mb.take()
	require.True(t, ok)
	assert.Equal(t, RatePair{RateCD, RateHiRes192}, got)
}
