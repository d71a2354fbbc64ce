package srcmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignment_Partition(t *testing.T) {
	tests := []struct {
		channels, instances int
	}{
		{2, 2},
		{2, 1},
		{8, 4},
		{8, 2},
		{6, 3},
		{16, 16},
	}

	for _, tt := range tests {
		a, err := NewAssignment(tt.channels, tt.instances)
		require.NoError(t, err)

		per := a.ChannelsPerInstance()
		assert.Equal(t, tt.channels, tt.instances*per, "no channel may be left over")
		assert.Equal(t, tt.channels, a.Channels())
		assert.Equal(t, tt.instances, a.Instances())

		seen := make(map[int]int)
		for inst := range tt.instances {
			group := a.ChannelsOf(inst)
			assert.Len(t, group, per)
			for _, ch := range group {
				seen[ch]++
				assert.Equal(t, inst, a.InstanceOf(ch))
			}
		}
		assert.Len(t, seen, tt.channels)
		for ch, n := range seen {
			assert.Equal(t, 1, n, "channel %d assigned %d times", ch, n)
		}
	}
}

func TestNewAssignment_Errors(t *testing.T) {
	_, err := NewAssignment(3, 2)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewAssignment(0, 1)
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewAssignment(2, 0)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestAssignment_OutOfRange(t *testing.T) {
	a, err := NewAssignment(4, 2)
	require.NoError(t, err)

	assert.Equal(t, -1, a.InstanceOf(-1))
	assert.Equal(t, -1, a.InstanceOf(4))
	assert.Nil(t, a.ChannelsOf(2))
}

func TestAssignment_ChannelsOfIsACopy(t *testing.T) {
	a, err := NewAssignment(4, 2)
	require.NoError(t, err)

	group := a.ChannelsOf(0)
	group[0] = 99
	assert.Equal(t, []int{0, 1}, a.ChannelsOf(0))
}

func TestAssignment_Span(t *testing.T) {
	a, err := NewAssignment(6, 3)
	require.NoError(t, err)

	lo, hi := a.span(2)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 6, hi)
}
