package srcmanager

import (
	"fmt"
	"slices"
)

// Assignment is the static partition of channels across instances. Instance
// i owns the contiguous channels [i*per, (i+1)*per). It is computed once in
// New and never changes.
type Assignment struct {
	perInstance int
	instanceOf  []int   // indexed by channel
	channelsOf  [][]int // indexed by instance
}

// NewAssignment partitions channels across instances.
func NewAssignment(channels, instances int) (*Assignment, error) {
	if channels < 1 || instances < 1 {
		return nil, fmt.Errorf("%w: need at least one channel and one instance", ErrConfiguration)
	}
	if channels%instances != 0 {
		return nil, fmt.Errorf("%w: %d channels do not divide evenly across %d instances",
			ErrConfiguration, channels, instances)
	}

	per := channels / instances
	a := &Assignment{
		perInstance: per,
		instanceOf:  make([]int, channels),
		channelsOf:  make([][]int, instances),
	}

	for inst := range instances {
		group := make([]int, per)
		for j := range per {
			ch := inst*per + j
			group[j] = ch
			a.instanceOf[ch] = inst
		}
		a.channelsOf[inst] = group
	}

	return a, nil
}

// Channels returns the total channel count.
func (a *Assignment) Channels() int {
	return len(a.instanceOf)
}

// Instances returns the instance count.
func (a *Assignment) Instances() int {
	return len(a.channelsOf)
}

// ChannelsPerInstance returns the group size.
func (a *Assignment) ChannelsPerInstance() int {
	return a.perInstance
}

// InstanceOf returns the instance that owns ch, or -1 if ch is out of range.
func (a *Assignment) InstanceOf(ch int) int {
	if ch < 0 || ch >= len(a.instanceOf) {
		return -1
	}
	return a.instanceOf[ch]
}

// ChannelsOf returns a copy of the channels owned by inst.
func (a *Assignment) ChannelsOf(inst int) []int {
	if inst < 0 || inst >= len(a.channelsOf) {
		return nil
	}
	return slices.Clone(a.channelsOf[inst])
}

// span returns the half-open channel range owned by inst.
func (a *Assignment) span(inst int) (lo, hi int) {
	lo = inst * a.perInstance
	return lo, lo + a.perInstance
}
