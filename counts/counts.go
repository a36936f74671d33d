package counts

import "sort"

// SampleID identifies a sequenced sample. It is unique within a project.
type SampleID string

// GroupID names a set of samples, e.g. the replicates of one condition.
type GroupID string

// SpikeInCounts is the number of reads a sample has mapped to the reference
// genome and to the spike-in genome.
type SpikeInCounts struct {
	Reference int64
	SpikeIn   int64
}

// Add returns the element-wise sum of c and o. It is the count that would be
// observed after concatenating the two samples' reads.
func (c SpikeInCounts) Add(o SpikeInCounts) SpikeInCounts {
	c.Reference += o.Reference
	c.SpikeIn += o.SpikeIn
	return c
}

// SpikeInTable maps samples to their spike-in counts.
type SpikeInTable map[SampleID]SpikeInCounts

// Samples returns the samples in the table in sorted order.
func (t SpikeInTable) Samples() []SampleID {
	ids := make([]SampleID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	SortSamples(ids)
	return ids
}

// BinCounts maps samples to their library size, summed over a bin annotation
// shared by every sample in the table.
type BinCounts map[SampleID]int64

// Samples returns the samples in the table in sorted order.
func (b BinCounts) Samples() []SampleID {
	ids := make([]SampleID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	SortSamples(ids)
	return ids
}

// SortSamples sorts ids in place.
func SortSamples(ids []SampleID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// SortGroups sorts ids in place.
func SortGroups(ids []GroupID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
