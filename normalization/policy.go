package normalization

import (
	"fmt"

	"github.com/CChahrour/SeqNado/counts"
)

// Policy computes scale factors for one Method.
//
// PerSample returns the factor of a single sample. Merged returns the factor of
// a group whose members' reads are concatenated; perSample holds the already
// computed factor of every member. Both must be pure: the same inputs always
// produce the bit-identical factor.
type Policy interface {
	Method() Method
	PerSample(in *Inputs, sample counts.SampleID) (float64, error)
	Merged(in *Inputs, members []counts.SampleID, perSample map[counts.SampleID]float64) (float64, error)
}

// PolicyFor returns the Policy implementing m.
func PolicyFor(m Method) Policy {
	switch m {
	case Unscaled:
		return unscaledPolicy{}
	case SpikeInDirect:
		return spikeInDirectPolicy{}
	case SpikeInRatio:
		return spikeInRatioPolicy{}
	case LibrarySize:
		return librarySizePolicy{}
	case ExternalModel:
		return externalModelPolicy{}
	}
	panic(fmt.Sprintf("normalization: no policy for %v", m))
}

// Source holds the count evidence of a run. A field may be nil when no
// requested method needs it.
type Source struct {
	SpikeIn counts.SpikeInTable
	Bins    counts.BinCounts
	Genes   *counts.GeneMatrix
}

// Inputs is the immutable snapshot policies read from.
type Inputs struct {
	Source Source
	Design Design
	// Estimated holds the factors returned by the external estimator. It is nil
	// until the estimator has run.
	Estimated map[counts.SampleID]float64

	estimateErr error
}

// spikeIn returns the spike-in counts of id.
func (in *Inputs) spikeIn(id counts.SampleID) (counts.SpikeInCounts, error) {
	if in.Source.SpikeIn == nil {
		return counts.SpikeInCounts{}, configError("", "no spike-in counts were provided")
	}
	c, ok := in.Source.SpikeIn[id]
	if !ok {
		return c, referentialError(fmt.Sprintf("sample=%s", id), "sample has no spike-in counts")
	}
	return c, nil
}

// binCount returns the library size of id.
func (in *Inputs) binCount(id counts.SampleID) (int64, error) {
	if in.Source.Bins == nil {
		return 0, configError("", "no bin counts were provided")
	}
	n, ok := in.Source.Bins[id]
	if !ok {
		return 0, referentialError(fmt.Sprintf("sample=%s", id), "sample has no bin counts")
	}
	return n, nil
}
