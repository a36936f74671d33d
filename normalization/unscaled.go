package normalization

import "github.com/CChahrour/SeqNado/counts"

// unscaledPolicy makes "no normalization" an explicit choice.
type unscaledPolicy struct{}

func (unscaledPolicy) Method() Method { return Unscaled }

func (unscaledPolicy) PerSample(*Inputs, counts.SampleID) (float64, error) { return 1, nil }

func (unscaledPolicy) Merged(*Inputs, []counts.SampleID, map[counts.SampleID]float64) (float64, error) {
	return 1, nil
}
