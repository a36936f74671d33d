package normalization

import (
	"fmt"

	"github.com/CChahrour/SeqNado/counts"
)

// SpikeInDirectFactor returns 1e6 / spikeIn, the reads-per-million-spike-in
// factor.
func SpikeInDirectFactor(spikeIn int64) (float64, error) {
	values := fmt.Sprintf("spikein_reads=%d", spikeIn)
	if spikeIn <= 0 {
		return 0, dataError(values, "no spike-in reads, cannot normalize")
	}
	return checkFactor(1e6/float64(spikeIn), values)
}

// SpikeInDirectMerged returns the factor of the concatenation of samples with
// the given spike-in read counts: 1e6 / sum(spikeIn). It is not the mean of the
// per-sample factors, which is biased whenever the depths differ.
func SpikeInDirectMerged(spikeIn []int64) (float64, error) {
	var total int64
	for _, n := range spikeIn {
		total += n
	}
	return SpikeInDirectFactor(total)
}

type spikeInDirectPolicy struct{}

func (spikeInDirectPolicy) Method() Method { return SpikeInDirect }

func (spikeInDirectPolicy) PerSample(in *Inputs, sample counts.SampleID) (float64, error) {
	c, err := in.spikeIn(sample)
	if err != nil {
		return 0, err
	}
	return SpikeInDirectFactor(c.SpikeIn)
}

func (spikeInDirectPolicy) Merged(in *Inputs, members []counts.SampleID, _ map[counts.SampleID]float64) (float64, error) {
	pooled := make([]int64, len(members))
	for i, id := range members {
		c, err := in.spikeIn(id)
		if err != nil {
			return 0, err
		}
		pooled[i] = c.SpikeIn
	}
	return SpikeInDirectMerged(pooled)
}
