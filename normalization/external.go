package normalization

import (
	"context"
	"fmt"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/stat"
)

// Estimator fits a size-factor model to a gene count matrix and returns one
// factor per sample column. Implementations may be arbitrarily complex; the
// engine only checks that every returned factor is present and positive.
type Estimator interface {
	EstimateFactors(ctx context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(ctx context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error)

// EstimateFactors implements Estimator.
func (f EstimatorFunc) EstimateFactors(ctx context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error) {
	return f(ctx, m)
}

// ValidateMatrix checks that m can be handed to an Estimator: it has at least
// one gene and one sample, and no gene or sample has only zero counts.
func ValidateMatrix(m *counts.GeneMatrix) error {
	if len(m.Genes) == 0 || len(m.Samples) == 0 {
		return dataError(fmt.Sprintf("genes=%d, samples=%d", len(m.Genes), len(m.Samples)), "empty gene count matrix")
	}
	colTotals := make([]int64, len(m.Samples))
	for i, row := range m.Counts {
		var total int64
		for j, n := range row {
			total += n
			colTotals[j] += n
		}
		if total == 0 {
			return dataError(fmt.Sprintf("gene=%s", m.Genes[i]), "gene has zero counts in every sample")
		}
	}
	for j, total := range colTotals {
		if total == 0 {
			return dataError(fmt.Sprintf("sample=%s", m.Samples[j]), "sample has zero counts for every gene")
		}
	}
	return nil
}

// ExternalModelMerged returns the arithmetic mean of the members' factors.
//
// This is an approximation, not a pooling identity: the estimator's model
// needs between-sample variance, which a merged pseudo-sample lacks, so it
// cannot be refitted on the merged data.
func ExternalModelMerged(factors []float64) (float64, error) {
	if len(factors) == 0 {
		return 0, dataError("", "no member factors")
	}
	for _, f := range factors {
		if _, err := checkFactor(f, ""); err != nil {
			return 0, err
		}
	}
	return checkFactor(stat.Mean(factors, nil), "")
}

// estimate runs e once over the source gene matrix, restricted to
// controlGenes, and records the result in in. Failures are recorded too, and
// reported by every ExternalModel unit.
func (in *Inputs) estimate(ctx context.Context, e Estimator, controlGenes []string) {
	if in.Source.Genes == nil {
		in.estimateErr = configError("", "no gene count matrix was provided")
		return
	}
	if e == nil {
		in.estimateErr = configError("", "no external estimator was configured")
		return
	}
	m := in.Source.Genes.Restrict(controlGenes)
	if err := ValidateMatrix(m); err != nil {
		in.estimateErr = err
		return
	}
	log.Debug.Printf("normalization: estimating factors over %d genes, %d samples", len(m.Genes), len(m.Samples))
	factors, err := e.EstimateFactors(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			in.estimateErr = ctx.Err()
			return
		}
		in.estimateErr = dataError("", "external estimator: %v", err)
		return
	}
	in.Estimated = factors
}

type externalModelPolicy struct{}

func (externalModelPolicy) Method() Method { return ExternalModel }

func (externalModelPolicy) PerSample(in *Inputs, sample counts.SampleID) (float64, error) {
	if in.estimateErr != nil {
		return 0, in.estimateErr
	}
	if in.Source.Genes == nil {
		return 0, configError("", "no gene count matrix was provided")
	}
	if in.Source.Genes.SampleIndex(sample) < 0 {
		return 0, referentialError(fmt.Sprintf("sample=%s", sample), "sample has no gene count column")
	}
	f, ok := in.Estimated[sample]
	if !ok {
		return 0, dataError(fmt.Sprintf("sample=%s", sample), "external estimator returned no factor")
	}
	return checkFactor(f, fmt.Sprintf("sample=%s", sample))
}

func (externalModelPolicy) Merged(_ *Inputs, members []counts.SampleID, perSample map[counts.SampleID]float64) (float64, error) {
	factors := make([]float64, len(members))
	for i, id := range members {
		f, ok := perSample[id]
		if !ok {
			return 0, referentialError(fmt.Sprintf("sample=%s", id), "member has no external model factor")
		}
		factors[i] = f
	}
	return ExternalModelMerged(factors)
}
