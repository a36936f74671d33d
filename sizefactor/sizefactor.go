// Package sizefactor estimates per-sample scale factors from a gene count
// matrix with the median-of-ratios method.
package sizefactor

import (
	"context"
	"math"
	"sort"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MedianRatio is a normalization.Estimator.
//
// The reference of gene i is the geometric mean of its counts over all
// samples; genes with a zero count in any sample have no reference and are
// ignored. The size factor of sample j is the median over genes of
// k_ij / reference_i, and the returned scale factor is its reciprocal, so that
// multiplying coverage by it removes the depth difference.
type MedianRatio struct{}

// EstimateFactors implements normalization.Estimator.
func (MedianRatio) EstimateFactors(ctx context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sizes, err := SizeFactors(m)
	if err != nil {
		return nil, err
	}
	factors := make(map[counts.SampleID]float64, len(sizes))
	for j, id := range m.Samples {
		factors[id] = 1 / sizes[j]
	}
	return factors, nil
}

// SizeFactors returns the median-of-ratios size factor of every column of m.
func SizeFactors(m *counts.GeneMatrix) ([]float64, error) {
	nSamples := len(m.Samples)
	if nSamples == 0 {
		return nil, errors.New("no samples")
	}
	var (
		logRatios = make([][]float64, nSamples) // per sample, over usable genes
		logRow    = make([]float64, nSamples)
		usable    int
	)
gene:
	for _, row := range m.Counts {
		for j, n := range row {
			if n <= 0 {
				continue gene
			}
			logRow[j] = math.Log(float64(n))
		}
		logRef := stat.Mean(logRow, nil)
		for j := range logRow {
			logRatios[j] = append(logRatios[j], logRow[j]-logRef)
		}
		usable++
	}
	if usable == 0 {
		return nil, errors.Errorf("none of %d genes has a nonzero count in every sample", len(m.Genes))
	}
	log.Debug.Printf("sizefactor: %d of %d genes used as reference", usable, len(m.Genes))
	sizes := make([]float64, nSamples)
	for j, ratios := range logRatios {
		sizes[j] = math.Exp(median(ratios))
	}
	if floats.HasNaN(sizes) {
		return nil, errors.New("size factor is NaN")
	}
	return sizes, nil
}

// median returns the median of x, averaging the two middle values when len(x)
// is even. x is sorted in place.
func median(x []float64) float64 {
	sort.Float64s(x)
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}
