package normalization

import (
	"context"
	"fmt"
	"testing"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/vcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() Source {
	return Source{
		SpikeIn: counts.SpikeInTable{
			"ip1":   {Reference: 1000, SpikeIn: 50},
			"ip2":   {Reference: 3000, SpikeIn: 100},
			"input": {Reference: 2000, SpikeIn: 80},
		},
		Bins: counts.BinCounts{"ip1": 10, "ip2": 20, "input": 30},
		Genes: &counts.GeneMatrix{
			Genes:   []string{"ercc1", "ercc2", "actb"},
			Samples: []counts.SampleID{"ip1", "ip2", "input"},
			Counts:  [][]int64{{5, 10, 7}, {3, 6, 4}, {100, 0, 50}},
		},
	}
}

func testOpts() Opts {
	opts := DefaultOpts
	opts.Methods = Methods
	opts.Design = Design{
		Samples: []counts.SampleID{"ip1", "ip2", "input"},
		Groups: map[counts.GroupID][]counts.SampleID{
			"chip":    {"ip1", "ip2"},
			"control": {"input"},
		},
		Controls: map[counts.SampleID][]counts.SampleID{
			"ip1": {"input"},
			"ip2": {"input"},
		},
	}
	opts.Estimator = fixedEstimator(map[counts.SampleID]float64{"ip1": 0.5, "ip2": 1.5, "input": 1})
	return opts
}

func fixedEstimator(factors map[counts.SampleID]float64) Estimator {
	return EstimatorFunc(func(_ context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error) {
		out := map[counts.SampleID]float64{}
		for _, id := range m.Samples {
			if f, ok := factors[id]; ok {
				out[id] = f
			}
		}
		return out, nil
	})
}

func lookup(t *testing.T, res *Result, subject string, group bool, m Method) float64 {
	f, ok := res.Lookup(subject, group, m)
	require.True(t, ok, "%s %s (%s): %v", subjectKind(group), subject, m, res.Failure(subject, group, m))
	return f
}

func requireFailure(t *testing.T, res *Result, subject string, group bool, m Method, kind Kind) *Error {
	e := res.Failure(subject, group, m)
	require.NotNil(t, e, "%s %s (%s) did not fail", subjectKind(group), subject, m)
	assert.Equal(t, kind, e.Kind, "%v", e)
	_, ok := res.Lookup(subject, group, m)
	assert.False(t, ok)
	return e
}

func TestCompute(t *testing.T) {
	ctx := vcontext.Background()
	res, err := Compute(ctx, testSource(), testOpts())
	require.NoError(t, err)
	require.NoError(t, res.Err())
	// 3 samples and 2 groups for each of the 5 methods.
	assert.Len(t, res.Factors, 25)

	tests := []struct {
		subject string
		group   bool
		method  Method
		want    float64
	}{
		{"ip1", false, Unscaled, 1},
		{"chip", true, Unscaled, 1},

		{"ip1", false, SpikeInDirect, 20000},
		{"ip2", false, SpikeInDirect, 10000},
		{"input", false, SpikeInDirect, 12500},
		{"chip", true, SpikeInDirect, 1e6 / 150.0},
		{"control", true, SpikeInDirect, 12500},

		{"ip1", false, SpikeInRatio, 8000},
		{"ip2", false, SpikeInRatio, 4000},
		{"input", false, SpikeInRatio, 1},
		{"chip", true, SpikeInRatio, 160e7 / (150 * 4000.0)},
		{"control", true, SpikeInRatio, 1},

		{"ip1", false, LibrarySize, 2},
		{"ip2", false, LibrarySize, 1},
		{"input", false, LibrarySize, 2.0 / 3},
		{"chip", true, LibrarySize, 2.0 / 3},
		{"control", true, LibrarySize, 2.0 / 3},

		{"ip1", false, ExternalModel, 0.5},
		{"input", false, ExternalModel, 1},
		{"chip", true, ExternalModel, 1},
		{"control", true, ExternalModel, 1},
	}
	for _, test := range tests {
		got := lookup(t, res, test.subject, test.group, test.method)
		assert.InDelta(t, test.want, got, 1e-9, "%s (%s)", test.subject, test.method)
	}

	// A group of one gets exactly its member's factor.
	for _, m := range Methods {
		assert.Equal(t, lookup(t, res, "input", false, m), lookup(t, res, "control", true, m), "%v", m)
	}

	assert.Equal(t, Factor{Subject: "input", Method: Unscaled, Value: 1}, res.Factors[0])
	assert.Equal(t, Factor{Subject: "control", Group: true, Method: ExternalModel, Value: 1}, res.Factors[len(res.Factors)-1])
}

func TestComputeDeterministic(t *testing.T) {
	ctx := vcontext.Background()
	opts := testOpts()
	opts.Parallelism = 1
	want, err := Compute(ctx, testSource(), opts)
	require.NoError(t, err)
	for _, parallelism := range []int{2, 7, 64} {
		opts.Parallelism = parallelism
		for i := 0; i < 3; i++ {
			got, err := Compute(ctx, testSource(), opts)
			require.NoError(t, err)
			assert.Equal(t, want, got, "parallelism %d", parallelism)
		}
	}
}

func TestComputeErrorIsolation(t *testing.T) {
	ctx := vcontext.Background()
	src := testSource()
	src.SpikeIn["ip1"] = counts.SpikeInCounts{Reference: 1000, SpikeIn: 0}
	opts := testOpts()
	opts.Methods = []Method{Unscaled, SpikeInDirect, SpikeInRatio}

	res, err := Compute(ctx, src, opts)
	require.NoError(t, err)
	require.Error(t, res.Err())

	e := requireFailure(t, res, "ip1", false, SpikeInDirect, DataError)
	assert.Equal(t, "spikein_reads=0", e.Values)
	assert.Equal(t, `data error: sample ip1 (spikein_direct): spikein_reads=0: no spike-in reads, cannot normalize`, e.Error())
	requireFailure(t, res, "ip1", false, SpikeInRatio, DataError)

	e = requireFailure(t, res, "chip", true, SpikeInDirect, DataError)
	assert.Equal(t, "member=ip1", e.Values)
	requireFailure(t, res, "chip", true, SpikeInRatio, DataError)

	assert.Equal(t, 10000.0, lookup(t, res, "ip2", false, SpikeInDirect))
	assert.Equal(t, 4000.0, lookup(t, res, "ip2", false, SpikeInRatio))
	assert.Equal(t, 12500.0, lookup(t, res, "control", true, SpikeInDirect))
	assert.Equal(t, 1.0, lookup(t, res, "ip1", false, Unscaled))
	assert.Equal(t, 1.0, lookup(t, res, "chip", true, Unscaled))
	assert.Len(t, res.Failures, 4)
}

func TestComputeReferentialErrors(t *testing.T) {
	ctx := vcontext.Background()
	opts := testOpts()
	opts.Design.Samples = append(opts.Design.Samples, "ghost")
	opts.Design.Groups["ghosts"] = []counts.SampleID{"ghost", "ip1"}
	opts.Design.Controls["ip3"] = []counts.SampleID{"missing_input"}

	src := testSource()
	src.SpikeIn["ip3"] = counts.SpikeInCounts{Reference: 100, SpikeIn: 10}
	res, err := Compute(ctx, src, opts)
	require.NoError(t, err)

	for _, m := range []Method{SpikeInDirect, SpikeInRatio, LibrarySize, ExternalModel} {
		e := requireFailure(t, res, "ghost", false, m, ReferentialError)
		assert.Contains(t, e.Values, "sample=ghost")
		requireFailure(t, res, "ghosts", true, m, ReferentialError)
	}
	assert.Equal(t, 1.0, lookup(t, res, "ghost", false, Unscaled))
	assert.Equal(t, 1.0, lookup(t, res, "ghosts", true, Unscaled))

	e := requireFailure(t, res, "ip3", false, SpikeInRatio, ReferentialError)
	assert.Equal(t, "sample=missing_input", e.Values)
	// The control of ip3 is not in the count source, but it is a control.
	requireFailure(t, res, "missing_input", false, SpikeInDirect, ReferentialError)
	assert.Equal(t, 1.0, lookup(t, res, "missing_input", false, SpikeInRatio))
	assert.Equal(t, 8000.0, lookup(t, res, "ip1", false, SpikeInRatio))
}

func TestComputeConfigurationErrors(t *testing.T) {
	ctx := vcontext.Background()

	t.Run("controls", func(t *testing.T) {
		opts := testOpts()
		opts.Methods = []Method{SpikeInRatio}
		opts.Design.Controls["ip1"] = []counts.SampleID{"input", "ip2"}
		opts.Design.Controls["ip2"] = nil
		res, err := Compute(ctx, testSource(), opts)
		require.NoError(t, err)
		e := requireFailure(t, res, "ip1", false, SpikeInRatio, ConfigurationError)
		assert.Equal(t, "sample=ip1, controls=input,ip2", e.Values)
		requireFailure(t, res, "ip2", false, SpikeInRatio, DataError)
		assert.Equal(t, 1.0, lookup(t, res, "input", false, SpikeInRatio))
	})

	t.Run("self control", func(t *testing.T) {
		opts := testOpts()
		opts.Methods = []Method{SpikeInRatio}
		opts.Design.Controls["ip1"] = []counts.SampleID{"ip1"}
		res, err := Compute(ctx, testSource(), opts)
		require.NoError(t, err)
		requireFailure(t, res, "ip1", false, SpikeInRatio, ConfigurationError)
	})

	t.Run("mixed group", func(t *testing.T) {
		opts := testOpts()
		opts.Methods = []Method{SpikeInRatio}
		opts.Design.Groups["all"] = []counts.SampleID{"ip1", "input"}
		res, err := Compute(ctx, testSource(), opts)
		require.NoError(t, err)
		requireFailure(t, res, "all", true, SpikeInRatio, ConfigurationError)
		lookup(t, res, "chip", true, SpikeInRatio)
	})

	t.Run("empty group", func(t *testing.T) {
		opts := testOpts()
		opts.Design.Groups["nobody"] = nil
		res, err := Compute(ctx, testSource(), opts)
		require.NoError(t, err)
		for _, m := range Methods {
			requireFailure(t, res, "nobody", true, m, ConfigurationError)
		}
	})

	t.Run("no estimator", func(t *testing.T) {
		opts := testOpts()
		opts.Estimator = nil
		res, err := Compute(ctx, testSource(), opts)
		require.NoError(t, err)
		for _, id := range []string{"ip1", "ip2", "input"} {
			requireFailure(t, res, id, false, ExternalModel, ConfigurationError)
		}
		assert.Len(t, res.Failures, 5)
	})

	t.Run("missing source", func(t *testing.T) {
		src := testSource()
		src.SpikeIn = nil
		res, err := Compute(ctx, src, testOpts())
		require.NoError(t, err)
		requireFailure(t, res, "ip1", false, SpikeInDirect, ConfigurationError)
		requireFailure(t, res, "chip", true, SpikeInDirect, ConfigurationError)
		lookup(t, res, "ip1", false, LibrarySize)
	})
}

func TestComputeScalingGroups(t *testing.T) {
	ctx := vcontext.Background()
	opts := DefaultOpts
	opts.Methods = []Method{LibrarySize}
	opts.Design.ScalingGroups = map[counts.GroupID][]counts.SampleID{
		"a": {"s1", "s2"},
		"b": {"s3", "s4"},
	}
	opts.Design.Groups = map[counts.GroupID][]counts.SampleID{"a_merged": {"s1", "s2"}}

	res, err := Compute(ctx, Source{Bins: counts.BinCounts{"s1": 10, "s2": 30, "s3": 100, "s4": 100}}, opts)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 2.0, lookup(t, res, "s1", false, LibrarySize))
	assert.InDelta(t, 2.0/3, lookup(t, res, "s2", false, LibrarySize), 1e-12)
	assert.Equal(t, 1.0, lookup(t, res, "s3", false, LibrarySize))
	assert.Equal(t, 1.0, lookup(t, res, "s4", false, LibrarySize))
	// mean(10, 30) / (10 + 30)
	assert.InDelta(t, 0.5, lookup(t, res, "a_merged", true, LibrarySize), 1e-12)

	res, err = Compute(ctx, Source{Bins: counts.BinCounts{"s1": 10, "s2": 30, "s3": 100, "s4": 0}}, opts)
	require.NoError(t, err)
	for _, id := range []string{"s3", "s4"} {
		e := requireFailure(t, res, id, false, LibrarySize, DataError)
		assert.Equal(t, "sample=s4, library_size=0", e.Values)
	}
	assert.Equal(t, 2.0, lookup(t, res, "s1", false, LibrarySize))

	opts.Design.ScalingGroups["c"] = []counts.SampleID{"s1"}
	res, err = Compute(ctx, Source{Bins: counts.BinCounts{"s1": 10, "s2": 30, "s3": 100, "s4": 100}}, opts)
	require.NoError(t, err)
	requireFailure(t, res, "s1", false, LibrarySize, ConfigurationError)
	requireFailure(t, res, "a_merged", true, LibrarySize, ConfigurationError)
	assert.Equal(t, 1.0, lookup(t, res, "s3", false, LibrarySize))
}

func TestComputeNoDesign(t *testing.T) {
	ctx := vcontext.Background()
	opts := DefaultOpts
	opts.Methods = []Method{SpikeInDirect, LibrarySize}
	src := testSource()
	src.Bins["bins_only"] = 40
	res, err := Compute(ctx, src, opts)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 20000.0, lookup(t, res, "ip1", false, SpikeInDirect))
	_, ok := res.Lookup("bins_only", false, SpikeInDirect)
	assert.False(t, ok)
	// mean(10, 20, 30, 40) / 40
	assert.Equal(t, 0.625, lookup(t, res, "bins_only", false, LibrarySize))
}

func TestComputeExternalModel(t *testing.T) {
	ctx := vcontext.Background()
	opts := testOpts()
	opts.Methods = []Method{ExternalModel}
	opts.ControlGenes = []string{"ercc1", "ercc2"}
	var calls int
	opts.Estimator = EstimatorFunc(func(_ context.Context, m *counts.GeneMatrix) (map[counts.SampleID]float64, error) {
		calls++
		assert.Equal(t, []string{"ercc1", "ercc2"}, m.Genes)
		return map[counts.SampleID]float64{"ip1": 0.8, "ip2": 0}, nil
	})
	res, err := Compute(ctx, testSource(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0.8, lookup(t, res, "ip1", false, ExternalModel))
	e := requireFailure(t, res, "ip2", false, ExternalModel, DataError)
	assert.Contains(t, e.Values, "factor=0")
	requireFailure(t, res, "input", false, ExternalModel, DataError)
	requireFailure(t, res, "chip", true, ExternalModel, DataError)

	// "actb" has a zero count in ip2, but no gene is zero in every sample.
	opts.ControlGenes = nil
	opts.Estimator = fixedEstimator(map[counts.SampleID]float64{"ip1": 1, "ip2": 1, "input": 1})
	res, err = Compute(ctx, testSource(), opts)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	src := testSource()
	src.Genes.Counts[0][1], src.Genes.Counts[1][1], src.Genes.Counts[2][1] = 0, 0, 0
	res, err = Compute(ctx, src, opts)
	require.NoError(t, err)
	for _, id := range []string{"ip1", "ip2", "input"} {
		e := requireFailure(t, res, id, false, ExternalModel, DataError)
		assert.Equal(t, "sample=ip2", e.Values)
	}

	opts.Estimator = EstimatorFunc(func(context.Context, *counts.GeneMatrix) (map[counts.SampleID]float64, error) {
		return nil, fmt.Errorf("model did not converge")
	})
	res, err = Compute(ctx, testSource(), opts)
	require.NoError(t, err)
	e = requireFailure(t, res, "ip1", false, ExternalModel, DataError)
	assert.Contains(t, e.Error(), "model did not converge")
}

func TestComputeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(vcontext.Background())
	cancel()
	res, err := Compute(ctx, testSource(), testOpts())
	assert.Nil(t, res)
	assert.Equal(t, context.Canceled, err)
}

func TestOptsValidate(t *testing.T) {
	opts := DefaultOpts
	assert.NoError(t, opts.Validate())
	opts.Methods = nil
	assert.Error(t, opts.Validate())
	opts.Methods = []Method{Unscaled, Unscaled}
	assert.Error(t, opts.Validate())
	opts.Methods = []Method{Method(42)}
	assert.Error(t, opts.Validate())
	opts.Methods = []Method{LibrarySize}
	opts.Parallelism = -1
	assert.Error(t, opts.Validate())
}
