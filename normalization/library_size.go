package normalization

import (
	"fmt"

	"github.com/CChahrour/SeqNado/counts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LibrarySizeFactors returns mean(sizes)/sizes[j] for every library in a
// comparison group. The largest library gets the smallest factor.
func LibrarySizeFactors(sizes []int64) ([]float64, error) {
	if len(sizes) == 0 {
		return nil, dataError("", "empty comparison group")
	}
	x := make([]float64, len(sizes))
	for i, n := range sizes {
		if n <= 0 {
			return nil, dataError(fmt.Sprintf("library_size=%d", n), "library size must be positive")
		}
		x[i] = float64(n)
	}
	mean := stat.Mean(x, nil)
	factors := make([]float64, len(x))
	for i := range x {
		f, err := checkFactor(mean/x[i], fmt.Sprintf("library_size=%d", sizes[i]))
		if err != nil {
			return nil, err
		}
		factors[i] = f
	}
	return factors, nil
}

// LibrarySizeMerged returns the factor of the concatenation of libraries with
// the given per-sample factors. Factors are proportional to 1/L, so the pooled
// library L_1+...+L_n gets 1/(1/f_1 + ... + 1/f_n).
func LibrarySizeMerged(factors []float64) (float64, error) {
	switch len(factors) {
	case 0:
		return 0, dataError("", "no member factors")
	case 1:
		return checkFactor(factors[0], "")
	}
	recip := make([]float64, len(factors))
	for i, f := range factors {
		if _, err := checkFactor(f, ""); err != nil {
			return 0, err
		}
		recip[i] = 1 / f
	}
	return checkFactor(1/floats.Sum(recip), "")
}

// scalingGroup returns the comparison group of id: the members of the single
// scaling group that contains it, or every known sample when it is in none.
func (in *Inputs) scalingGroup(id counts.SampleID) ([]counts.SampleID, error) {
	var (
		found   []counts.SampleID
		groupID counts.GroupID
	)
	for _, g := range groupIDs(in.Design.ScalingGroups) {
		for _, m := range in.Design.ScalingGroups[g] {
			if m != id {
				continue
			}
			if found != nil {
				return nil, configError(fmt.Sprintf("sample=%s, scaling_groups=%s,%s", id, groupID, g),
					"sample is in more than one scaling group")
			}
			found, groupID = in.Design.ScalingGroups[g], g
			break
		}
	}
	if found != nil {
		return found, nil
	}
	if len(in.Design.Samples) == 0 {
		return in.Source.Bins.Samples(), nil
	}
	var all []counts.SampleID
	for _, s := range in.Design.Samples {
		if _, ok := in.Source.Bins[s]; ok {
			all = append(all, s)
		}
	}
	return all, nil
}

type librarySizePolicy struct{}

func (librarySizePolicy) Method() Method { return LibrarySize }

func (librarySizePolicy) PerSample(in *Inputs, sample counts.SampleID) (float64, error) {
	if _, err := in.binCount(sample); err != nil {
		return 0, err
	}
	group, err := in.scalingGroup(sample)
	if err != nil {
		return 0, err
	}
	sizes := make([]int64, len(group))
	self := -1
	for i, id := range group {
		n, err := in.binCount(id)
		if err != nil {
			return 0, err
		}
		if n <= 0 {
			return 0, dataError(fmt.Sprintf("sample=%s, library_size=%d", id, n),
				"zero library size in comparison group")
		}
		sizes[i] = n
		if id == sample {
			self = i
		}
	}
	factors, err := LibrarySizeFactors(sizes)
	if err != nil {
		return 0, err
	}
	return factors[self], nil
}

func (librarySizePolicy) Merged(_ *Inputs, members []counts.SampleID, perSample map[counts.SampleID]float64) (float64, error) {
	factors := make([]float64, len(members))
	for i, id := range members {
		f, ok := perSample[id]
		if !ok {
			return 0, referentialError(fmt.Sprintf("sample=%s", id), "member has no library size factor")
		}
		factors[i] = f
	}
	return LibrarySizeMerged(factors)
}

// groupIDs returns the keys of m in sorted order.
func groupIDs(m map[counts.GroupID][]counts.SampleID) []counts.GroupID {
	ids := make([]counts.GroupID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	counts.SortGroups(ids)
	return ids
}
