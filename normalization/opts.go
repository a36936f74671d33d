package normalization

import (
	"fmt"
	"runtime"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/errors"
)

// Design is the sample metadata of a run. The engine trusts it but checks
// that every sample it names can be resolved in the count source.
type Design struct {
	// Samples lists the samples to compute per-sample factors for. If empty,
	// every sample referenced below and every sample of each method's count
	// source is used.
	Samples []counts.SampleID
	// Groups maps each merge group (e.g. a condition's replicates) to its
	// members. One merged factor is computed per group and method.
	Groups map[counts.GroupID][]counts.SampleID
	// ScalingGroups partitions samples into LibrarySize comparison groups.
	ScalingGroups map[counts.GroupID][]counts.SampleID
	// Controls maps each IP sample to its control. Exactly one control per IP
	// sample is required by SpikeInRatio.
	Controls map[counts.SampleID][]counts.SampleID
}

// isControl reports whether id is listed as the control of some sample.
func (d *Design) isControl(id counts.SampleID) bool {
	for _, ctrls := range d.Controls {
		for _, c := range ctrls {
			if c == id {
				return true
			}
		}
	}
	return false
}

// subjects returns the sorted set of samples the design refers to.
func (d *Design) subjects() []counts.SampleID {
	seen := map[counts.SampleID]bool{}
	add := func(ids ...counts.SampleID) {
		for _, id := range ids {
			seen[id] = true
		}
	}
	add(d.Samples...)
	for _, members := range d.Groups {
		add(members...)
	}
	for _, members := range d.ScalingGroups {
		add(members...)
	}
	for ip, ctrls := range d.Controls {
		add(ip)
		add(ctrls...)
	}
	ids := make([]counts.SampleID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	counts.SortSamples(ids)
	return ids
}

// Opts controls Compute.
type Opts struct {
	// Methods lists the methods to compute factors for.
	Methods []Method
	Design  Design
	// ControlGenes restricts the ExternalModel gene matrix. Empty means every
	// gene.
	ControlGenes []string
	// Estimator computes ExternalModel factors.
	Estimator Estimator
	// Parallelism bounds the number of concurrently computed units. Zero means
	// runtime.NumCPU().
	Parallelism int
}

var DefaultOpts = Opts{
	Methods:     []Method{Unscaled},
	Parallelism: 0,
}

// Validate checks opts for errors that would make every unit fail.
func (o *Opts) Validate() error {
	if len(o.Methods) == 0 {
		return errors.E(errors.Invalid, "no normalization method requested")
	}
	seen := map[Method]bool{}
	for _, m := range o.Methods {
		if m < 0 || m >= numMethods {
			return errors.E(errors.Invalid, fmt.Sprintf("invalid method %v", m))
		}
		if seen[m] {
			return errors.E(errors.Invalid, fmt.Sprintf("method %v requested twice", m))
		}
		seen[m] = true
	}
	if o.Parallelism < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative parallelism %d", o.Parallelism))
	}
	for g, members := range o.Design.Groups {
		if g == "" {
			return errors.E(errors.Invalid, "empty group name")
		}
		for _, m := range members {
			if m == "" {
				return errors.E(errors.Invalid, fmt.Sprintf("group %s: empty sample name", g))
			}
		}
	}
	return nil
}

func (o *Opts) parallelism() int {
	if o.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return o.Parallelism
}
