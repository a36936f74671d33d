package normalization

import (
	"context"
	"fmt"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// unit is one (subject, method) computation.
type unit struct {
	method  Method
	subject string
	group   bool
	members []counts.SampleID

	value float64
	err   *Error
}

// Compute computes the scale factor of every requested method for every
// sample and every group of opts.Design.
//
// Units are independent: a failed unit is reported in Result.Failures and does
// not affect any other unit, except that a group fails if one of its members
// failed. The returned error is non-nil only if opts is invalid or ctx was
// canceled, in which case no Result is returned.
func Compute(ctx context.Context, src Source, opts Opts) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	in := &Inputs{Source: src, Design: opts.Design}
	for _, m := range opts.Methods {
		if m == ExternalModel {
			in.estimate(ctx, opts.Estimator, opts.ControlGenes)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var samples []*unit
	for _, m := range opts.Methods {
		for _, id := range in.subjects(m) {
			samples = append(samples, &unit{method: m, subject: string(id)})
		}
	}
	log.Printf("normalization: computing %d per-sample factors for %d methods", len(samples), len(opts.Methods))
	if err := run(ctx, in, samples, nil, opts.parallelism()); err != nil {
		return nil, err
	}

	perSample := make(map[Method]map[counts.SampleID]float64, len(opts.Methods))
	failed := make(map[Method]map[counts.SampleID]*Error, len(opts.Methods))
	for _, m := range opts.Methods {
		perSample[m] = map[counts.SampleID]float64{}
		failed[m] = map[counts.SampleID]*Error{}
	}
	for _, u := range samples {
		if u.err != nil {
			failed[u.method][counts.SampleID(u.subject)] = u.err
		} else {
			perSample[u.method][counts.SampleID(u.subject)] = u.value
		}
	}

	var groups []*unit
	for _, m := range opts.Methods {
		for _, g := range groupIDs(opts.Design.Groups) {
			groups = append(groups, &unit{method: m, subject: string(g), group: true, members: opts.Design.Groups[g]})
		}
	}
	if len(groups) > 0 {
		log.Printf("normalization: computing %d merged group factors", len(groups))
		merge := func(u *unit) (float64, error) {
			return mergeGroup(in, u, perSample[u.method], failed[u.method])
		}
		if err := run(ctx, in, groups, merge, opts.parallelism()); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	for _, units := range [][]*unit{samples, groups} {
		for _, u := range units {
			if u.err != nil {
				log.Error.Printf("normalization: %v", u.err)
				res.Failures = append(res.Failures, u.err)
				continue
			}
			res.Factors = append(res.Factors, Factor{Subject: u.subject, Group: u.group, Method: u.method, Value: u.value})
		}
	}
	res.sort()
	log.Printf("normalization: %d factors computed, %d failed", len(res.Factors), len(res.Failures))
	return res, nil
}

// run computes units in parallel. If merge is nil, units are per-sample
// units. Each unit is written only by the job that owns it.
func run(ctx context.Context, in *Inputs, units []*unit, merge func(*unit) (float64, error), parallelism int) error {
	if parallelism > len(units) {
		parallelism = len(units)
	}
	if parallelism == 0 {
		return ctx.Err()
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(units)) / parallelism
		endIdx := ((jobIdx + 1) * len(units)) / parallelism
		for _, u := range units[startIdx:endIdx] {
			if err := ctx.Err(); err != nil {
				return err
			}
			var (
				f   float64
				err error
			)
			if merge != nil {
				f, err = merge(u)
			} else {
				f, err = PolicyFor(u.method).PerSample(in, counts.SampleID(u.subject))
				if err == nil {
					f, err = checkFactor(f, "")
				}
			}
			if err != nil {
				u.err = bind(err, u.subject, u.group, u.method)
				continue
			}
			u.value = f
			log.Debug.Printf("normalization: %s %s (%s) = %v", subjectKind(u.group), u.subject, u.method, f)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// mergeGroup computes the merged factor of a group unit. A group with a failed
// member fails with the member's error kind.
func mergeGroup(in *Inputs, u *unit, perSample map[counts.SampleID]float64, failed map[counts.SampleID]*Error) (float64, error) {
	if len(u.members) == 0 {
		return 0, configError("", "group has no members")
	}
	for _, id := range u.members {
		if e, ok := failed[id]; ok {
			return 0, newError(e.Kind, fmt.Sprintf("member=%s", id), "member failed: %v", e)
		}
	}
	f, err := PolicyFor(u.method).Merged(in, u.members, perSample)
	if err != nil {
		return 0, err
	}
	return checkFactor(f, "")
}

// subjects returns the samples to compute per-sample factors of m for.
func (in *Inputs) subjects(m Method) []counts.SampleID {
	ids := in.Design.subjects()
	if len(in.Design.Samples) > 0 {
		return ids
	}
	seen := make(map[counts.SampleID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	add := func(src []counts.SampleID) {
		for _, id := range src {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	switch m {
	case SpikeInDirect, SpikeInRatio:
		add(in.Source.SpikeIn.Samples())
	case LibrarySize:
		add(in.Source.Bins.Samples())
	case ExternalModel:
		if in.Source.Genes != nil {
			add(in.Source.Genes.Samples)
		}
	case Unscaled:
		add(in.Source.SpikeIn.Samples())
		add(in.Source.Bins.Samples())
		if in.Source.Genes != nil {
			add(in.Source.Genes.Samples)
		}
	}
	counts.SortSamples(ids)
	return ids
}

func subjectKind(group bool) string {
	if group {
		return "group"
	}
	return "sample"
}
