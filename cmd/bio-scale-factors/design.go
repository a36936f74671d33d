package main

import (
	"context"
	"io"
	"strings"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/CChahrour/SeqNado/normalization"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

type designRow struct {
	Sample         string `tsv:"sample"`
	ConsensusGroup string `tsv:"consensus_group"`
	ScalingGroup   string `tsv:"scaling_group"`
	Control        string `tsv:"control"`
}

func readDesign(ctx context.Context, path string) (d normalization.Design, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return d, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return parseDesign(in.Reader(ctx), path)
}

func parseDesign(r io.Reader, label string) (normalization.Design, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true

	d := normalization.Design{
		Groups:        map[counts.GroupID][]counts.SampleID{},
		ScalingGroups: map[counts.GroupID][]counts.SampleID{},
		Controls:      map[counts.SampleID][]counts.SampleID{},
	}
	seen := map[counts.SampleID]bool{}
	for line := 2; ; line++ {
		var row designRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return d, errors.Wrapf(err, "%s:%d", label, line)
		}
		id := counts.SampleID(strings.TrimSpace(row.Sample))
		if id == "" {
			return d, errors.Errorf("%s:%d: empty sample name", label, line)
		}
		if seen[id] {
			return d, errors.Errorf("%s:%d: duplicate sample %s", label, line, id)
		}
		seen[id] = true
		d.Samples = append(d.Samples, id)
		if g := counts.GroupID(strings.TrimSpace(row.ConsensusGroup)); g != "" {
			d.Groups[g] = append(d.Groups[g], id)
		}
		if g := counts.GroupID(strings.TrimSpace(row.ScalingGroup)); g != "" {
			d.ScalingGroups[g] = append(d.ScalingGroups[g], id)
		}
		for _, c := range strings.Split(row.Control, ",") {
			if c = strings.TrimSpace(c); c != "" {
				d.Controls[id] = append(d.Controls[id], counts.SampleID(c))
			}
		}
	}
	return d, nil
}
