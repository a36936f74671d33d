package counts

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// CountOpts controls which reads CountSpikeIn attributes to each genome.
type CountOpts struct {
	// SpikeInPrefix identifies spike-in contigs of the composite reference,
	// e.g. "dm6_" when the spike-in chromosomes are named "dm6_chr2L", ...
	// Reads on every other contig count towards the reference genome.
	SpikeInPrefix string
	// MinMapQ is the minimum mapping quality of a counted read.
	MinMapQ int
	// SkipDuplicates drops reads with the duplicate flag set.
	SkipDuplicates bool
	// Parallelism bounds the number of BAM files read at once by
	// CountSpikeInAll. 0 means runtime.NumCPU().
	Parallelism int
}

// DefaultCountOpts are the default counting options. SpikeInPrefix has no
// sensible default and must always be set.
var DefaultCountOpts = CountOpts{
	MinMapQ:        0,
	SkipDuplicates: true,
}

func (opts *CountOpts) validate() error {
	if opts.SpikeInPrefix == "" {
		return fmt.Errorf("spike-in contig prefix must be set")
	}
	if opts.MinMapQ < 0 || opts.MinMapQ > 255 {
		return fmt.Errorf("min mapq must be in [0, 255], got %d", opts.MinMapQ)
	}
	if opts.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", opts.Parallelism)
	}
	return nil
}

// countable reports whether r is a primary, mapped read that passes opts. For
// paired data only read 1 is counted, so every fragment is counted once.
func countable(r *sam.Record, opts *CountOpts) bool {
	const skip = sam.Unmapped | sam.Secondary | sam.Supplementary | sam.QCFail
	if r.Flags&skip != 0 || r.Ref == nil {
		return false
	}
	if opts.SkipDuplicates && r.Flags&sam.Duplicate != 0 {
		return false
	}
	if int(r.MapQ) < opts.MinMapQ {
		return false
	}
	if r.Flags&sam.Paired != 0 && r.Flags&sam.Read1 == 0 {
		return false
	}
	return true
}

// CountSpikeIn reads the BAM file at path and counts the reads mapped to the
// reference and spike-in genomes.
func CountSpikeIn(ctx context.Context, path string, opts CountOpts) (c SpikeInCounts, err error) {
	if err = opts.validate(); err != nil {
		return
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return c, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return countSpikeIn(in.Reader(ctx), path, &opts)
}

func countSpikeIn(r io.Reader, label string, opts *CountOpts) (c SpikeInCounts, err error) {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return c, errors.Wrapf(err, "%s: read BAM header", label)
	}
	defer func() {
		if e := br.Close(); e != nil && err == nil {
			err = errors.Wrapf(e, "%s: close", label)
		}
	}()
	var nRecs int64
	for {
		rec, e := br.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return c, errors.Wrapf(e, "%s: read record %d", label, nRecs)
		}
		nRecs++
		if !countable(rec, opts) {
			continue
		}
		if strings.HasPrefix(rec.Ref.Name(), opts.SpikeInPrefix) {
			c.SpikeIn++
		} else {
			c.Reference++
		}
	}
	log.Debug.Printf("%s: %d records, reference_reads=%d, spikein_reads=%d", label, nRecs, c.Reference, c.SpikeIn)
	return c, nil
}

// CountSpikeInAll runs CountSpikeIn on every BAM in paths, keyed by sample.
// Up to opts.Parallelism files are read concurrently.
func CountSpikeInAll(ctx context.Context, paths map[SampleID]string, opts CountOpts) (SpikeInTable, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ids := make([]SampleID, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	SortSamples(ids)

	parallelism := opts.Parallelism
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(ids) {
		parallelism = len(ids)
	}
	results := make([]SpikeInCounts, len(ids))
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(ids)) / parallelism
		endIdx := ((jobIdx + 1) * len(ids)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := CountSpikeIn(ctx, paths[ids[i]], opts)
			if err != nil {
				return errors.Wrapf(err, "sample %s", ids[i])
			}
			results[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tbl := make(SpikeInTable, len(ids))
	for i, id := range ids {
		tbl[id] = results[i]
	}
	log.Printf("counted spike-in reads for %d samples", len(tbl))
	return tbl, nil
}
