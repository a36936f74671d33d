package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/CChahrour/SeqNado/factorstore"
	"github.com/CChahrour/SeqNado/normalization"
	"github.com/CChahrour/SeqNado/sizefactor"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

type computeFlags struct {
	design       string
	spikeIn      string
	bins         string
	genes        string
	controlGenes string
	methods      string
	out          string
	sqlite       string
	parallelism  int
}

func newCmdCompute() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "compute",
		Short: "Compute per-sample and merged-group scale factors",
	}
	var flags computeFlags
	cmd.Flags.StringVar(&flags.design, "design", "", "Design TSV with columns sample, consensus_group, scaling_group, control")
	cmd.Flags.StringVar(&flags.spikeIn, "spikein", "", "Spike-in counts TSV, as written by count-spikein")
	cmd.Flags.StringVar(&flags.bins, "bins", "", "featureCounts output over a genomic bin annotation")
	cmd.Flags.StringVar(&flags.genes, "genes", "", "Gene count matrix, e.g. featureCounts output over spike-in genes")
	cmd.Flags.StringVar(&flags.controlGenes, "control-genes", "", "Comma-separated genes the gene count matrix is restricted to. Empty means all genes")
	cmd.Flags.StringVar(&flags.methods, "methods", normalization.SpikeInDirect.String(),
		fmt.Sprintf("Comma-separated methods, among %v and their aliases", normalization.Methods))
	cmd.Flags.StringVar(&flags.out, "out", "", "Output path prefix")
	cmd.Flags.StringVar(&flags.sqlite, "sqlite", "", "If set, also store the factors in this SQLite database")
	cmd.Flags.IntVar(&flags.parallelism, "parallelism", 0, "Number of factors computed at once. 0 means the number of CPUs")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("compute takes no arguments, but got %v", argv)
		}
		if flags.design == "" || flags.out == "" {
			return env.UsageErrorf("-design and -out must be set")
		}
		return compute(vcontext.Background(), flags, env.Stderr)
	})
	return cmd
}

func compute(ctx context.Context, flags computeFlags, stderr io.Writer) error {
	methods, err := normalization.ParseMethods(flags.methods)
	if err != nil {
		return err
	}
	design, err := readDesign(ctx, flags.design)
	if err != nil {
		return err
	}
	src, err := readSource(ctx, flags)
	if err != nil {
		return err
	}
	opts := normalization.DefaultOpts
	opts.Methods = methods
	opts.Design = design
	opts.Estimator = sizefactor.MedianRatio{}
	opts.Parallelism = flags.parallelism
	if flags.controlGenes != "" {
		opts.ControlGenes = strings.Split(flags.controlGenes, ",")
	}
	res, err := normalization.Compute(ctx, src, opts)
	if err != nil {
		return err
	}
	recs := factorstore.FromResult(res)
	if err := writeOutputs(ctx, flags, methods, recs); err != nil {
		return err
	}
	for _, e := range res.Failures {
		fmt.Fprintln(stderr, e)
	}
	if n := len(res.Failures); n > 0 {
		return fmt.Errorf("%d of %d scale factors failed", n, n+len(res.Factors))
	}
	return nil
}

// readSource reads the count tables named by flags. Tables that are not named
// are left nil.
func readSource(ctx context.Context, flags computeFlags) (normalization.Source, error) {
	var src normalization.Source
	err := traverse.Each(3, func(i int) (err error) {
		switch i {
		case 0:
			if flags.spikeIn != "" {
				src.SpikeIn, err = counts.ReadSpikeInTable(ctx, flags.spikeIn)
			}
		case 1:
			if flags.bins != "" {
				src.Bins, err = counts.ReadFeatureCounts(ctx, flags.bins)
			}
		case 2:
			if flags.genes != "" {
				src.Genes, err = counts.ReadGeneMatrix(ctx, flags.genes)
			}
		}
		return
	})
	return src, err
}

// writeOutputs writes <out>.tsv, one <out>.<method>.json per method and,
// if requested, the SQLite store.
func writeOutputs(ctx context.Context, flags computeFlags, methods []normalization.Method, recs []factorstore.Record) error {
	tsvPath := flags.out + ".tsv"
	if err := factorstore.WriteTSV(ctx, tsvPath, recs); err != nil {
		return err
	}
	for _, m := range methods {
		if err := factorstore.WriteJSON(ctx, fmt.Sprintf("%s.%s.json", flags.out, m), m, recs); err != nil {
			return err
		}
	}
	log.Printf("wrote %d scale factors to %s", len(recs), tsvPath)
	if flags.sqlite == "" {
		return nil
	}
	db, err := factorstore.OpenSQLite(ctx, flags.sqlite)
	if err != nil {
		return err
	}
	if err := db.Put(ctx, recs); err != nil {
		db.Close() // nolint: errcheck
		return err
	}
	return db.Close()
}
