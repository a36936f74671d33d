package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/CChahrour/SeqNado/counts"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdCountSpikeIn() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "count-spikein",
		Short: "Count reference and spike-in reads of BAM files",
		Long: `
Each argument is either a BAM path, whose sample name is its basename without
the .bam suffix, or sample=path.`,
		ArgsName: "bam...",
	}
	opts := counts.DefaultCountOpts
	cmd.Flags.StringVar(&opts.SpikeInPrefix, "prefix", "", "Name prefix of the spike-in contigs, e.g. dm6_")
	cmd.Flags.IntVar(&opts.MinMapQ, "mapq", opts.MinMapQ, "Minimum mapping quality of a counted read")
	cmd.Flags.BoolVar(&opts.SkipDuplicates, "skip-duplicates", opts.SkipDuplicates, "Do not count reads marked as duplicates")
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", 0, "Number of BAM files read at once. 0 means the number of CPUs")
	out := cmd.Flags.String("out", "", "Output TSV path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return env.UsageErrorf("count-spikein takes at least one BAM path")
		}
		if *out == "" {
			return env.UsageErrorf("-out must be set")
		}
		paths, err := bamArgs(argv)
		if err != nil {
			return err
		}
		ctx := vcontext.Background()
		tbl, err := counts.CountSpikeInAll(ctx, paths, opts)
		if err != nil {
			return err
		}
		return counts.WriteSpikeInTable(ctx, *out, tbl)
	})
	return cmd
}

// bamArgs maps each sample to its BAM path.
func bamArgs(argv []string) (map[counts.SampleID]string, error) {
	paths := make(map[counts.SampleID]string, len(argv))
	for _, arg := range argv {
		var id, path string
		if i := strings.Index(arg, "="); i >= 0 {
			id, path = arg[:i], arg[i+1:]
		} else {
			id, path = strings.TrimSuffix(filepath.Base(arg), ".bam"), arg
		}
		if id == "" || path == "" {
			return nil, fmt.Errorf("invalid BAM argument %q", arg)
		}
		if _, ok := paths[counts.SampleID(id)]; ok {
			return nil, fmt.Errorf("sample %s given twice", id)
		}
		paths[counts.SampleID(id)] = path
	}
	return paths, nil
}
