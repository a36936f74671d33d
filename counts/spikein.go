package counts

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// spikeInRow is one line of a spike-in stats table. The column order matches
// the table written by the split-BAM step.
type spikeInRow struct {
	Sample    string `tsv:"sample"`
	Reference int64  `tsv:"reference_reads"`
	SpikeIn   int64  `tsv:"spikein_reads"`
}

// ReadSpikeInTable reads a TSV table with columns "sample", "reference_reads"
// and "spikein_reads". Each sample may appear only once, and counts must be
// non-negative.
func ReadSpikeInTable(ctx context.Context, path string) (tbl SpikeInTable, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return readSpikeInTable(in.Reader(ctx), path)
}

func readSpikeInTable(r io.Reader, label string) (SpikeInTable, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true

	tbl := SpikeInTable{}
	// Line numbers are 1-based and count the header.
	for line := 2; ; line++ {
		var row spikeInRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s:%d", label, line)
		}
		if row.Sample == "" {
			return nil, errors.Errorf("%s:%d: empty sample name", label, line)
		}
		if row.Reference < 0 || row.SpikeIn < 0 {
			return nil, errors.Errorf("%s:%d: sample %s: negative read count (reference_reads=%d, spikein_reads=%d)",
				label, line, row.Sample, row.Reference, row.SpikeIn)
		}
		id := SampleID(row.Sample)
		if _, ok := tbl[id]; ok {
			return nil, errors.Errorf("%s:%d: duplicate sample %s", label, line, row.Sample)
		}
		tbl[id] = SpikeInCounts{Reference: row.Reference, SpikeIn: row.SpikeIn}
	}
	return tbl, nil
}

// WriteSpikeInTable writes tbl in the format read by ReadSpikeInTable. Rows are
// sorted by sample so that identical tables produce identical files.
func WriteSpikeInTable(ctx context.Context, path string, tbl SpikeInTable) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return writeSpikeInTable(out.Writer(ctx), tbl)
}

func writeSpikeInTable(w io.Writer, tbl SpikeInTable) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("sample\treference_reads\tspikein_reads")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, id := range tbl.Samples() {
		c := tbl[id]
		tw.WriteString(string(id))
		tw.WriteString(strconv.FormatInt(c.Reference, 10))
		tw.WriteString(strconv.FormatInt(c.SpikeIn, 10))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}
