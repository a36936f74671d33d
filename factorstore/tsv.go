package factorstore

import (
	"context"
	"io"
	"math"
	"strconv"

	"github.com/CChahrour/SeqNado/normalization"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

const tsvHeader = "subject\tkind\tmethod\tscale_factor"

type tsvRow struct {
	Subject string `tsv:"subject"`
	Kind    string `tsv:"kind"`
	Method  string `tsv:"method"`
	Factor  string `tsv:"scale_factor"`
}

// WriteTSV writes recs, sorted, to a TSV file with columns subject, kind,
// method and scale_factor. The file becomes visible only when it is closed.
func WriteTSV(ctx context.Context, path string, recs []Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return writeTSV(out.Writer(ctx), recs)
}

func writeTSV(w io.Writer, recs []Record) error {
	sorted := append([]Record(nil), recs...)
	Sort(sorted)
	tw := tsv.NewWriter(w)
	tw.WriteString(tsvHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, r := range sorted {
		tw.WriteString(r.Subject)
		tw.WriteString(r.Kind.String())
		tw.WriteString(r.Method.String())
		tw.WriteString(formatFactor(r.Factor))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadTSV reads a file written by WriteTSV.
func ReadTSV(ctx context.Context, path string) (recs []Record, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return readTSV(in.Reader(ctx), path)
}

func readTSV(r io.Reader, label string) ([]Record, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true

	var recs []Record
	seen := map[Key]bool{}
	for line := 2; ; line++ {
		var row tsvRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s:%d", label, line)
		}
		kind, err := ParseSubjectKind(row.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", label, line)
		}
		m, err := normalization.ParseMethod(row.Method)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", label, line)
		}
		f, err := strconv.ParseFloat(row.Factor, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", label, line)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return nil, errors.Errorf("%s:%d: invalid scale factor %s", label, line, row.Factor)
		}
		key := Key{Subject: row.Subject, Kind: kind, Method: m}
		if seen[key] {
			return nil, errors.Errorf("%s:%d: duplicate record for %v", label, line, key)
		}
		seen[key] = true
		recs = append(recs, Record{Key: key, Factor: f})
	}
	return recs, nil
}

// LoadTSV returns a Memory store holding the records of a TSV file.
func LoadTSV(ctx context.Context, path string) (*Memory, error) {
	recs, err := ReadTSV(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewMemory(recs), nil
}
