package factorstore

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"

	"github.com/CChahrour/SeqNado/normalization"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// WriteJSON writes the per-sample factors of method m as a JSON object mapping
// sample to factor, the layout coverage tooling reads. Group records and
// records of other methods are skipped.
func WriteJSON(ctx context.Context, path string, m normalization.Method, recs []Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return writeJSON(out.Writer(ctx), m, recs)
}

func writeJSON(w io.Writer, m normalization.Method, recs []Record) error {
	factors := map[string]float64{}
	for _, r := range recs {
		if r.Kind == Sample && r.Method == m {
			factors[r.Subject] = r.Factor
		}
	}
	// Map keys are marshaled in sorted order.
	data, err := json.MarshalIndent(factors, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadJSON reads a file written by WriteJSON as sample records of method m.
func ReadJSON(ctx context.Context, path string, m normalization.Method) (recs []Record, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	data, err := ioutil.ReadAll(in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	factors := map[string]float64{}
	if err := json.Unmarshal(data, &factors); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	for subject, f := range factors {
		if f <= 0 {
			return nil, errors.Errorf("%s: sample %s: invalid scale factor %v", path, subject, f)
		}
		recs = append(recs, Record{Key: Key{Subject: subject, Kind: Sample, Method: m}, Factor: f})
	}
	Sort(recs)
	return recs, nil
}
