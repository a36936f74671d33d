package counts

import (
	"context"
	"encoding/csv"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// GeneMatrix is a genes × samples table of read counts.
type GeneMatrix struct {
	Genes   []string
	Samples []SampleID
	// Counts[i][j] is the number of reads of Genes[i] in Samples[j].
	Counts [][]int64
}

// featureCountsMeta lists the annotation columns featureCounts writes before
// the per-BAM count columns.
var featureCountsMeta = map[string]bool{
	"Geneid": true,
	"Chr":    true,
	"Start":  true,
	"End":    true,
	"Strand": true,
	"Length": true,
}

// sampleFromColumn maps a featureCounts column header, which is the path of the
// counted BAM file, to a sample name.
func sampleFromColumn(col string) SampleID {
	return SampleID(strings.TrimSuffix(path.Base(col), ".bam"))
}

// ReadGeneMatrix reads a tab-separated count table. The first column holds
// feature ids; every following column holds the counts of one sample. Lines
// starting with '#' are ignored, and featureCounts annotation columns (Chr,
// Start, End, Strand, Length) are skipped, so featureCounts output can be read
// directly.
func ReadGeneMatrix(ctx context.Context, path string) (m *GeneMatrix, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return readGeneMatrix(in.Reader(ctx), path)
}

func readGeneMatrix(r io.Reader, label string) (*GeneMatrix, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Errorf("%s: empty count table", label)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read header", label)
	}
	var (
		m       = &GeneMatrix{}
		cols    []int // input column of each sample
		samples = map[SampleID]bool{}
	)
	for i, name := range header {
		if i == 0 || featureCountsMeta[name] {
			continue
		}
		id := sampleFromColumn(name)
		if samples[id] {
			return nil, errors.Errorf("%s: duplicate sample column %s", label, id)
		}
		samples[id] = true
		m.Samples = append(m.Samples, id)
		cols = append(cols, i)
	}
	if len(cols) == 0 {
		return nil, errors.Errorf("%s: no sample columns in header %q", label, strings.Join(header, "\t"))
	}
	genes := map[string]bool{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s", label)
		}
		line, _ := cr.FieldPos(0)
		gene := rec[0]
		if genes[gene] {
			return nil, errors.Errorf("%s:%d: duplicate feature %s", label, line, gene)
		}
		genes[gene] = true
		row := make([]int64, len(cols))
		for j, col := range cols {
			v, err := strconv.ParseInt(rec[col], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s:%d: feature %s, sample %s", label, line, gene, m.Samples[j])
			}
			if v < 0 {
				return nil, errors.Errorf("%s:%d: feature %s, sample %s: negative count %d", label, line, gene, m.Samples[j], v)
			}
			row[j] = v
		}
		m.Genes = append(m.Genes, gene)
		m.Counts = append(m.Counts, row)
	}
	return m, nil
}

// ReadFeatureCounts reads featureCounts output produced over a genomic bin
// annotation and returns the library size of every sample, i.e. the sum of its
// count column.
func ReadFeatureCounts(ctx context.Context, path string) (BinCounts, error) {
	m, err := ReadGeneMatrix(ctx, path)
	if err != nil {
		return nil, err
	}
	return m.LibrarySizes(), nil
}

// LibrarySizes returns the column sums of m.
func (m *GeneMatrix) LibrarySizes() BinCounts {
	sizes := make(BinCounts, len(m.Samples))
	for j, id := range m.Samples {
		var total int64
		for i := range m.Counts {
			total += m.Counts[i][j]
		}
		sizes[id] = total
	}
	return sizes
}

// SampleIndex returns the column of id, or -1.
func (m *GeneMatrix) SampleIndex(id SampleID) int {
	for j, s := range m.Samples {
		if s == id {
			return j
		}
	}
	return -1
}

// Restrict returns the rows of m whose feature id is listed in genes, in the
// order they appear in m. Unknown ids are ignored. An empty list returns m
// itself.
func (m *GeneMatrix) Restrict(genes []string) *GeneMatrix {
	if len(genes) == 0 {
		return m
	}
	keep := make(map[string]bool, len(genes))
	for _, g := range genes {
		keep[g] = true
	}
	sub := &GeneMatrix{Samples: m.Samples}
	for i, g := range m.Genes {
		if keep[g] {
			sub.Genes = append(sub.Genes, g)
			sub.Counts = append(sub.Counts, m.Counts[i])
		}
	}
	return sub
}
