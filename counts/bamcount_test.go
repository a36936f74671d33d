package counts

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hg38Chr1, _ = sam.NewReference("chr1", "", "", 100000, nil, nil)
	dm6Chr2L, _ = sam.NewReference("dm6_chr2L", "", "", 50000, nil, nil)
	header, _   = sam.NewHeader(nil, []*sam.Reference{hg38Chr1, dm6Chr2L})
)

type testRead struct {
	ref   *sam.Reference
	mapQ  byte
	flags sam.Flags
}

func newRecord(t *testing.T, i int, r testRead) *sam.Record {
	pos := 100 + i
	if r.ref == nil {
		pos = -1
	}
	rec, err := sam.NewRecord("read", r.ref, nil, pos, -1, 0, r.mapQ,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}, []byte("ACGT"), []byte{30, 30, 30, 30}, nil)
	require.NoError(t, err)
	rec.Flags = r.flags
	return rec
}

func writeBAM(t *testing.T, reads []testRead) []byte {
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, header, 1)
	require.NoError(t, err)
	for i, r := range reads {
		require.NoError(t, w.Write(newRecord(t, i, r)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

var countReads = []testRead{
	{ref: hg38Chr1, mapQ: 60},
	{ref: hg38Chr1, mapQ: 60},
	{ref: hg38Chr1, mapQ: 5},
	{ref: hg38Chr1, mapQ: 60, flags: sam.Duplicate},
	{ref: hg38Chr1, mapQ: 60, flags: sam.Secondary},
	{ref: hg38Chr1, mapQ: 60, flags: sam.Supplementary},
	{ref: hg38Chr1, mapQ: 60, flags: sam.QCFail},
	{ref: hg38Chr1, mapQ: 60, flags: sam.Paired | sam.Read1},
	{ref: hg38Chr1, mapQ: 60, flags: sam.Paired | sam.Read2},
	{ref: dm6Chr2L, mapQ: 60},
	{ref: dm6Chr2L, mapQ: 60, flags: sam.Paired | sam.Read1},
	{ref: dm6Chr2L, mapQ: 60, flags: sam.Paired | sam.Read2},
	{ref: nil, flags: sam.Unmapped},
}

func TestCountSpikeIn(t *testing.T) {
	data := writeBAM(t, countReads)
	tests := []struct {
		name string
		opts CountOpts
		want SpikeInCounts
	}{
		{
			name: "defaults",
			opts: CountOpts{SpikeInPrefix: "dm6_", SkipDuplicates: true},
			want: SpikeInCounts{Reference: 4, SpikeIn: 2},
		},
		{
			name: "keep duplicates",
			opts: CountOpts{SpikeInPrefix: "dm6_"},
			want: SpikeInCounts{Reference: 5, SpikeIn: 2},
		},
		{
			name: "min mapq",
			opts: CountOpts{SpikeInPrefix: "dm6_", MinMapQ: 30, SkipDuplicates: true},
			want: SpikeInCounts{Reference: 3, SpikeIn: 2},
		},
		{
			name: "no spike-in contigs match",
			opts: CountOpts{SpikeInPrefix: "ecoli_", SkipDuplicates: true},
			want: SpikeInCounts{Reference: 6, SpikeIn: 0},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := countSpikeIn(bytes.NewReader(data), "test.bam", &test.opts)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCountSpikeInAll(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	samples := map[SampleID][]testRead{
		"ip":    countReads,
		"input": {{ref: hg38Chr1, mapQ: 60}, {ref: dm6Chr2L, mapQ: 60}, {ref: dm6Chr2L, mapQ: 60}},
		"empty": nil,
	}
	paths := map[SampleID]string{}
	for id, reads := range samples {
		path := filepath.Join(tmpdir, string(id)+".bam")
		out, err := file.Create(ctx, path)
		require.NoError(t, err)
		_, err = out.Writer(ctx).Write(writeBAM(t, reads))
		require.NoError(t, err)
		require.NoError(t, out.Close(ctx))
		paths[id] = path
	}

	opts := DefaultCountOpts
	opts.SpikeInPrefix = "dm6_"
	opts.Parallelism = 2
	tbl, err := CountSpikeInAll(ctx, paths, opts)
	require.NoError(t, err)
	assert.Equal(t, SpikeInTable{
		"ip":    {Reference: 4, SpikeIn: 2},
		"input": {Reference: 1, SpikeIn: 2},
		"empty": {},
	}, tbl)

	paths["missing"] = filepath.Join(tmpdir, "missing.bam")
	_, err = CountSpikeInAll(ctx, paths, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample missing")
}

func TestCountOptsValidate(t *testing.T) {
	ctx := vcontext.Background()
	_, err := CountSpikeIn(ctx, "unused.bam", DefaultCountOpts)
	assert.EqualError(t, err, "spike-in contig prefix must be set")

	opts := CountOpts{SpikeInPrefix: "dm6_", MinMapQ: 300}
	_, err = CountSpikeInAll(ctx, nil, opts)
	assert.Error(t, err)
}
