/*Package counts holds the read-count evidence that scale factors are derived
  from, and readers for the tables upstream counting steps produce.

  Three kinds of evidence are supported:

  - Spike-in counts: per sample, the number of reads that mapped to the
    reference genome and to the spike-in genome of a composite reference.
    They are read from a TSV table (ReadSpikeInTable) or counted directly from
    a BAM file (CountSpikeIn).

  - Bin counts: per sample, the library size obtained by summing featureCounts
    output over a fixed genomic bin annotation (ReadFeatureCounts).

  - Gene count matrices: genes × samples, usually restricted to spike-in or
    control genes (ReadGeneMatrix, GeneMatrix.Restrict).

  All values are read once and treated as immutable afterwards.
*/
package counts
