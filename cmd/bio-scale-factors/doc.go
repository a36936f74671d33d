/*Command bio-scale-factors computes normalization scale factors for coverage
  tracks, per sample and per merged group of replicates.

  Count spike-in reads of BAM files aligned to a composite reference:

    bio-scale-factors count-spikein -prefix dm6_ -out spikein.tsv ip1.bam input.bam

  Compute factors for several methods:

    bio-scale-factors compute -design design.tsv -spikein spikein.tsv \
      -bins bins.featureCounts.tsv -methods orlando,with_input,csaw -out factors

  This writes factors.tsv, holding every factor, and one
  factors.<method>.json per method, holding the per-sample factors. With
  -sqlite, the factors are also stored in an SQLite database.

  The design table has the columns sample, consensus_group, scaling_group and
  control. Every cell but the sample may be empty. Samples sharing a
  consensus_group get a merged factor; samples sharing a scaling_group are
  compared with each other by the library_size method; control names the input
  sample of an IP sample.

  Look a factor up, negated for reverse-strand tracks:

    bio-scale-factors get -store factors.tsv -method orlando -negative ip1
*/
package main
