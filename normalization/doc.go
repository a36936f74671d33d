/*Package normalization converts read-count evidence into multiplicative scale
  factors, per sample and per merged group of replicates.

  Five methods are supported, each implemented by a Policy:

    Unscaled       1.0 for every subject.
    SpikeInDirect  1e6 / spike-in reads ("reads per million spike-in").
    SpikeInRatio   (S_ctrl * 1e7) / (S_ip * R_ctrl), an IP sample normalized
                   against its paired control; controls get 1.0.
    LibrarySize    mean(L) / L_j within a comparison group of bin-count library
                   sizes (csaw-style).
    ExternalModel  factors returned by an external estimator fitted to a gene
                   count matrix.

  Merged-group factors must describe the concatenation of the members' reads.
  SpikeInDirect and SpikeInRatio therefore pool the raw counts and re-apply the
  per-sample formula, and LibrarySize uses 1/sum(1/f_i), since the merged
  library size is the sum of the members' sizes. Averaging the per-sample
  factors is wrong for all three. ExternalModel uses the arithmetic mean of its
  members' factors. This is an approximation: the underlying model needs
  between-sample variance that a pooled pseudo-sample does not have.

  Compute runs every (subject, method) unit independently and in parallel.
  Failures are reported per unit, with the offending values, and never stop
  the other units. A group fails when any of its members failed.
*/
package normalization
