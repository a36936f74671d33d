package normalization

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Method is a normalization technique.
type Method int

const (
	// Unscaled applies no normalization.
	Unscaled Method = iota
	// SpikeInDirect scales by reads per million spike-in reads.
	SpikeInDirect
	// SpikeInRatio scales IP samples by their spike-in enrichment relative to a
	// paired control.
	SpikeInRatio
	// LibrarySize scales samples toward the mean bin-count library size of
	// their comparison group.
	LibrarySize
	// ExternalModel takes per-sample factors from an external estimator fitted
	// to a gene count matrix.
	ExternalModel

	numMethods
)

var methodNames = [...]string{
	Unscaled:      "unscaled",
	SpikeInDirect: "spikein_direct",
	SpikeInRatio:  "spikein_ratio",
	LibrarySize:   "library_size",
	ExternalModel: "external_model",
}

// methodAliases are the names pipelines commonly use for each method.
var methodAliases = map[string]Method{
	"none":       Unscaled,
	"orlando":    SpikeInDirect,
	"with_input": SpikeInRatio,
	"csaw":       LibrarySize,
	"deseq2":     ExternalModel,
	"edger":      ExternalModel,
}

// Methods lists every method in declaration order.
var Methods = []Method{Unscaled, SpikeInDirect, SpikeInRatio, LibrarySize, ExternalModel}

// String returns the canonical name of m.
func (m Method) String() string {
	if m < 0 || m >= numMethods {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod parses a canonical method name or one of its aliases ("orlando",
// "with_input", "csaw", "deseq2", "edger", "none"). Case is ignored.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range methodNames {
		if n == name {
			return Method(m), nil
		}
	}
	if m, ok := methodAliases[name]; ok {
		return m, nil
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown normalization method %q", s))
}

// ParseMethods parses a comma-separated list of methods. Duplicates, including
// aliases of the same method, are dropped; the first occurrence keeps its
// position.
func ParseMethods(s string) ([]Method, error) {
	var (
		methods []Method
		seen    [numMethods]bool
	)
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		m, err := ParseMethod(field)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("no normalization method in %q", s))
	}
	return methods, nil
}
