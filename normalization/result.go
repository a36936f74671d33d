package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Factor is a computed scale factor.
type Factor struct {
	// Subject is a sample or, if Group is set, a group.
	Subject string
	Group   bool
	Method  Method
	Value   float64
}

func (f Factor) String() string {
	kind := "sample"
	if f.Group {
		kind = "group"
	}
	return fmt.Sprintf("%s %s (%s): %v", kind, f.Subject, f.Method, f.Value)
}

// Result holds the outcome of every (subject, method) unit of a Compute call.
// Each unit appears in exactly one of Factors and Failures.
type Result struct {
	Factors  []Factor
	Failures []*Error
}

// Lookup returns the factor of a subject, and whether it was computed.
func (r *Result) Lookup(subject string, group bool, m Method) (float64, bool) {
	for _, f := range r.Factors {
		if f.Subject == subject && f.Group == group && f.Method == m {
			return f.Value, true
		}
	}
	return 0, false
}

// Failure returns the error of a subject, or nil if it did not fail.
func (r *Result) Failure(subject string, group bool, m Method) *Error {
	for _, e := range r.Failures {
		if e.Subject == subject && e.Group == group && e.Method == m {
			return e
		}
	}
	return nil
}

// Err returns an error summarizing every failure, or nil.
func (r *Result) Err() error {
	switch len(r.Failures) {
	case 0:
		return nil
	case 1:
		return r.Failures[0]
	}
	msgs := make([]string, len(r.Failures))
	for i, e := range r.Failures {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d scale factors failed:\n%s", len(r.Failures), strings.Join(msgs, "\n"))
}

// unitLess orders units by method, then samples before groups, then subject.
func unitLess(m1 Method, g1 bool, s1 string, m2 Method, g2 bool, s2 string) bool {
	if m1 != m2 {
		return m1 < m2
	}
	if g1 != g2 {
		return !g1
	}
	return s1 < s2
}

func (r *Result) sort() {
	sort.Slice(r.Factors, func(i, j int) bool {
		a, b := r.Factors[i], r.Factors[j]
		return unitLess(a.Method, a.Group, a.Subject, b.Method, b.Group, b.Subject)
	})
	sort.Slice(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		return unitLess(a.Method, a.Group, a.Subject, b.Method, b.Group, b.Subject)
	})
}
