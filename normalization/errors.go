package normalization

import (
	"fmt"
	"math"
	"strings"

	"github.com/grailbio/base/errors"
)

// Kind classifies a failed scale-factor computation.
type Kind int

const (
	// DataError means the counts are malformed or degenerate: a zero
	// denominator, an empty matrix, a non-positive factor.
	DataError Kind = iota + 1
	// ConfigurationError means relational input is missing or ambiguous: no
	// control, several controls, an empty group, an absent count source.
	ConfigurationError
	// ReferentialError means a sample named by the design has no entry in the
	// count source.
	ReferentialError
)

func (k Kind) String() string {
	switch k {
	case DataError:
		return "data error"
	case ConfigurationError:
		return "configuration error"
	case ReferentialError:
		return "referential error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// errorsKind maps k onto the closest grailbio/base/errors kind.
func (k Kind) errorsKind() errors.Kind {
	switch k {
	case DataError:
		return errors.Invalid
	case ConfigurationError:
		return errors.Precondition
	case ReferentialError:
		return errors.NotExist
	}
	return errors.Other
}

// Error describes why a single (subject, method) unit failed.
type Error struct {
	Kind Kind
	// Subject is the sample or group the factor was computed for.
	Subject string
	// Group is true if Subject is a group.
	Group  bool
	Method Method
	// Values lists the literal offending inputs, e.g. "spikein_reads=0".
	Values  string
	Message string
	// Err is the underlying error. It carries the grailbio/base/errors kind
	// closest to Kind.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	if e.Subject != "" {
		fmt.Fprintf(&b, "%s %s (%s): ", subjectKind(e.Group), e.Subject, e.Method)
	}
	if e.Values != "" {
		b.WriteString(e.Values)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, values, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:    kind,
		Values:  values,
		Message: msg,
		Err:     errors.E(kind.errorsKind(), msg),
	}
}

func dataError(values, format string, args ...interface{}) *Error {
	return newError(DataError, values, format, args...)
}

func configError(values, format string, args ...interface{}) *Error {
	return newError(ConfigurationError, values, format, args...)
}

func referentialError(values, format string, args ...interface{}) *Error {
	return newError(ReferentialError, values, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}

// bind attaches the unit's subject and method to err. Errors that did not come
// from a policy are reported as data errors.
func bind(err error, subject string, group bool, m Method) *Error {
	e, ok := err.(*Error)
	if !ok {
		e = &Error{Kind: DataError, Err: err}
	} else {
		c := *e
		e = &c
	}
	e.Subject = subject
	e.Group = group
	e.Method = m
	return e
}

// checkFactor returns f if it is a valid scale factor: finite and strictly
// positive.
func checkFactor(f float64, values string) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		if values != "" {
			values += ", "
		}
		return 0, dataError(fmt.Sprintf("%sfactor=%v", values, f), "scale factor must be finite and positive")
	}
	return f, nil
}
