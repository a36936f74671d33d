// Package factorstore persists scale factors keyed by (subject, method) and
// serves them to coverage tooling.
//
// Every backend writes deterministically: records are sorted, and factors are
// formatted with the shortest representation that parses back to the same
// float64.
package factorstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/CChahrour/SeqNado/normalization"
	"github.com/grailbio/base/errors"
)

// SubjectKind tells whether a record belongs to a sample or to a group.
type SubjectKind int

const (
	Sample SubjectKind = iota
	Group
)

func (k SubjectKind) String() string {
	if k == Group {
		return "group"
	}
	return "sample"
}

// ParseSubjectKind parses "sample" or "group".
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch s {
	case "sample":
		return Sample, nil
	case "group":
		return Group, nil
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown subject kind %q", s))
}

// Key identifies a record.
type Key struct {
	Subject string
	Kind    SubjectKind
	Method  normalization.Method
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s (%s)", k.Kind, k.Subject, k.Method)
}

// Record is a persisted scale factor.
type Record struct {
	Key
	Factor float64
}

// FromResult returns the records of every factor in res.
func FromResult(res *normalization.Result) []Record {
	recs := make([]Record, len(res.Factors))
	for i, f := range res.Factors {
		kind := Sample
		if f.Group {
			kind = Group
		}
		recs[i] = Record{Key: Key{Subject: f.Subject, Kind: kind, Method: f.Method}, Factor: f.Value}
	}
	return recs
}

// Sort orders recs by method, kind and subject.
func Sort(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key.less(recs[j].Key) })
}

func (k Key) less(o Key) bool {
	if k.Method != o.Method {
		return k.Method < o.Method
	}
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.Subject < o.Subject
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Store is a scale-factor store. Put replaces existing records with the same
// key; it either stores every record or none.
type Store interface {
	Put(ctx context.Context, recs []Record) error
	Get(ctx context.Context, key Key) (float64, error)
}

// Factor returns the factor stored under key, negated if negative is set.
// Negated factors scale reverse-strand coverage tracks.
func Factor(ctx context.Context, s Store, key Key, negative bool) (float64, error) {
	f, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if negative {
		f = -f
	}
	return f, nil
}

func notFound(key Key) error {
	return errors.E(errors.NotExist, fmt.Sprintf("no scale factor for %v", key))
}

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.Mutex
	factors map[Key]float64
}

// NewMemory returns a Memory holding recs.
func NewMemory(recs []Record) *Memory {
	m := &Memory{factors: make(map[Key]float64, len(recs))}
	for _, r := range recs {
		m.factors[r.Key] = r.Factor
	}
	return m
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.factors == nil {
		m.factors = make(map[Key]float64, len(recs))
	}
	for _, r := range recs {
		m.factors[r.Key] = r.Factor
	}
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key Key) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.factors[key]
	if !ok {
		return 0, notFound(key)
	}
	return f, nil
}

// Records returns every record in sorted order.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	recs := make([]Record, 0, len(m.factors))
	for k, f := range m.factors {
		recs = append(recs, Record{Key: k, Factor: f})
	}
	m.mu.Unlock()
	Sort(recs)
	return recs
}
