// Package kb provides the knowledge base that plugin tasks write findings
// into. It is an append-only store partitioned by (namespace, key), safe
// for concurrent appends from many task goroutines.
//
// Usage:
//
//	store := kb.New()
//	if err := store.Append("mails", "mails", f); err != nil {
//	    logger.Error("finding not stored", "error", err)
//	}
//	all := store.All("mails", "mails")
package kb

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/waftester/scanhost/pkg/finding"
)

// ErrEmptyPartition indicates an Append with an empty namespace or key.
var ErrEmptyPartition = errors.New("kb: empty namespace or key")

type partitionKey struct {
	namespace string
	key       string
}

// partition holds the findings of one (namespace, key) pair in append order.
type partition struct {
	mu       sync.RWMutex
	findings []finding.Finding
}

// Store is an append-only, key-partitioned finding store.
// The zero value is not usable; call New.
type Store struct {
	parts sync.Map // map[partitionKey]*partition
	total atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Append stores f under (namespace, key). The finding is validated and
// copied; a non-nil error means it was not stored.
func (s *Store) Append(namespace, key string, f finding.Finding) error {
	if namespace == "" || key == "" {
		return ErrEmptyPartition
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("kb: append %s/%s: %w", namespace, key, err)
	}

	p := s.partition(partitionKey{namespace, key})
	p.mu.Lock()
	p.findings = append(p.findings, f.Clone())
	p.mu.Unlock()

	s.total.Add(1)
	return nil
}

// All returns a snapshot of the findings under (namespace, key) in append
// order. Findings appended concurrently by different tasks appear in the
// order their appends were serialized, not the order the tasks were spawned.
func (s *Store) All(namespace, key string) []finding.Finding {
	v, ok := s.parts.Load(partitionKey{namespace, key})
	if !ok {
		return nil
	}
	p, _ := v.(*partition)
	if p == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.findings)
}

// Len returns the number of findings under (namespace, key).
func (s *Store) Len(namespace, key string) int {
	v, ok := s.parts.Load(partitionKey{namespace, key})
	if !ok {
		return 0
	}
	p, _ := v.(*partition)
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.findings)
}

// Total returns the number of findings across all partitions.
func (s *Store) Total() int {
	return int(s.total.Load())
}

// Keys returns the sorted keys present under namespace.
func (s *Store) Keys(namespace string) []string {
	var keys []string
	s.parts.Range(func(k, _ any) bool {
		pk, _ := k.(partitionKey)
		if pk.namespace == namespace {
			keys = append(keys, pk.key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Namespaces returns the sorted namespaces that hold at least one partition.
func (s *Store) Namespaces() []string {
	seen := make(map[string]struct{})
	s.parts.Range(func(k, _ any) bool {
		pk, _ := k.(partitionKey)
		seen[pk.namespace] = struct{}{}
		return true
	})
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Reset drops every partition.
func (s *Store) Reset() {
	s.parts.Range(func(k, _ any) bool {
		s.parts.Delete(k)
		return true
	})
	s.total.Store(0)
}

func (s *Store) partition(pk partitionKey) *partition {
	if v, ok := s.parts.Load(pk); ok {
		if p, _ := v.(*partition); p != nil {
			return p
		}
	}
	actual, _ := s.parts.LoadOrStore(pk, &partition{})
	p, _ := actual.(*partition)
	return p
}
