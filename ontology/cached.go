package ontology

import (
	"context"

	"github.com/c360/cvsync/pkg/cache"
)

// CachedSource memoizes TermForAccession lookups of a slower Source. Absent
// terms are cached too.
type CachedSource struct {
	Source
	terms cache.Cache[*TermSnapshot]
}

// NewCachedSource wraps src with an LRU of the given size.
func NewCachedSource(src Source, size int, opts ...cache.Option[*TermSnapshot]) (*CachedSource, error) {
	c, err := cache.NewLRU[*TermSnapshot](size, opts...)
	if err != nil {
		return nil, err
	}
	return &CachedSource{Source: src, terms: c}, nil
}

// TermForAccession implements Source.
func (s *CachedSource) TermForAccession(ctx context.Context, accession string) (*TermSnapshot, error) {
	if t, ok := s.terms.Get(accession); ok {
		return t, nil
	}
	t, err := s.Source.TermForAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	if accession != "" {
		_, _ = s.terms.Set(accession, t)
	}
	return t, nil
}

// Stats exposes the cache statistics.
func (s *CachedSource) Stats() *cache.Statistics {
	return s.terms.Stats()
}
