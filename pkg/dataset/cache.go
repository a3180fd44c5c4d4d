package dataset

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

const documentKey = "document"

// CachedSource memoizes a successful load for ttl. Failures are not cached.
type CachedSource struct {
	inner Source
	cache *gocache.Cache
	mu    sync.Mutex
}

func NewCachedSource(inner Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedSource) Load(ctx context.Context) (*models.Document, error) {
	if doc, ok := s.cache.Get(documentKey); ok {
		return doc.(*models.Document), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.cache.Get(documentKey); ok {
		return doc.(*models.Document), nil
	}

	doc, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(documentKey, doc)
	return doc, nil
}

// Invalidate drops the cached document so the next Load hits the source.
func (s *CachedSource) Invalidate() {
	s.cache.Delete(documentKey)
}
