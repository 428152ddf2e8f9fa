// Package docstore reads the per-user context documents (profile, lifestyle,
// medical history) owned by the external document store.
package docstore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Collections holding per-user documents, keyed by user id.
const (
	CollectionUsers          = "users"
	CollectionLifestyle      = "lifestyle"
	CollectionMedicalHistory = "medicalHistory"
)

// Fetcher reads one document. A missing document is (nil, nil).
type Fetcher interface {
	FetchDocumentByID(ctx context.Context, collection, id string) (map[string]any, error)
}

// UserContext is fetched fresh for every request and never cached.
type UserContext struct {
	Profile        map[string]any
	Lifestyle      map[string]any
	MedicalHistory map[string]any
}

func (u UserContext) Empty() bool {
	return u.Profile == nil && u.Lifestyle == nil && u.MedicalHistory == nil
}

// LoadUserContext fetches the three documents concurrently.
func LoadUserContext(ctx context.Context, f Fetcher, userID string) (UserContext, error) {
	var uc UserContext
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range []struct {
		collection string
		dst        *map[string]any
	}{
		{CollectionUsers, &uc.Profile},
		{CollectionLifestyle, &uc.Lifestyle},
		{CollectionMedicalHistory, &uc.MedicalHistory},
	} {
		g.Go(func() error {
			doc, err := f.FetchDocumentByID(gctx, target.collection, userID)
			if err != nil {
				return fmt.Errorf("fetch %s/%s: %w", target.collection, userID, err)
			}
			*target.dst = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return UserContext{}, err
	}
	return uc, nil
}

// Static serves documents from memory. Useful for tests and local runs
// without a document store.
type Static struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

func NewStatic() *Static {
	return &Static{docs: make(map[string]map[string]any)}
}

func (s *Static) Put(collection, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection+"/"+id] = doc
}

func (s *Static) FetchDocumentByID(_ context.Context, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[collection+"/"+id], nil
}
