package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hypejunction/payments/internal/entity"
)

// Store is an in-memory implementation of the entity and relationship
// store boundaries. It is safe for concurrent use. Data is lost on
// restart - for persistence, use the BigQuery-backed store.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entity.Entity
	links    []link
}

type link struct {
	from string
	role string
	to   string
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*entity.Entity),
	}
}

// Load implements entity.Store.
func (s *Store) Load(ctx context.Context, guid string) (*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entities[guid]
	if !exists {
		return nil, entity.ErrNotFound
	}
	return copyEntity(e), nil
}

// Save implements entity.Store. It assigns a GUID and creation time on
// first save and stores a copy to avoid external modifications.
func (s *Store) Save(ctx context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("entity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.GUID == "" {
		e.GUID = uuid.NewString()
	}
	if e.TimeCreated.IsZero() {
		e.TimeCreated = time.Now().UTC()
	}
	s.entities[e.GUID] = copyEntity(e)
	return nil
}

// QueryByMetadata implements entity.Store.
func (s *Store) QueryByMetadata(ctx context.Context, name, value string, limit int, oldestFirst bool) ([]*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.Entity
	for _, e := range s.entities {
		if e.Meta(name) == value {
			result = append(result, copyEntity(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if oldestFirst {
			return result[i].TimeCreated.Before(result[j].TimeCreated)
		}
		return result[i].TimeCreated.After(result[j].TimeCreated)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Add implements entity.Relationships.
func (s *Store) Add(ctx context.Context, fromGUID, role, toGUID string) error {
	if fromGUID == "" || role == "" || toGUID == "" {
		return fmt.Errorf("fromGUID, role and toGUID are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.links = append(s.links, link{from: fromGUID, role: role, to: toGUID})
	return nil
}

// Inbound implements entity.Relationships. It returns the entities on
// the from-side of relationships pointing at toGUID, in insertion order.
func (s *Store) Inbound(ctx context.Context, role, toGUID string, limit int) ([]*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.Entity
	for _, l := range s.links {
		if l.role != role || l.to != toGUID {
			continue
		}
		if e, exists := s.entities[l.from]; exists {
			result = append(result, copyEntity(e))
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func copyEntity(e *entity.Entity) *entity.Entity {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
