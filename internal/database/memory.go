package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore used in development and tests
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	order []string
	docs  map[string]map[string]interface{}
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]map[string]interface{})}
		s.collections[name] = c
	}
	return c
}

// Add stores fields under a generated id
func (s *MemoryStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Create stores fields under id
func (s *MemoryStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c.docs[id]; exists {
		return ErrAlreadyExists
	}
	c.docs[id] = normalized
	c.order = append(c.order, id)
	return nil
}

// Get returns a copy of the document
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	fields, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDocument(id, fields), nil
}

// GetAll returns every document in insertion order
func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, collection, Query{})
}

// Query filters by equality and optionally sorts
func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filters := make([]Filter, 0, len(q.Where))
	for _, f := range q.Where {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{Field: f.Field, Value: value})
	}

	s.mu.RLock()
	c, ok := s.collections[collection]
	var docs []Document
	if ok {
		for _, id := range c.order {
			fields := c.docs[id]
			if matches(fields, filters) {
				docs = append(docs, copyDocument(id, fields))
			}
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			cmp := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if q.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// Update merges fields into an existing document
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	existing, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range normalized {
		existing[key] = value
	}
	return nil
}

// Delete removes a document
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	return len(c.docs), nil
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !valuesEqual(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func copyDocument(id string, fields map[string]interface{}) Document {
	// Stored values are already normalized, so this cannot fail
	copied, _ := NormalizeFields(fields)
	return Document{ID: id, Fields: copied}
}
