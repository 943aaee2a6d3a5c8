package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

type MemoryStore struct {
	mu  sync.RWMutex
	rec *domain.SessionRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(_ context.Context, rec *domain.SessionRecord) error {
	if !wellFormed(rec) {
		return fmt.Errorf("save session: incomplete record")
	}
	cp := *rec
	s.mu.Lock()
	s.rec = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Read(_ context.Context) (*domain.SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return nil, false
	}
	cp := *s.rec
	return &cp, true
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()
	return nil
}
