package session

import (
	"context"
	"errors"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

// Mirror writes to every medium and reads from the first one that holds a
// record. A record found further down is copied into the media before it,
// so a fast primary (memory) fills from a durable mirror (file) once.
type Mirror struct {
	stores []Store
}

func NewMirror(primary Store, mirrors ...Store) *Mirror {
	return &Mirror{stores: append([]Store{primary}, mirrors...)}
}

// Save writes every medium in order. If one refuses the record, the media
// already written are cleared so no medium holds a login another lost.
func (m *Mirror) Save(ctx context.Context, rec *domain.SessionRecord) error {
	for i, s := range m.stores {
		if err := s.Save(ctx, rec); err != nil {
			for _, done := range m.stores[:i] {
				_ = done.Clear(ctx)
			}
			return err
		}
	}
	return nil
}

func (m *Mirror) Read(ctx context.Context) (*domain.SessionRecord, bool) {
	for i, s := range m.stores {
		rec, ok := s.Read(ctx)
		if !ok {
			continue
		}
		for _, earlier := range m.stores[:i] {
			_ = earlier.Save(ctx, rec)
		}
		return rec, true
	}
	return nil, false
}

// Clear attempts every medium even when one fails.
func (m *Mirror) Clear(ctx context.Context) error {
	var errs []error
	for _, s := range m.stores {
		errs = append(errs, s.Clear(ctx))
	}
	return errors.Join(errs...)
}
