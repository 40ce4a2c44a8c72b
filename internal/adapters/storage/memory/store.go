// Package memory provides the default in-process quote store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// Name identifies the store in health check results.
const Name = "quote-store"

var _ ports.QuoteRepository = (*Store)(nil)

// Store keeps quotes in a map keyed by id plus an insertion-ordered id list.
// One RWMutex guards both so every operation is a single atomic step.
type Store struct {
	mu     sync.RWMutex
	quotes map[int64]*domain.Quote
	order  []int64
	nextID int64
	closed bool
}

// New creates an empty store. The first inserted quote gets id 1.
func New() *Store {
	return &Store{
		quotes: make(map[int64]*domain.Quote),
		order:  make([]int64, 0),
		nextID: 1,
	}
}

// Insert stores a new quote under the next id.
func (s *Store) Insert(ctx context.Context, author, text string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed()
	}

	q := &domain.Quote{ID: s.nextID, Author: author, Text: text}
	s.nextID++

	s.quotes[q.ID] = q
	s.order = append(s.order, q.ID)

	return q.Clone(), nil
}

// GetByID returns a copy of the quote with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}

	q, ok := s.quotes[id]
	if !ok {
		return nil, domain.QuoteNotFound(id)
	}

	return q.Clone(), nil
}

// List returns copies of all quotes in insertion order.
func (s *Store) List(ctx context.Context) ([]*domain.Quote, error) {
	return s.collect(ctx, func(*domain.Quote) bool { return true })
}

// FindByAuthor returns copies of the quotes whose author contains fragment.
func (s *Store) FindByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error) {
	return s.collect(ctx, func(q *domain.Quote) bool { return q.MatchesAuthor(fragment) })
}

func (s *Store) collect(ctx context.Context, keep func(*domain.Quote) bool) ([]*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed()
	}

	result := make([]*domain.Quote, 0, len(s.order))
	for _, id := range s.order {
		if q := s.quotes[id]; keep(q) {
			result = append(result, q.Clone())
		}
	}

	return result, nil
}

// Update overwrites author and text in place.
func (s *Store) Update(ctx context.Context, id int64, author, text string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed()
	}

	q, ok := s.quotes[id]
	if !ok {
		return nil, domain.QuoteNotFound(id)
	}

	q.Author = author
	q.Text = text

	return q.Clone(), nil
}

// Delete removes the quote and returns what was stored.
// The id is not handed out again.
func (s *Store) Delete(ctx context.Context, id int64) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed()
	}

	q, ok := s.quotes[id]
	if !ok {
		return nil, domain.QuoteNotFound(id)
	}

	delete(s.quotes, id)

	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}

	return q.Clone(), nil
}

// Count returns the number of stored quotes.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errClosed()
	}

	return len(s.quotes), nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return Name
}

// Check implements ports.HealthChecker. A closed store is unhealthy.
func (s *Store) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed()
	}

	return nil
}

// Close drops all records. Later calls fail with domain.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.quotes = nil
	s.order = nil

	return nil
}

func errClosed() error {
	return domain.NewUnavailableError(Name, "store is closed")
}
