// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// QuoteRepository is the record store for quotes.
//
// Every returned *domain.Quote is a copy owned by the caller. Mutating it
// never changes stored state. Ids are assigned by the store in strictly
// increasing order and are never reused, even after a delete.
type QuoteRepository interface {
	// Insert stores a new quote and returns it with its assigned id.
	// The stored secret is always empty.
	Insert(ctx context.Context, author, text string) (*domain.Quote, error)

	// GetByID returns the quote with the given id.
	// Returns domain.ErrNotFound if no such quote exists.
	GetByID(ctx context.Context, id int64) (*domain.Quote, error)

	// List returns every quote in insertion order.
	// The result is an empty, non-nil slice when the store is empty.
	List(ctx context.Context) ([]*domain.Quote, error)

	// FindByAuthor returns the quotes whose author contains fragment,
	// compared case-insensitively, in insertion order. No match yields an
	// empty slice, not an error.
	FindByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error)

	// Update replaces author and text of an existing quote. The id and
	// secret are left untouched.
	// Returns domain.ErrNotFound if no such quote exists.
	Update(ctx context.Context, id int64, author, text string) (*domain.Quote, error)

	// Delete removes the quote and returns the removed record.
	// Returns domain.ErrNotFound if no such quote exists.
	Delete(ctx context.Context, id int64) (*domain.Quote, error)

	// Count returns the number of stored quotes.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error

	HealthChecker
}
