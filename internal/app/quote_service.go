// Package app holds the quote use cases. It sits between the HTTP handlers
// and the QuoteRepository port and never sees a concrete store.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// QuoteService runs the quote use cases against a QuoteRepository.
type QuoteService struct {
	repo   ports.QuoteRepository
	logger *slog.Logger
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	Repository ports.QuoteRepository
	Logger     *slog.Logger
}

// QuoteInput carries the client-writable fields of a quote.
type QuoteInput struct {
	Author string
	Text   string
}

// NewQuoteService creates a new quote service with the provided dependencies.
// It panics without a repository.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Repository == nil {
		panic("app: QuoteService requires a Repository")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteService{
		repo:   cfg.Repository,
		logger: logger,
	}
}

// ListQuotes returns every stored quote in insertion order.
// An empty store yields an empty slice.
func (s *QuoteService) ListQuotes(ctx context.Context) ([]*domain.Quote, error) {
	quotes, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	return quotes, nil
}

// SearchByAuthor returns the quotes whose author contains fragment,
// ignoring case. Zero matches is reported as a not found error.
func (s *QuoteService) SearchByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error) {
	quotes, err := s.repo.FindByAuthor(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("searching quotes: %w", err)
	}

	if len(quotes) == 0 {
		s.logger.DebugContext(ctx, "author search matched nothing", slog.String("fragment", fragment))

		return nil, domain.NewNoMatchError(domain.EntityQuote, fmt.Sprintf("by author matching %q", fragment))
	}

	return quotes, nil
}

// GetQuote returns a single quote.
func (s *QuoteService) GetQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateQuote validates input and stores a new quote. Nothing is stored when
// validation fails.
func (s *QuoteService) CreateQuote(ctx context.Context, in QuoteInput) (*domain.Quote, error) {
	quote, err := s.write(ctx, quoteWrite{
		op:       "create_quote",
		validate: true,
		store: func(ctx context.Context, in QuoteInput) (*domain.Quote, error) {
			return s.repo.Insert(ctx, in.Author, in.Text)
		},
	}, in)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quote created", slog.Int64("quote_id", quote.ID))

	return quote, nil
}

// UpdateQuote overwrites author and text of an existing quote. The id and
// secret never change. Author and text are stored as given, blank or not.
func (s *QuoteService) UpdateQuote(ctx context.Context, id int64, in QuoteInput) (*domain.Quote, error) {
	quote, err := s.write(ctx, quoteWrite{
		op: "update_quote",
		store: func(ctx context.Context, in QuoteInput) (*domain.Quote, error) {
			return s.repo.Update(ctx, id, in.Author, in.Text)
		},
	}, in)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quote updated", slog.Int64("quote_id", quote.ID))

	return quote, nil
}

// DeleteQuote removes a quote and returns the removed record.
func (s *QuoteService) DeleteQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	quote, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quote deleted", slog.Int64("quote_id", id))

	return quote, nil
}
