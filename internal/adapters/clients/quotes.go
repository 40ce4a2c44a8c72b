package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// quoteWire is the JSON shape the server sends and accepts.
type quoteWire struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (w quoteWire) toDomain() *domain.Quote {
	return &domain.Quote{ID: w.ID, Author: w.Author, Text: w.Text}
}

// QuotesClient is the typed quotes API. Failures come back as domain
// errors: a missing id is domain.ErrNotFound, a rejected body is
// domain.ErrValidation, an unreachable server is domain.ErrUnavailable.
type QuotesClient struct {
	client *Client
}

// NewQuotesClient wraps client.
func NewQuotesClient(client *Client) *QuotesClient {
	return &QuotesClient{client: client}
}

// Greeting fetches the plain text banner served at "/".
func (q *QuotesClient) Greeting(ctx context.Context) (string, error) {
	resp, err := q.client.Do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return "", translateTransport("greeting", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", translateStatus("greeting", resp, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("reading greeting: %w", err)
	}

	return string(body), nil
}

// List returns every stored quote in insertion order.
func (q *QuotesClient) List(ctx context.Context) ([]*domain.Quote, error) {
	var wire []quoteWire
	if err := q.call(ctx, "list quotes", http.MethodGet, "/quotes", nil, http.StatusOK, &wire, nil); err != nil {
		return nil, err
	}

	return toDomainList(wire), nil
}

// SearchByAuthor returns quotes whose author contains fragment, ignoring case.
func (q *QuotesClient) SearchByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error) {
	var wire []quoteWire

	path := "/quotes/search/" + url.PathEscape(fragment)
	noMatch := func() error {
		return domain.NewNoMatchError(domain.EntityQuote, fmt.Sprintf("by author matching %q", fragment))
	}

	if err := q.call(ctx, "search quotes", http.MethodGet, path, nil, http.StatusOK, &wire, noMatch); err != nil {
		return nil, err
	}

	return toDomainList(wire), nil
}

// Get returns the quote with the given id.
func (q *QuotesClient) Get(ctx context.Context, id int64) (*domain.Quote, error) {
	var wire quoteWire
	if err := q.call(ctx, "get quote", http.MethodGet, quotePath(id), nil, http.StatusOK, &wire, notFound(id)); err != nil {
		return nil, err
	}

	return wire.toDomain(), nil
}

// Create stores a new quote and returns it with its assigned id.
func (q *QuotesClient) Create(ctx context.Context, author, text string) (*domain.Quote, error) {
	var wire quoteWire

	body, err := json.Marshal(quoteWire{Author: author, Text: text})
	if err != nil {
		return nil, fmt.Errorf("encoding quote: %w", err)
	}

	if err := q.call(ctx, "create quote", http.MethodPost, "/quotes", body, http.StatusCreated, &wire, nil); err != nil {
		return nil, err
	}

	return wire.toDomain(), nil
}

// Update replaces the author and text of quote id.
func (q *QuotesClient) Update(ctx context.Context, id int64, author, text string) error {
	body, err := json.Marshal(quoteWire{ID: id, Author: author, Text: text})
	if err != nil {
		return fmt.Errorf("encoding quote: %w", err)
	}

	return q.call(ctx, "update quote", http.MethodPut, quotePath(id), body, http.StatusNoContent, nil, notFound(id))
}

// Delete removes quote id and returns what was stored.
func (q *QuotesClient) Delete(ctx context.Context, id int64) (*domain.Quote, error) {
	var wire quoteWire
	if err := q.call(ctx, "delete quote", http.MethodDelete, quotePath(id), nil, http.StatusOK, &wire, notFound(id)); err != nil {
		return nil, err
	}

	return wire.toDomain(), nil
}

// Name implements ports.HealthChecker.
func (q *QuotesClient) Name() string {
	return peerService
}

// Check asks the server's readiness endpoint.
func (q *QuotesClient) Check(ctx context.Context) error {
	resp, err := q.client.Do(ctx, http.MethodGet, "/-/ready", nil)
	if err != nil {
		return translateTransport("readiness", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewUnavailableError(peerService, "readiness answered "+resp.Status)
	}

	return nil
}

func (q *QuotesClient) call(ctx context.Context, op, method, path string, body []byte, want int, out any,
	onNotFound func() error,
) error {
	resp, err := q.client.Do(ctx, method, path, body)
	if err != nil {
		return translateTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return translateStatus(op, resp, onNotFound)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}

	return nil
}

func quotePath(id int64) string {
	return "/quotes/" + strconv.FormatInt(id, 10)
}

func notFound(id int64) func() error {
	return func() error { return domain.QuoteNotFound(id) }
}

func toDomainList(wire []quoteWire) []*domain.Quote {
	quotes := make([]*domain.Quote, len(wire))
	for i, w := range wire {
		quotes[i] = w.toDomain()
	}

	return quotes
}
