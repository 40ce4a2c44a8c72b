package domain

import (
	"strconv"
	"strings"
)

// EntityQuote is the entity name used in domain errors about quotes.
const EntityQuote = "quote"

// Quote is a stored quotation.
// This is a domain entity - it has no knowledge of external systems.
type Quote struct {
	// ID is assigned by the store on insert and never changes afterwards.
	ID int64

	// Author is who said or wrote the quote.
	Author string

	// Text is the quotation itself.
	Text string

	// Secret is an internal annotation. It is never exposed through any
	// outward-facing projection and cannot be set by clients.
	Secret string
}

// Clone returns an independent copy of the quote.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}

	c := *q

	return &c
}

// MatchesAuthor reports whether fragment occurs anywhere in the author name,
// ignoring case. An empty fragment matches every quote.
func (q *Quote) MatchesAuthor(fragment string) bool {
	return strings.Contains(strings.ToLower(q.Author), strings.ToLower(fragment))
}

// ValidateQuoteFields checks that author and text both carry non-whitespace
// content. It returns the first violation as a *ValidationError.
func ValidateQuoteFields(author, text string) error {
	if strings.TrimSpace(author) == "" {
		return NewValidationError("author", "must not be empty")
	}

	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	return nil
}

// QuoteNotFound builds the not found error for a quote id.
func QuoteNotFound(id int64) error {
	return NewNotFoundError(EntityQuote, strconv.FormatInt(id, 10))
}
