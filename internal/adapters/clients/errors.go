package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

// Transport-level failures. QuotesClient wraps them together with a
// domain.ErrUnavailable.
var (
	// ErrCircuitOpen means the breaker rejected the call without sending it.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded means every attempt failed to get an answer.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrRateLimited means the server answered 429.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx answer that has no domain meaning.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("quotes API answered %d %s: %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("quotes API answered %d", e.Status)
}

// envelope mirrors the server's error body.
type envelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	TraceID string `json:"traceId"`
}

func readEnvelope(body io.Reader) envelope {
	var env envelope
	_ = json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&env)

	return env
}

// maxErrorBody caps how much of an error answer is read.
const maxErrorBody = 64 << 10

// translateTransport turns a Do failure into a domain error.
func translateTransport(op string, err error) error {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return fmt.Errorf("%s: %w: %w", op, domain.NewUnavailableError(peerService, "request not sent"), err)
	case errors.Is(err, ErrMaxRetriesExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.NewUnavailableError(peerService, "no answer"), err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// translateStatus turns a non-2xx answer into a domain error. notFound
// builds the error for a 404 when the envelope carries no message.
func translateStatus(op string, resp *http.Response, notFound func() error) error {
	env := readEnvelope(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if notFound != nil {
			return notFound()
		}

		return fmt.Errorf("%s: %w", op, &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error.Code,
			Message: env.Error.Message,
		})

	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%s: %w", op, validationFromEnvelope(env))

	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", op, ErrRateLimited)

	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%s: %w", op, domain.NewUnavailableError(peerService, env.Error.Message))

	default:
		return fmt.Errorf("%s: %w", op, &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error.Code,
			Message: env.Error.Message,
		})
	}
}

// validationFromEnvelope keeps the first field detail in name order so the
// result does not depend on map iteration.
func validationFromEnvelope(env envelope) error {
	if len(env.Error.Details) == 0 {
		msg := env.Error.Message
		if msg == "" {
			msg = "request rejected"
		}

		return domain.NewValidationError("", msg)
	}

	fields := make([]string, 0, len(env.Error.Details))
	for field := range env.Error.Details {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	return domain.NewValidationError(fields[0], env.Error.Details[fields[0]])
}
