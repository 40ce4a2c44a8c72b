package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// WriteStep names a stage of a quote create or update.
type WriteStep string

const (
	StepValidate WriteStep = "validate"
	StepStore    WriteStep = "store"
	StepVerify   WriteStep = "verify"
)

// WriteError records the stage a quote write stopped at. The cause stays
// reachable through errors.Is and errors.As.
type WriteError struct {
	Op   string
	Step WriteStep
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Step, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FailedStep reports the stage at which err stopped a quote write.
func FailedStep(err error) (WriteStep, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Step, true
	}

	return "", false
}

// quoteWrite is a single create or update. store persists the input in one
// repository call and returns the record as written. validate gates the
// field checks; updates overwrite author and text as given.
type quoteWrite struct {
	op       string
	validate bool
	store    func(ctx context.Context, in QuoteInput) (*domain.Quote, error)
}

// write optionally validates in, hands it to w.store and checks the returned
// record holds the input. The record is never read a second time, so a write
// that another request overtakes still reports what it stored. Nothing
// reaches the repository when validation fails.
func (s *QuoteService) write(ctx context.Context, w quoteWrite, in QuoteInput) (*domain.Quote, error) {
	logger := logging.FromContextOr(ctx, s.logger).With(slog.String("operation", w.op))

	fail := func(step WriteStep, err error) (*domain.Quote, error) {
		logger.DebugContext(ctx, "quote write stopped",
			slog.String("step", string(step)),
			slog.Any("error", err),
		)

		return nil, &WriteError{Op: w.op, Step: step, Err: err}
	}

	if w.validate {
		if err := domain.ValidateQuoteFields(in.Author, in.Text); err != nil {
			return fail(StepValidate, err)
		}
	}

	written, err := w.store(ctx, in)
	if err != nil {
		return fail(StepStore, err)
	}

	if written.Author != in.Author || written.Text != in.Text {
		return fail(StepVerify, fmt.Errorf("quote %d does not hold the written values", written.ID))
	}

	logger.Log(ctx, logging.LevelTrace, "quote write verified", slog.Int64(logging.KeyQuoteID, written.ID))

	return written, nil
}
