package storage

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/quotes-api/storage"

// Outcomes recorded on store operation metrics.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// instrumented decorates a QuoteRepository with a span, a duration
// histogram sample and a trace-level log line per call.
type instrumented struct {
	next     ports.QuoteRepository
	logger   *slog.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

var _ ports.QuoteRepository = (*instrumented)(nil)

// Instrument wraps repo. Metric registration failures are reported through
// otel.Handle and leave the repository usable without the histogram.
func Instrument(repo ports.QuoteRepository, logger *slog.Logger) ports.QuoteRepository {
	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"quote.store.operation.duration",
		metric.WithDescription("Quote store operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &instrumented{
		next:     repo,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}
}

func observe[T any](ctx context.Context, r *instrumented, op string, attrs []attribute.KeyValue,
	fn func(context.Context) (T, error),
) (T, error) {
	ctx, span := r.tracer.Start(ctx, "QuoteRepository."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	outcome := outcomeOK

	switch {
	case err == nil:
	case domain.IsNotFound(err):
		outcome = outcomeNotFound
	default:
		outcome = outcomeError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if r.duration != nil {
		r.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}

	r.logger.Log(ctx, logging.LevelTrace, "quote store call",
		slog.String("operation", op),
		slog.String("outcome", outcome),
		slog.Duration("duration", elapsed),
	)

	return result, err
}

func idAttr(id int64) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("quote.id", id)}
}

func (r *instrumented) Insert(ctx context.Context, author, text string) (*domain.Quote, error) {
	return observe(ctx, r, "Insert", nil, func(ctx context.Context) (*domain.Quote, error) {
		return r.next.Insert(ctx, author, text)
	})
}

func (r *instrumented) GetByID(ctx context.Context, id int64) (*domain.Quote, error) {
	return observe(ctx, r, "GetByID", idAttr(id), func(ctx context.Context) (*domain.Quote, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *instrumented) List(ctx context.Context) ([]*domain.Quote, error) {
	return observe(ctx, r, "List", nil, r.next.List)
}

func (r *instrumented) FindByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error) {
	attrs := []attribute.KeyValue{attribute.String("quote.author_fragment", fragment)}

	return observe(ctx, r, "FindByAuthor", attrs, func(ctx context.Context) ([]*domain.Quote, error) {
		return r.next.FindByAuthor(ctx, fragment)
	})
}

func (r *instrumented) Update(ctx context.Context, id int64, author, text string) (*domain.Quote, error) {
	return observe(ctx, r, "Update", idAttr(id), func(ctx context.Context) (*domain.Quote, error) {
		return r.next.Update(ctx, id, author, text)
	})
}

func (r *instrumented) Delete(ctx context.Context, id int64) (*domain.Quote, error) {
	return observe(ctx, r, "Delete", idAttr(id), func(ctx context.Context) (*domain.Quote, error) {
		return r.next.Delete(ctx, id)
	})
}

func (r *instrumented) Count(ctx context.Context) (int, error) {
	return observe(ctx, r, "Count", nil, r.next.Count)
}

func (r *instrumented) Name() string {
	return r.next.Name()
}

func (r *instrumented) Check(ctx context.Context) error {
	return r.next.Check(ctx)
}

func (r *instrumented) Close() error {
	return r.next.Close()
}
