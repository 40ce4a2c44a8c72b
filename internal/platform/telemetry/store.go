package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// countTimeout bounds the store query made on every scrape.
const countTimeout = 2 * time.Second

// RegisterQuoteGauge registers a quotes_stored gauge that asks count for the
// current number of records on each scrape. A failing count reports -1.
func RegisterQuoteGauge(reg prometheus.Registerer, count func(ctx context.Context) (int, error)) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quotes_stored",
		Help: "Number of quotes currently held by the store.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()

		n, err := count(ctx)
		if err != nil {
			return -1
		}

		return float64(n)
	})

	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}

		return err
	}

	return nil
}
