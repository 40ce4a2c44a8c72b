package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_Drivers(t *testing.T) {
	for _, driver := range []string{config.StoreDriverMemory, config.StoreDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			repo, err := Open(&config.StoreConfig{Driver: driver}, discardLogger())
			require.NoError(t, err)
			defer repo.Close()

			ctx := context.Background()

			q, err := repo.Insert(ctx, "Dennis Gabor", "Det bästa sättet att förutspå framtiden är genom att skapa den.")
			require.NoError(t, err)
			assert.Equal(t, int64(1), q.ID)

			got, err := repo.GetByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "Dennis Gabor", got.Author)

			_, err = repo.GetByID(ctx, 2)
			require.ErrorIs(t, err, domain.ErrNotFound)

			matches, err := repo.FindByAuthor(ctx, "GAB")
			require.NoError(t, err)
			assert.Len(t, matches, 1)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			assert.Equal(t, "quote-store", repo.Name())
			require.NoError(t, repo.Check(ctx))
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.StoreConfig{Driver: "postgres"}, discardLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestInstrument_LogsAtTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: logging.LevelTrace}))

	repo, err := Open(&config.StoreConfig{Driver: config.StoreDriverMemory}, logger)
	require.NoError(t, err)

	buf.Reset()

	_, err = repo.Delete(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Contains(t, buf.String(), `"operation":"Delete"`)
	assert.Contains(t, buf.String(), `"outcome":"not_found"`)
}

func TestInstrument_SilentAboveTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	repo := Instrument(memory.New(), logger)

	quotes, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Empty(t, buf.String())
}
