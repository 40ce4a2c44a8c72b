package sqlite

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New("")
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for _, q := range [][2]string{
		{"Dennis Gabor", "Det bästa sättet att förutspå framtiden är genom att skapa den."},
		{"Mahatma Gandhi", "Var den förändring du vill se i världen."},
		{"Pablo Picasso", "Allt du kan föreställa dig är verkligt."},
	} {
		_, err := s.Insert(ctx, q[0], q[1])
		require.NoError(t, err)
	}

	return s
}

func TestNew_RunsMigrations(t *testing.T) {
	s, err := New(DefaultDSN)
	require.NoError(t, err)
	defer s.Close()

	var table string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='quotes'`).Scan(&table)
	require.NoError(t, err)
	assert.Equal(t, "quotes", table)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, RunMigrations(s.db))
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q, err := s.Insert(ctx, "Anders Ericsson", "Öva medvetet.")
	require.NoError(t, err)
	assert.Equal(t, int64(4), q.ID)
	assert.Empty(t, q.Secret)

	got, err := s.GetByID(ctx, q.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(q, got); diff != "" {
		t.Errorf("GetByID() mismatch (-inserted +got):\n%s", diff)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByID(context.Background(), 999)

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_InsertionOrder(t *testing.T) {
	s := newTestStore(t)

	quotes, err := s.List(context.Background())
	require.NoError(t, err)

	require.Len(t, quotes, 3)
	assert.Equal(t, "Dennis Gabor", quotes[0].Author)
	assert.Equal(t, "Mahatma Gandhi", quotes[1].Author)
	assert.Equal(t, "Pablo Picasso", quotes[2].Author)
}

func TestList_Empty(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	defer s.Close()

	quotes, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, quotes)
	assert.Empty(t, quotes)
}

func TestFindByAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	quotes, err := s.FindByAuthor(ctx, "gab")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "Dennis Gabor", quotes[0].Author)

	quotes, err = s.FindByAuthor(ctx, "gabbagool")
	require.NoError(t, err)
	assert.NotNil(t, quotes)
	assert.Empty(t, quotes)
}

func TestFindByAuthor_WildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)

	quotes, err := s.FindByAuthor(context.Background(), "%")

	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`UPDATE quotes SET secret = 'internal' WHERE id = 1`)
	require.NoError(t, err)

	q, err := s.Update(ctx, 1, "Dennis Panjuta", "Vägen till framgång")
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.ID)
	assert.Equal(t, "Dennis Panjuta", q.Author)
	assert.Equal(t, "internal", q.Secret)

	_, err = s.Update(ctx, 42, "x", "y")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	removed, err := s.Delete(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Pablo Picasso", removed.Author)

	_, err = s.Delete(ctx, 3)
	require.ErrorIs(t, err, domain.ErrNotFound)

	q, err := s.Insert(ctx, "New", "Author")
	require.NoError(t, err)
	assert.Equal(t, int64(4), q.ID, "deleted ids must not be reused")
}

func TestCheckAndClose(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Check(ctx))
	assert.Equal(t, "quote-store", s.Name())

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Check(ctx), domain.ErrUnavailable)
}
