package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		// Unit tests against the memory store still run.
		os.Exit(m.Run())
	}

	var err error
	testPool, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := Migrate(context.Background(), testPool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate test database: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func newTestPGStore(t *testing.T) *PGStore {
	t.Helper()
	if testPool == nil {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	_, err := testPool.Exec(context.Background(), `DELETE FROM documents`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store, err := NewPGStore(ctx, testPool, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return store
}

func TestPGStore_RoundTrip(t *testing.T) {
	store := newTestPGStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "things", newDoc("one", "shoes", "10", nil, "p1"))
	require.NoError(t, err)

	doc, err := store.Get(ctx, "things", id)
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "one", got.Name)

	docs, err := store.Query(ctx, "things", Query{Filters: []Filter{Eq("nested.id", "p1")}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, store.Delete(ctx, "things", id))
	_, err = store.Get(ctx, "things", id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStore_QueryPredicates(t *testing.T) {
	store := newTestPGStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "shoes", "10", strPtr("0.5"), "")))
	require.NoError(t, store.Set(ctx, "things", "b", newDoc("two", "shoes", "5", nil, "")))

	docs, err := store.Query(ctx, "things", Query{Filters: []Filter{HasField("offer")}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	docs, err = store.Query(ctx, "things", Query{Filters: []Filter{FieldAbsent("offer")}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)

	docs, err = store.Query(ctx, "things", Query{OrderBy: "price", OrderNumeric: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
}

func TestPGStore_TransactionIncrementsDoNotLoseUpdates(t *testing.T) {
	store := newTestPGStore(t)
	ctx := context.Background()

	type counter struct {
		N int `json:"n"`
	}
	require.NoError(t, store.Set(ctx, "counters", "c", counter{N: 0}))

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- store.RunTransaction(ctx, func(tx Tx) error {
				doc, err := tx.Get(ctx, "counters", "c")
				if err != nil {
					return err
				}
				var c counter
				if err := doc.Decode(&c); err != nil {
					return err
				}
				c.N++
				return tx.Set(ctx, "counters", "c", c)
			})
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	doc, err := store.Get(ctx, "counters", "c")
	require.NoError(t, err)
	var c counter
	require.NoError(t, doc.Decode(&c))
	assert.Equal(t, 2, c.N)
}

func TestPGStore_ListenSeesCommittedChanges(t *testing.T) {
	store := newTestPGStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Listen(ctx, "things")
	require.NoError(t, err)
	receiveDocs(t, ch) // initial empty snapshot

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "x", "1", nil, "")))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case docs := <-ch:
			if len(docs) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("listener never observed the committed change")
		}
	}
}
