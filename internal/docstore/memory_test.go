package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    string  `json:"price"`
	Offer    *string `json:"offer,omitempty"`
	Nested   struct {
		ID string `json:"id"`
	} `json:"nested"`
}

func newDoc(name, category, price string, offer *string, nestedID string) testDoc {
	d := testDoc{Name: name, Category: category, Price: price, Offer: offer}
	d.Nested.ID = nestedID
	return d
}

func strPtr(s string) *string { return &s }

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "x", "1", nil, "p1")))

	doc, err := store.Get(ctx, "things", "a")
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "one", got.Name)

	require.NoError(t, store.Delete(ctx, "things", "a"))
	_, err = store.Get(ctx, "things", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "shoes", "10", strPtr("0.5"), "p1")))
	require.NoError(t, store.Set(ctx, "things", "b", newDoc("two", "shoes", "5", nil, "p2")))
	require.NoError(t, store.Set(ctx, "things", "c", newDoc("three", "hats", "7", nil, "p1")))

	docs, err := store.Query(ctx, "things", Query{Filters: []Filter{Eq("category", "shoes")}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.Query(ctx, "things", Query{Filters: []Filter{HasField("offer")}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	docs, err = store.Query(ctx, "things", Query{Filters: []Filter{
		Eq("category", "shoes"),
		FieldAbsent("offer"),
	}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)

	docs, err = store.Query(ctx, "things", Query{Filters: []Filter{Eq("nested.id", "p1")}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMemoryStore_QueryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "x", "10", nil, "")))
	require.NoError(t, store.Set(ctx, "things", "b", newDoc("two", "x", "5", nil, "")))
	require.NoError(t, store.Set(ctx, "things", "c", newDoc("three", "x", "7.5", nil, "")))

	docs, err := store.Query(ctx, "things", Query{OrderBy: "price", OrderNumeric: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)
}

func TestMemoryStore_ListenDeliversInitialAndUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "x", "1", nil, "")))

	ch, err := store.Listen(ctx, "things")
	require.NoError(t, err)

	initial := receiveDocs(t, ch)
	assert.Len(t, initial, 1)

	require.NoError(t, store.Set(ctx, "things", "b", newDoc("two", "x", "2", nil, "")))
	updated := receiveDocs(t, ch)
	assert.Len(t, updated, 2)
}

func TestMemoryStore_ListenConflatesForSlowConsumers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemoryStore()

	ch, err := store.Listen(ctx, "things")
	require.NoError(t, err)
	receiveDocs(t, ch) // initial empty snapshot

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, "things", string(rune('a'+i)), newDoc("n", "x", "1", nil, "")))
	}

	// Only the latest state is pending.
	latest := receiveDocs(t, ch)
	assert.Len(t, latest, 5)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot with %d docs", len(extra))
	default:
	}
}

func TestMemoryStore_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "things", "a", newDoc("one", "x", "1", nil, "")))

	errBoom := assert.AnError
	err := store.RunTransaction(ctx, func(tx Tx) error {
		require.NoError(t, tx.Set(ctx, "things", "a", newDoc("changed", "x", "1", nil, "")))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	doc, err := store.Get(ctx, "things", "a")
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "one", got.Name)
}

func TestMemoryStore_TransactionsSerialize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type counter struct {
		N int `json:"n"`
	}
	require.NoError(t, store.Set(ctx, "counters", "c", counter{N: 0}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.RunTransaction(ctx, func(tx Tx) error {
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
	wg.Wait()

	doc, err := store.Get(ctx, "counters", "c")
	require.NoError(t, err)
	var c counter
	require.NoError(t, doc.Decode(&c))
	assert.Equal(t, 20, c.N)
}

func TestMemoryStore_BatchAppliesAllOps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "cart", "i1", newDoc("one", "x", "1", nil, "")))
	require.NoError(t, store.Set(ctx, "cart", "i2", newDoc("two", "x", "2", nil, "")))

	b := NewBatch()
	orderID := b.Add("orders", newDoc("order", "x", "3", nil, ""))
	b.Set("user-orders", orderID, newDoc("order", "x", "3", nil, ""))
	b.Delete("cart", "i1")
	b.Delete("cart", "i2")
	require.NoError(t, store.RunBatch(ctx, b))

	remaining, err := store.Query(ctx, "cart", Query{})
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = store.Get(ctx, "orders", orderID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, "user-orders", orderID)
	assert.NoError(t, err)
}

func receiveDocs(t *testing.T, ch <-chan []Document) []Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
