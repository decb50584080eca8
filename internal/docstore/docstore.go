// Package docstore is the document database boundary the storefront core is
// built against. It exposes exactly the primitives the cart/order workflow
// needs: filtered reads, a continuous full-result-set subscription, a
// read-then-write transaction, and a blind all-or-nothing batch.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("docstore: document not found")

// Document is one stored record: its collection-unique id plus the raw JSON
// payload.
type Document struct {
	ID   string
	Data []byte
}

func (d Document) Decode(v any) error { return json.Unmarshal(d.Data, v) }

type FilterOp string

const (
	// OpEqual matches documents whose field equals the given value.
	OpEqual FilterOp = "eq"
	// OpHasField matches documents where the field is present and non-null.
	OpHasField FilterOp = "has"
	// OpFieldAbsent matches documents where the field is missing or null.
	OpFieldAbsent FilterOp = "absent"
)

// Filter is one predicate on a document field. Field may be a dotted path
// into nested objects, e.g. "product.id".
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEqual, Value: value} }
func HasField(field string) Filter      { return Filter{Field: field, Op: OpHasField} }
func FieldAbsent(field string) Filter   { return Filter{Field: field, Op: OpFieldAbsent} }

// Query describes a filtered, optionally ordered and limited read of a
// collection. Without OrderBy, results are ordered by document id so that
// repeated reads of an unchanged collection compare equal.
type Query struct {
	Filters      []Filter
	OrderBy      string
	OrderNumeric bool
	Descending   bool
	Limit        int
}

// Tx is the view a transaction callback operates on. Reads observe committed
// state plus the transaction's own writes, and are linearizable with respect
// to other transactions touching the same documents.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, value any) error
	Delete(ctx context.Context, collection, id string) error
}

// Store is the document database. Listen delivers the full current contents
// of a collection immediately on subscribe and again after every change;
// consumers must treat each delivery as authoritative state, not a delta.
// The channel is closed when ctx is done. Subscribers that fall behind only
// see the most recent state ("last delivered wins").
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Add(ctx context.Context, collection string, value any) (string, error)
	Set(ctx context.Context, collection, id string, value any) error
	Delete(ctx context.Context, collection, id string) error
	Listen(ctx context.Context, collection string) (<-chan []Document, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	RunBatch(ctx context.Context, b *Batch) error
}
