package docstore

import "github.com/google/uuid"

type batchOpKind int

const (
	opSet batchOpKind = iota
	opDelete
)

type batchOp struct {
	kind       batchOpKind
	collection string
	id         string
	value      any
}

// Batch collects independent writes and deletes that a Store commits
// atomically, without reading first.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Set(collection, id string, value any) {
	b.ops = append(b.ops, batchOp{kind: opSet, collection: collection, id: id, value: value})
}

// Add stages a Set under a freshly generated document id and returns that id.
func (b *Batch) Add(collection string, value any) string {
	id := uuid.NewString()
	b.Set(collection, id, value)
	return id
}

func (b *Batch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: opDelete, collection: collection, id: id})
}

func (b *Batch) Len() int { return len(b.ops) }

// collections returns the distinct collections the batch touches, in first
// touched order.
func (b *Batch) collections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range b.ops {
		if !seen[op.collection] {
			seen[op.collection] = true
			out = append(out, op.collection)
		}
	}
	return out
}
