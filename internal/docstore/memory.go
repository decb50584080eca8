package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store. It backs unit tests and the dependency
// free run mode. Transactions hold the store lock for their whole duration,
// which gives the per-document linearizability the interface promises.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
	hub  *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string][]byte),
		hub:  newHub(),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(collection, id)
}

func (s *MemoryStore) getLocked(collection, id string) (Document, error) {
	raw, ok := s.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: append([]byte(nil), raw...)}, nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, q)
}

func (s *MemoryStore) queryLocked(collection string, q Query) ([]Document, error) {
	var out []Document
	for id, raw := range s.data[collection] {
		match, err := matches(raw, q.Filters)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, Document{ID: id, Data: append([]byte(nil), raw...)})
		}
	}

	if q.OrderBy == "" {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	} else {
		field := q.OrderBy
		sort.SliceStable(out, func(i, j int) bool {
			less := fieldLess(out[i].Data, out[j].Data, field, q.OrderNumeric)
			if q.Descending {
				return fieldLess(out[j].Data, out[i].Data, field, q.OrderNumeric)
			}
			return less
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(_ context.Context, collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	s.mu.Lock()
	s.setLocked(collection, id, raw)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()
	s.hub.publish(collection, snap)
	return nil
}

func (s *MemoryStore) setLocked(collection, id string, raw []byte) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string][]byte)
	}
	s.data[collection][id] = raw
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	delete(s.data[collection], id)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()
	s.hub.publish(collection, snap)
	return nil
}

func (s *MemoryStore) Listen(ctx context.Context, collection string) (<-chan []Document, error) {
	ch := s.hub.subscribe(ctx, collection)
	s.mu.Lock()
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()
	s.hub.publish(collection, snap)
	return ch, nil
}

// RunTransaction executes fn against a staged view of the store and commits
// its writes atomically. The store lock is held throughout, so two
// transactions on the same document never interleave.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	tx := &memoryTx{store: s, staged: make(map[string]map[string][]byte)}
	err := fn(tx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	touched := tx.commitLocked()
	snaps := make(map[string][]Document, len(touched))
	for _, collection := range touched {
		snaps[collection] = s.snapshotLocked(collection)
	}
	s.mu.Unlock()

	for collection, snap := range snaps {
		s.hub.publish(collection, snap)
	}
	return nil
}

func (s *MemoryStore) RunBatch(_ context.Context, b *Batch) error {
	encoded := make([][]byte, len(b.ops))
	for i, op := range b.ops {
		if op.kind != opSet {
			continue
		}
		raw, err := json.Marshal(op.value)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		encoded[i] = raw
	}

	s.mu.Lock()
	for i, op := range b.ops {
		switch op.kind {
		case opSet:
			s.setLocked(op.collection, op.id, encoded[i])
		case opDelete:
			delete(s.data[op.collection], op.id)
		}
	}
	touched := b.collections()
	snaps := make(map[string][]Document, len(touched))
	for _, collection := range touched {
		snaps[collection] = s.snapshotLocked(collection)
	}
	s.mu.Unlock()

	for collection, snap := range snaps {
		s.hub.publish(collection, snap)
	}
	return nil
}

func (s *MemoryStore) snapshotLocked(collection string) []Document {
	docs := make([]Document, 0, len(s.data[collection]))
	for id, raw := range s.data[collection] {
		docs = append(docs, Document{ID: id, Data: append([]byte(nil), raw...)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

type memoryTx struct {
	store   *MemoryStore
	staged  map[string]map[string][]byte
	deleted map[string]map[string]bool
}

func (t *memoryTx) Get(_ context.Context, collection, id string) (Document, error) {
	if t.deleted[collection][id] {
		return Document{}, ErrNotFound
	}
	if raw, ok := t.staged[collection][id]; ok {
		return Document{ID: id, Data: append([]byte(nil), raw...)}, nil
	}
	return t.store.getLocked(collection, id)
}

func (t *memoryTx) Set(_ context.Context, collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if t.staged[collection] == nil {
		t.staged[collection] = make(map[string][]byte)
	}
	t.staged[collection][id] = raw
	if t.deleted[collection] != nil {
		delete(t.deleted[collection], id)
	}
	return nil
}

func (t *memoryTx) Delete(_ context.Context, collection, id string) error {
	if t.deleted == nil {
		t.deleted = make(map[string]map[string]bool)
	}
	if t.deleted[collection] == nil {
		t.deleted[collection] = make(map[string]bool)
	}
	t.deleted[collection][id] = true
	if t.staged[collection] != nil {
		delete(t.staged[collection], id)
	}
	return nil
}

func (t *memoryTx) commitLocked() []string {
	seen := make(map[string]bool)
	var touched []string
	touch := func(collection string) {
		if !seen[collection] {
			seen[collection] = true
			touched = append(touched, collection)
		}
	}
	for collection, docs := range t.staged {
		for id, raw := range docs {
			t.store.setLocked(collection, id, raw)
		}
		touch(collection)
	}
	for collection, ids := range t.deleted {
		for id := range ids {
			delete(t.store.data[collection], id)
		}
		touch(collection)
	}
	return touched
}

// --- filter evaluation ---

func matches(raw []byte, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for _, f := range filters {
		value, present := lookup(doc, f.Field)
		switch f.Op {
		case OpEqual:
			if !present || !jsonEqual(value, normalize(f.Value)) {
				return false, nil
			}
		case OpHasField:
			if !present || value == nil {
				return false, nil
			}
		case OpFieldAbsent:
			if present && value != nil {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}
	return true, nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// normalize round-trips a value through JSON so that filter values compare
// against decoded documents on equal terms.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func fieldLess(a, b []byte, field string, numeric bool) bool {
	av := orderKey(a, field)
	bv := orderKey(b, field)
	if numeric {
		af, aerr := strconv.ParseFloat(av, 64)
		bf, berr := strconv.ParseFloat(bv, 64)
		if aerr == nil && berr == nil {
			return af < bf
		}
	}
	return av < bv
}

func orderKey(raw []byte, field string) string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	value, ok := lookup(doc, field)
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		out, _ := json.Marshal(v)
		return string(out)
	}
}
