package docstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const notifyChannel = "docstore_changes"

// PGStore keeps documents as JSONB rows in a single table keyed by
// (collection, id). Change notification rides Postgres NOTIFY: every
// committed mutation announces the touched collections, and a dedicated
// listener connection refetches them for local subscribers, so changes made
// by other instances of the service reach this one's listeners too.
type PGStore struct {
	pool *pgxpool.Pool
	hub  *hub
	log  *slog.Logger
}

func NewPGStore(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) (*PGStore, error) {
	s := &PGStore{pool: pool, hub: newHub(), log: log}
	go s.listenLoop(ctx)
	return s, nil
}

// Migrate brings the documents schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (s *PGStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	sql, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func buildQuery(collection string, q Query) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range q.Filters {
		path, err := jsonPath(f.Field)
		if err != nil {
			return "", nil, err
		}
		switch f.Op {
		case OpEqual:
			value, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter value: %w", err)
			}
			args = append(args, string(value))
			fmt.Fprintf(&sb, ` AND data #> '%s' = $%d::jsonb`, path, len(args))
		case OpHasField:
			fmt.Fprintf(&sb, ` AND data #> '%s' IS NOT NULL AND data #> '%s' <> 'null'::jsonb`, path, path)
		case OpFieldAbsent:
			fmt.Fprintf(&sb, ` AND (data #> '%s' IS NULL OR data #> '%s' = 'null'::jsonb)`, path, path)
		default:
			return "", nil, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}

	if q.OrderBy != "" {
		path, err := jsonPath(q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		expr := fmt.Sprintf(`data #>> '%s'`, path)
		if q.OrderNumeric {
			expr = "(" + expr + ")::numeric"
		}
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY %s %s, id ASC`, expr, direction)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args, nil
}

var fieldPart = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// jsonPath turns a dotted field path into a Postgres text-array path literal.
// Field names come from code constants; anything else is rejected.
func jsonPath(field string) (string, error) {
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if !fieldPart.MatchString(part) {
			return "", fmt.Errorf("invalid field path %q", field)
		}
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func (s *PGStore) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) Set(ctx context.Context, collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := upsert(ctx, tx, collection, id, raw); err != nil {
			return err
		}
		return notify(ctx, tx, collection)
	})
}

func (s *PGStore) Delete(ctx context.Context, collection, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id,
		); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return notify(ctx, tx, collection)
	})
}

func (s *PGStore) Listen(ctx context.Context, collection string) (<-chan []Document, error) {
	ch := s.hub.subscribe(ctx, collection)
	docs, err := s.Query(ctx, collection, Query{})
	if err != nil {
		return nil, err
	}
	s.hub.publish(collection, docs)
	return ch, nil
}

func (s *PGStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(ctx, func(pgtx pgx.Tx) error {
		tx := &pgTx{tx: pgtx}
		if err := fn(tx); err != nil {
			return err
		}
		for _, collection := range tx.touched {
			if err := notify(ctx, pgtx, collection); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) RunBatch(ctx context.Context, b *Batch) error {
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

	return s.inTx(ctx, func(tx pgx.Tx) error {
		for i, op := range b.ops {
			switch op.kind {
			case opSet:
				if err := upsert(ctx, tx, op.collection, op.id, encoded[i]); err != nil {
					return err
				}
			case opDelete:
				if _, err := tx.Exec(ctx,
					`DELETE FROM documents WHERE collection = $1 AND id = $2`, op.collection, op.id,
				); err != nil {
					return fmt.Errorf("delete document: %w", err)
				}
			}
		}
		for _, collection := range b.collections() {
			if err := notify(ctx, tx, collection); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx pgx.Tx, collection, id string, raw []byte) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// notify announces a changed collection. NOTIFY fires on commit, so
// subscribers never observe uncommitted state.
func notify(ctx context.Context, tx pgx.Tx, collection string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// listenLoop holds a dedicated connection on LISTEN and refetches a
// collection for local subscribers whenever any instance commits a change
// to it.
func (s *PGStore) listenLoop(ctx context.Context) {
	for {
		if err := s.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("docstore listener disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *PGStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		collection := notification.Payload
		if !s.hub.hasSubscribers(collection) {
			continue
		}
		docs, err := s.Query(ctx, collection, Query{})
		if err != nil {
			s.log.Error("refetch collection", "collection", collection, "error", err)
			continue
		}
		s.hub.publish(collection, docs)
	}
}

type pgTx struct {
	tx      pgx.Tx
	touched []string
}

func (t *pgTx) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := t.tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (t *pgTx) Set(ctx context.Context, collection, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := upsert(ctx, t.tx, collection, id, raw); err != nil {
		return err
	}
	t.touch(collection)
	return nil
}

func (t *pgTx) Delete(ctx context.Context, collection, id string) error {
	if _, err := t.tx.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	t.touch(collection)
	return nil
}

func (t *pgTx) touch(collection string) {
	for _, c := range t.touched {
		if c == collection {
			return
		}
	}
	t.touched = append(t.touched, collection)
}
