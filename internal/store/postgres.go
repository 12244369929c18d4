package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// idOrder sorts numeric doc ids by value ahead of the others.
const idOrder = `doc_id !~ '^-?[0-9]{1,18}$',
	CASE WHEN doc_id ~ '^-?[0-9]{1,18}$' THEN doc_id::bigint END,
	doc_id`

// PostgresStore keeps documents as JSONB rows in the documents table. Change
// notifications go through a ChangeFeed after each commit.
type PostgresStore struct {
	pool   *pgxpool.Pool
	feed   ChangeFeed
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed document store.
func NewPostgresStore(pool *pgxpool.Pool, feed ChangeFeed, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, feed: feed, logger: logger}
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query, onData DataFunc, onError ErrorFunc) Unsubscribe {
	load := func(ctx context.Context) ([]Document, error) {
		if q.DocID == "" {
			return s.List(ctx, q)
		}
		doc, err := s.Get(ctx, q.Ref(q.DocID))
		if errors.Is(err, ErrNotFound) {
			return []Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Document{*doc}, nil
	}
	return watch(ctx, s.feed, q, load, onData, onError)
}

func (s *PostgresStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM documents
		WHERE team_id = $1 AND collection = $2 AND doc_id = $3`,
		ref.TeamID, ref.Collection, ref.DocID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: ref.DocID, Fields: fields}, nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Document, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if q.OrderBy != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT doc_id, data FROM documents
			WHERE team_id = $1 AND collection = $2
			ORDER BY data -> $3::text, `+idOrder,
			q.TeamID, q.Collection, q.OrderBy)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT doc_id, data FROM documents
			WHERE team_id = $1 AND collection = $2
			ORDER BY `+idOrder,
			q.TeamID, q.Collection)
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

// Save merges the top-level fields into the stored document, creating it when absent.
func (s *PostgresStore) Save(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("save %s: empty document id", ref.Collection)
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (team_id, collection, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (team_id, collection, doc_id)
		DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`,
		ref.TeamID, ref.Collection, ref.DocID, string(patch))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

// Create inserts the document and reports ErrExists when the id is taken.
func (s *PostgresStore) Create(ctx context.Context, ref Ref, fields Fields) error {
	if ref.DocID == "" {
		return fmt.Errorf("create %s: empty document id", ref.Collection)
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO documents (team_id, collection, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (team_id, collection, doc_id) DO NOTHING`,
		ref.TeamID, ref.Collection, ref.DocID, string(body))
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}

	s.notify(ctx, ref)
	return nil
}

// Update locks the row, computes the patch and merges it in one transaction.
func (s *PostgresStore) Update(ctx context.Context, ref Ref, fn UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `
		SELECT data FROM documents
		WHERE team_id = $1 AND collection = $2 AND doc_id = $3
		FOR UPDATE`,
		ref.TeamID, ref.Collection, ref.DocID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock document: %w", err)
	}

	current, err := decodeFields(raw)
	if err != nil {
		return err
	}
	patch, err := fn(current)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return tx.Commit(ctx)
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE documents SET data = data || $4::jsonb, updated_at = now()
		WHERE team_id = $1 AND collection = $2 AND doc_id = $3`,
		ref.TeamID, ref.Collection, ref.DocID, string(body))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.notify(ctx, ref)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ref Ref) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM documents
		WHERE team_id = $1 AND collection = $2 AND doc_id = $3`,
		ref.TeamID, ref.Collection, ref.DocID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.notify(ctx, ref)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// notify announces a committed change. The write already succeeded, so a feed
// failure only delays subscribers until the next change.
func (s *PostgresStore) notify(ctx context.Context, ref Ref) {
	if err := s.feed.Publish(ctx, ref.TeamID, ref.Collection); err != nil {
		s.logger.Warn("change feed publish failed",
			"team_id", ref.TeamID,
			"collection", ref.Collection,
			"error", err,
		)
	}
}

func decodeFields(raw []byte) (Fields, error) {
	fields := Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
