package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const stateTable = "client_state"

// PostgresStore keeps slots in the client_state table, one row per
// (namespace, slot).
type PostgresStore struct {
	db        *sql.DB
	namespace string
}

func NewPostgresStore(db *sql.DB, namespace string) *PostgresStore {
	if namespace == "" {
		namespace = "default"
	}
	return &PostgresStore{db: db, namespace: namespace}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := psq.Select("value").
		From(stateTable).
		Where(sq.Eq{"namespace": p.namespace}).
		Where(sq.Eq{"slot": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("storage: building select: %w", err)
	}

	var value string
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: selecting slot %s: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	query, args, err := psq.Insert(stateTable).
		Columns("namespace", "slot", "value", "updated_at").
		Values(p.namespace, key, value, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (namespace, slot) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: building upsert: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: upserting slot %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := psq.Delete(stateTable).
		Where(sq.Eq{"namespace": p.namespace}).
		Where(sq.Eq{"slot": keys}).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: building delete: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: deleting slots: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
