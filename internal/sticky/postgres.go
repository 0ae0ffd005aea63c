package sticky

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// PostgresStore is a Postgres-backed sticky store using a unique constraint
// plus ON CONFLICT DO NOTHING for atomic first-write-wins, generalized from
// dedup.AtomicPostgresStore to composite keys and Claim documents.
//
// Schema:
//
//	CREATE TABLE sticky_placements (
//	  product   TEXT NOT NULL,
//	  namespace TEXT NOT NULL,
//	  name      TEXT NOT NULL,
//	  claim     JSONB NOT NULL,
//	  created_at TIMESTAMPTZ DEFAULT NOW(),
//	  PRIMARY KEY (product, namespace, name)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connStr and verifies connectivity.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key Key) (*unstructured.Unstructured, error) {
	const query = `
		SELECT claim FROM sticky_placements
		WHERE product = $1 AND namespace = $2 AND name = $3
	`
	var raw []byte
	err := p.pool.QueryRow(ctx, query, key.Product, key.Namespace, key.Name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	return unmarshalClaim(raw)
}

func (p *PostgresStore) Set(ctx context.Context, key Key, claim *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	data, err := marshalClaim(claim)
	if err != nil {
		return nil, false, fmt.Errorf("marshal claim: %w", err)
	}

	const query = `
		INSERT INTO sticky_placements (product, namespace, name, claim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product, namespace, name) DO NOTHING
	`
	tag, err := p.pool.Exec(ctx, query, key.Product, key.Namespace, key.Name, data)
	if err != nil {
		return nil, false, fmt.Errorf("postgres insert failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return claim, true, nil
	}

	winner, err := p.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return winner, false, nil
}

func (p *PostgresStore) Delete(ctx context.Context, key Key) error {
	const query = `DELETE FROM sticky_placements WHERE product = $1 AND namespace = $2 AND name = $3`
	if _, err := p.pool.Exec(ctx, query, key.Product, key.Namespace, key.Name); err != nil {
		return fmt.Errorf("postgres delete failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// CleanupExpired deletes sticky_placements rows older than olderThan,
// retained from the teacher's dedup maintenance job for symmetry: sticky
// Claims carry no TTL of their own (a placement is sticky forever, not until
// some expiry), so this isn't run by the server — it's operator tooling
// (`idpctl sticky cleanup`) for pruning rows left behind after the
// corresponding Claim was deleted out-of-band in the cluster.
func (p *PostgresStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `DELETE FROM sticky_placements WHERE created_at <= $1`
	cutoff := time.Now().Add(-olderThan)
	tag, err := p.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres cleanup failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
