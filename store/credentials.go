package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateCredential inserts a new credential and its zeroed sync_state row
// in one transaction.
func (s *Store) CreateCredential(ctx context.Context, label, tailHash, secretBlob string) (*Credential, error) {
	id := uuid.NewString()
	cred := &Credential{ID: id, Label: label, TailHash: tailHash, SecretBlob: secretBlob}

	err := s.Transact(ctx, func(ctx context.Context, q Querier) error {
		row := q.QueryRow(ctx, `
			INSERT INTO credentials (id, label, tail_hash, secret_blob)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			id, label, tailHash, secretBlob)
		if err := row.Scan(&cred.CreatedAt); err != nil {
			return fmt.Errorf("store: create credential: %w", classify(err))
		}

		_, err := q.Exec(ctx, `
			INSERT INTO sync_state (credential_id, highwatermark)
			VALUES ($1, 0)`, id)
		if err != nil {
			return fmt.Errorf("store: seed sync_state: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// GetCredential loads a single credential by id.
func (s *Store) GetCredential(ctx context.Context, id string) (*Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, label, tail_hash, secret_blob, created_at
		FROM credentials WHERE id = $1`, id)

	var c Credential
	if err := row.Scan(&c.ID, &c.Label, &c.TailHash, &c.SecretBlob, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: get credential %s: %w", id, classify(err))
	}
	return &c, nil
}

// ListCredentials returns all credentials ordered by creation time.
func (s *Store) ListCredentials(ctx context.Context) ([]Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, tail_hash, secret_blob, created_at
		FROM credentials ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", classify(err))
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Label, &c.TailHash, &c.SecretBlob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan credential: %w", classify(err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", classify(err))
	}
	return out, nil
}

// RenameCredential updates a credential's display label.
func (s *Store) RenameCredential(ctx context.Context, id, label string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE credentials SET label = $2 WHERE id = $1`, id, label)
	if err != nil {
		return fmt.Errorf("store: rename credential %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: rename credential %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteCredential removes a credential. ON DELETE CASCADE removes its
// sync_state, sync_tasks, changed_dates_queries, and sales_records.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete credential %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: delete credential %s: %w", id, ErrNotFound)
	}
	return nil
}
