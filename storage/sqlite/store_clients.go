package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-authz-server/clients"
)

// Upsert creates or replaces a client record.
func (s ClientStore) Upsert(ctx context.Context, client *clients.Client) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if client == nil || strings.TrimSpace(client.ID) == "" {
		return fmt.Errorf("client id is required")
	}
	uris, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("encode redirect uris: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO clients (client_id, secret, description, redirect_uris)
VALUES (?, ?, ?, ?)
ON CONFLICT(client_id) DO UPDATE SET
    secret = excluded.secret,
    description = excluded.description,
    redirect_uris = excluded.redirect_uris`,
		client.ID, client.Secret, client.Description, string(uris),
	)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// Get returns the client with the given ID or clients.ErrNotFound.
func (s ClientStore) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT client_id, secret, description, redirect_uris FROM clients WHERE client_id = ?`, clientID)
	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// List returns clients ordered by ID. A limit of zero or less returns every
// client from offset on.
func (s ClientStore) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT client_id, secret, description, redirect_uris FROM clients ORDER BY client_id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var list []*clients.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		list = append(list, client)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*clients.Client, error) {
	var (
		client clients.Client
		uris   string
	)
	if err := row.Scan(&client.ID, &client.Secret, &client.Description, &uris); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(uris), &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("decode redirect uris: %w", err)
	}
	return &client, nil
}
