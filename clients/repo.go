package clients

import "context"

type Repo interface {
	Upsert(ctx context.Context, client *Client) error
	Get(ctx context.Context, clientID string) (*Client, error)
	// List returns clients ordered by ID; a limit of zero or less means no limit.
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}
