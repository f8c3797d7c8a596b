package storage

import (
	"context"
	"errors"

	"planreminder/internal/model"
)

var ErrNotFound = errors.New("client not found")

// ClientStore is the client-record collaborator. The reminder core only reads
// snapshots; writes happen in the surrounding application.
type ClientStore interface {
	Clients(ctx context.Context) ([]model.Client, error)
	ClientByID(ctx context.Context, id string) (*model.Client, error)
	UpdateClient(ctx context.Context, c model.Client) error
}
