package catalog

import (
	"context"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

// GetUser resolves an identity. Unknown ids are NotFound.
func (c *Catalog) GetUser(ctx context.Context, id string) (*types.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ledgererr.NotFound("user id is empty")
	}

	var u types.User
	found, err := getJSON(c.db, userKey(id), &u)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load user %s", id)
	}
	if !found {
		return nil, ledgererr.NotFound("user %s not found", id)
	}
	return &u, nil
}

// SaveUser registers or replaces an identity, assigning an id when missing
func (c *Catalog) SaveUser(ctx context.Context, u *types.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.Name == "" {
		return ledgererr.Validation("user name is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = types.RoleFarmer
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	return c.commit(func(b *storage.Batch) error {
		return putJSON(b, userKey(u.ID), u)
	})
}
