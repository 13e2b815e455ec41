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

func notificationKey(n *types.Notification) []byte {
	return []byte(notificationPrefix + n.UserID + "/" + timeKey(n.CreatedAt.UnixNano()) + "/" + n.ID)
}

func notificationIDKey(id string) []byte {
	return []byte(notificationIDs + id)
}

// Notify stores a notification for later delivery to its recipient
func (c *Catalog) Notify(ctx context.Context, n types.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.UserID == "" {
		return ledgererr.Validation("notification recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	key := notificationKey(&n)
	err := c.commit(func(b *storage.Batch) error {
		if err := putJSON(b, key, &n); err != nil {
			return err
		}
		return b.Set(notificationIDKey(n.ID), key)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to store notification for %s", n.UserID)
	}

	c.log.Debugw("Notification stored", "user", n.UserID, "kind", n.Kind, "transfer", n.TransferID)
	return nil
}

// NotificationsFor returns a user's notifications, newest first
func (c *Catalog) NotificationsFor(ctx context.Context, userID string) ([]types.Notification, error) {
	out := []types.Notification{}
	err := c.db.IteratePrefix([]byte(notificationPrefix+userID+"/"), func(key, value []byte) error {
		var n types.Notification
		if _, err := getJSON(rawValue(value), key, &n); err != nil {
			return err
		}
		out = append(out, n)
		return ctx.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list notifications of %s", userID)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (c *Catalog) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := c.db.Get(notificationIDKey(notificationID))
	if err != nil {
		return err
	}
	if key == nil {
		return ledgererr.NotFound("notification %s not found", notificationID)
	}

	var n types.Notification
	found, err := getJSON(c.db, key, &n)
	if err != nil {
		return err
	}
	if !found {
		return ledgererr.NotFound("notification %s not found", notificationID)
	}
	if n.UserID != userID {
		return ledgererr.Unauthorized("notification %s belongs to another user", notificationID)
	}

	n.Read = true
	return c.commit(func(b *storage.Batch) error {
		return putJSON(b, key, &n)
	})
}
