package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/iamwavecut/sellvibe/internal/db"
)

const adColumns = "id, user_id, server_id, text, photo_id, status, created_at"

func (c *sqliteClient) CreateAdvertisement(ctx context.Context, ad *db.Advertisement) (int64, error) {
	if strings.TrimSpace(ad.Text) == "" {
		return 0, db.ErrEmptyText
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var one int
	err = tx.GetContext(ctx, &one, "SELECT 1 FROM servers WHERE id = ?", ad.ServerID)
	if err == sql.ErrNoRows {
		return 0, db.ErrUnknownServer
	}
	if err != nil {
		return 0, err
	}

	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = time.Now().UTC()
	}
	ad.Status = db.AdStatusPending

	res, err := tx.ExecContext(ctx,
		"INSERT INTO advertisements (user_id, server_id, text, photo_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		ad.UserID, ad.ServerID, ad.Text, ad.PhotoID, ad.Status, ad.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	ad.ID = id
	return id, nil
}

func (c *sqliteClient) GetAdvertisement(ctx context.Context, adID int64) (*db.Advertisement, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.Advertisement{}
	err := c.db.GetContext(ctx, res, "SELECT "+adColumns+" FROM advertisements WHERE id = ?", adID)
	if err == sql.ErrNoRows {
		return nil, db.ErrNotFound
	}
	return res, err
}

func (c *sqliteClient) SetAdvertisementStatus(ctx context.Context, adID int64, status string) error {
	if !tool.In(status, db.AdStatusApproved, db.AdStatusRejected) {
		return db.ErrInvalidTransition
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.transitionStatus(ctx, c.db, adID, status)
}

// ResolveAdvertisement claims the pending row, runs the side effect and only
// then commits. Concurrent decisions serialize on the client mutex, so at
// most one side effect ever runs for a given advertisement. The mutex stays
// held while the side effect runs, so every other store operation waits for
// it; callers must keep side effects to a single delivery attempt. The side
// effect must not call back into the client.
func (c *sqliteClient) ResolveAdvertisement(ctx context.Context, adID int64, status string, sideEffect func(ad *db.Advertisement) error) (*db.Advertisement, error) {
	if !tool.In(status, db.AdStatusApproved, db.AdStatusRejected) {
		return nil, db.ErrInvalidTransition
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ad := &db.Advertisement{}
	err = tx.GetContext(ctx, ad, "SELECT "+adColumns+" FROM advertisements WHERE id = ?", adID)
	if err == sql.ErrNoRows {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := c.transitionStatus(ctx, tx, adID, status); err != nil {
		return nil, err
	}
	ad.Status = status

	if sideEffect != nil {
		if err := sideEffect(ad); err != nil {
			return nil, errors.WithMessage(err, "resolution side effect")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ad, nil
}

func (c *sqliteClient) transitionStatus(ctx context.Context, e sqlx.ExtContext, adID int64, status string) error {
	res, err := e.ExecContext(ctx,
		"UPDATE advertisements SET status = ? WHERE id = ? AND status = ?",
		status, adID, db.AdStatusPending,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var count int
		if err := sqlx.GetContext(ctx, e, &count, "SELECT COUNT(*) FROM advertisements WHERE id = ?", adID); err != nil {
			return err
		}
		if count == 0 {
			return db.ErrNotFound
		}
		return db.ErrInvalidTransition
	}
	return nil
}
