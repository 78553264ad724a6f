package permissions

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/sellvibe/internal/db"
)

type roleStore interface {
	GetUserRole(ctx context.Context, userID int64) (string, error)
}

// Gate answers the single authorization question the bot has: may this user
// manage the catalog. Roles are elevated elsewhere; the gate only reads.
type Gate struct {
	store        roleStore
	bootstrapIDs []int64
}

func NewGate(store roleStore, bootstrapIDs []int64) *Gate {
	return &Gate{
		store:        store,
		bootstrapIDs: bootstrapIDs,
	}
}

func (g *Gate) IsAdmin(ctx context.Context, userID int64) bool {
	for _, id := range g.bootstrapIDs {
		if id == userID {
			return true
		}
	}
	role, err := g.store.GetUserRole(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("cant resolve user role")
		return false
	}
	return role == db.RoleAdmin
}
