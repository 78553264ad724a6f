package db

import "context"

// Client is the single injected repository over the catalog, advertisement
// and user stores. Components receive it explicitly; nothing opens its own
// connection.
type Client interface {
	Close() error

	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserRole(ctx context.Context, userID int64) (string, error)
	SetUserRole(ctx context.Context, userID int64, role string) error

	AddServer(ctx context.Context, server *Server) (int64, error)
	GetServer(ctx context.Context, serverID int64) (*Server, error)
	GetServers(ctx context.Context) ([]Server, error)

	CreateAdvertisement(ctx context.Context, ad *Advertisement) (int64, error)
	GetAdvertisement(ctx context.Context, adID int64) (*Advertisement, error)

	// SetAdvertisementStatus performs the pending -> {approved|rejected}
	// transition as a single conditional update.
	SetAdvertisementStatus(ctx context.Context, adID int64, status string) error

	// ResolveAdvertisement claims the pending advertisement for the given
	// terminal status, runs sideEffect inside the same transaction and
	// commits only if it succeeds. A failing sideEffect leaves the
	// advertisement pending. sideEffect may be nil.
	ResolveAdvertisement(ctx context.Context, adID int64, status string, sideEffect func(ad *Advertisement) error) (*Advertisement, error)
}
