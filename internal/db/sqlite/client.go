package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/iamwavecut/tool"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

func NewSQLiteClient(ctx context.Context, workDir string, dbName string) (*sqliteClient, error) {
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return nil, err
	}
	dbx, err := sqlx.Open("sqlite", filepath.Join(workDir, dbName))
	if err != nil {
		return nil, err
	}
	dbx.SetMaxOpenConns(42)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) UpsertUser(ctx context.Context, user *db.User) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO users (id, username, full_name)
		VALUES (:id, :username, :full_name)
		ON CONFLICT(id) DO UPDATE SET
		username=excluded.username,
		full_name=excluded.full_name;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, user))
}

func (c *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.User{}
	err := c.db.GetContext(ctx, res, "SELECT id, username, full_name, role FROM users WHERE id = ?", userID)
	if err == sql.ErrNoRows {
		return nil, db.ErrNotFound
	}
	return res, err
}

func (c *sqliteClient) GetUserRole(ctx context.Context, userID int64) (string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var role string
	err := c.db.GetContext(ctx, &role, "SELECT role FROM users WHERE id = ?", userID)
	if err == sql.ErrNoRows {
		return db.RoleUser, nil
	}
	return role, err
}

func (c *sqliteClient) SetUserRole(ctx context.Context, userID int64, role string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", role, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (c *sqliteClient) AddServer(ctx context.Context, server *db.Server) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx,
		"INSERT INTO servers (name, channel_id, moderation_group_id) VALUES (?, ?, ?)",
		server.Name, server.ChannelID, server.ModerationGroupID,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	server.ID = id
	return id, nil
}

func (c *sqliteClient) GetServer(ctx context.Context, serverID int64) (*db.Server, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.Server{}
	err := c.db.GetContext(ctx, res, "SELECT id, name, channel_id, moderation_group_id FROM servers WHERE id = ?", serverID)
	if err == sql.ErrNoRows {
		return nil, db.ErrNotFound
	}
	return res, err
}

func (c *sqliteClient) GetServers(ctx context.Context) ([]db.Server, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var servers []db.Server
	err := c.db.SelectContext(ctx, &servers, "SELECT id, name, channel_id, moderation_group_id FROM servers ORDER BY id ASC")
	return servers, err
}
