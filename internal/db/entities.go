package db

import "time"

const (
	AdStatusPending  = "pending"
	AdStatusApproved = "approved"
	AdStatusRejected = "rejected"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type (
	// Server is a configured destination: a public channel the approved
	// advertisements are published to, paired with a private moderation group.
	Server struct {
		ID                int64  `db:"id"`
		Name              string `db:"name"`
		ChannelID         string `db:"channel_id"`
		ModerationGroupID string `db:"moderation_group_id"`
	}

	// Advertisement status starts at pending and moves exactly once, to
	// either approved or rejected.
	Advertisement struct {
		ID        int64     `db:"id"`
		UserID    int64     `db:"user_id"`
		ServerID  int64     `db:"server_id"`
		Text      string    `db:"text"`
		PhotoID   *string   `db:"photo_id"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}

	User struct {
		ID       int64   `db:"id"`
		Username *string `db:"username"`
		FullName *string `db:"full_name"`
		Role     string  `db:"role"`
	}
)

func (a *Advertisement) HasPhoto() bool {
	return a != nil && a.PhotoID != nil && *a.PhotoID != ""
}
