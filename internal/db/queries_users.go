package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser stores a new user with a fresh ID and API token.
func (d *DB) CreateUser(ctx context.Context, displayName, language, timezone string) (*User, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Language:    language,
		Timezone:    timezone,
		APIToken:    token,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	_, err = d.conn.ExecContext(ctx,
		"INSERT INTO users (id, display_name, language, timezone, api_token, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.DisplayName, u.Language, u.Timezone, u.APIToken, formatTime(u.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// LinkDiscord associates a Discord account with a user.
func (d *DB) LinkDiscord(ctx context.Context, userID, discordID string) error {
	res, err := d.conn.ExecContext(ctx, "UPDATE users SET discord_id = ? WHERE id = ?", discordID, userID)
	if err != nil {
		return fmt.Errorf("linking discord account: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (d *DB) UserByID(ctx context.Context, id string) (*User, error) {
	return d.scanUser(ctx, "id", id)
}

func (d *DB) UserByToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return d.scanUser(ctx, "api_token", token)
}

func (d *DB) UserByDiscordID(ctx context.Context, discordID string) (*User, error) {
	if discordID == "" {
		return nil, ErrNotFound
	}
	return d.scanUser(ctx, "discord_id", discordID)
}

func (d *DB) scanUser(ctx context.Context, column, value string) (*User, error) {
	var u User
	var token, discordID sql.NullString
	var createdAt string
	err := d.conn.QueryRowContext(ctx,
		"SELECT id, display_name, language, timezone, api_token, discord_id, created_at FROM users WHERE "+column+" = ?",
		value,
	).Scan(&u.ID, &u.DisplayName, &u.Language, &u.Timezone, &token, &discordID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	u.APIToken = token.String
	u.DiscordID = discordID.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return "dp_" + hex.EncodeToString(b), nil
}
