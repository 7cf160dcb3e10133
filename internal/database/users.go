package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// User is a locally cached account. The pipeline only runs when a current
// user with a non-empty token exists.
type User struct {
	ID            string
	UserID        string
	Name          string
	Email         string
	Password      string
	Role          string
	Token         string
	EmailVerified bool
	CreatedAt     int64
	UpdatedAt     int64
}

// UsersManager manages locally cached user accounts
type UsersManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewUsersManager creates a new users database manager
func NewUsersManager(db *sql.DB, logger *utils.LogsManager) (*UsersManager, error) {
	um := &UsersManager{
		db:     db,
		logger: logger,
	}

	if err := um.createTables(); err != nil {
		return nil, err
	}

	return um, nil
}

func (um *UsersManager) createTables() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		token TEXT NOT NULL DEFAULT '',
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_users_user_id ON users(user_id);
	`

	if _, err := um.db.ExecContext(context.Background(), createTableSQL); err != nil {
		return fmt.Errorf("failed to create users table: %v", err)
	}

	return nil
}

// UpsertUser inserts or updates a user keyed by email
func (um *UsersManager) UpsertUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().Unix()

	query := `
	INSERT INTO users (id, user_id, name, email, password, role, token, email_verified, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		user_id = excluded.user_id,
		name = excluded.name,
		role = excluded.role,
		token = excluded.token,
		email_verified = excluded.email_verified,
		updated_at = excluded.updated_at
	`

	_, err := um.db.ExecContext(ctx, query,
		user.ID, user.UserID, user.Name, user.Email, user.Password,
		user.Role, user.Token, boolToInt(user.EmailVerified), now, now)
	if err != nil {
		um.logger.Error(fmt.Sprintf("Failed to upsert user %s: %v", user.Email, err), "users-db")
		return fmt.Errorf("failed to upsert user: %v", err)
	}

	return nil
}

// GetCurrentUser returns the most recently updated user holding a token,
// or nil when no authenticated user exists.
func (um *UsersManager) GetCurrentUser(ctx context.Context) (*User, error) {
	query := `
	SELECT id, user_id, name, email, password, role, token, email_verified, created_at, updated_at
	FROM users
	WHERE token != ''
	ORDER BY updated_at DESC
	LIMIT 1
	`

	user := &User{}
	var emailVerified int
	err := um.db.QueryRowContext(ctx, query).Scan(
		&user.ID, &user.UserID, &user.Name, &user.Email, &user.Password,
		&user.Role, &user.Token, &emailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current user: %v", err)
	}

	user.EmailVerified = emailVerified != 0
	return user, nil
}

// ClearToken removes the stored token for a user (logout)
func (um *UsersManager) ClearToken(ctx context.Context, email string) error {
	_, err := um.db.ExecContext(ctx,
		`UPDATE users SET token = '', updated_at = ? WHERE email = ?`,
		time.Now().Unix(), email)
	if err != nil {
		return fmt.Errorf("failed to clear user token: %v", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
