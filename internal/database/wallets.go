package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Wallet is a stored wallet row. Private keys are never stored here, only
// the public address; secrets live in the OS keyring.
type Wallet struct {
	ID        string
	UserID    string
	Chain     string
	Address   string
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

// WalletsManager manages wallet rows
type WalletsManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewWalletsManager creates a new wallets database manager
func NewWalletsManager(db *sql.DB, logger *utils.LogsManager) (*WalletsManager, error) {
	wm := &WalletsManager{
		db:     db,
		logger: logger,
	}

	if err := wm.createTables(); err != nil {
		return nil, err
	}

	return wm, nil
}

func (wm *WalletsManager) createTables() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(user_id, chain, address)
	);
	CREATE INDEX IF NOT EXISTS idx_wallets_user ON wallets(user_id);
	CREATE INDEX IF NOT EXISTS idx_wallets_chain ON wallets(chain);
	`

	if _, err := wm.db.ExecContext(context.Background(), createTableSQL); err != nil {
		return fmt.Errorf("failed to create wallets table: %v", err)
	}

	return nil
}

// InsertWallet stores a new wallet row
func (wm *WalletsManager) InsertWallet(ctx context.Context, wallet *Wallet) error {
	if wallet.ID == "" {
		wallet.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now

	query := `
	INSERT INTO wallets (id, user_id, chain, address, name, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := wm.db.ExecContext(ctx, query,
		wallet.ID, wallet.UserID, wallet.Chain, wallet.Address, wallet.Name,
		wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		wm.logger.Error(fmt.Sprintf("Failed to insert wallet for user %s: %v", wallet.UserID, err), "wallets-db")
		return fmt.Errorf("failed to insert wallet: %v", err)
	}

	return nil
}

// GetWallet returns a wallet by its id, or nil when not found
func (wm *WalletsManager) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	query := `
	SELECT id, user_id, chain, address, name, created_at, updated_at
	FROM wallets WHERE id = ?
	`

	wallet := &Wallet{}
	err := wm.db.QueryRowContext(ctx, query, walletID).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Chain, &wallet.Address,
		&wallet.Name, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet: %v", err)
	}

	return wallet, nil
}

// ListWallets returns all wallets for a user
func (wm *WalletsManager) ListWallets(ctx context.Context, userID string) ([]*Wallet, error) {
	query := `
	SELECT id, user_id, chain, address, name, created_at, updated_at
	FROM wallets WHERE user_id = ?
	ORDER BY created_at ASC
	`

	rows, err := wm.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets: %v", err)
	}
	defer rows.Close()

	var wallets []*Wallet
	for rows.Next() {
		wallet := &Wallet{}
		if err := rows.Scan(&wallet.ID, &wallet.UserID, &wallet.Chain, &wallet.Address,
			&wallet.Name, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %v", err)
		}
		wallets = append(wallets, wallet)
	}

	return wallets, rows.Err()
}

// FindByAddress returns a user's wallet matching (chain, address), or nil.
// EVM addresses compare case-insensitively, Solana addresses exactly.
func (wm *WalletsManager) FindByAddress(ctx context.Context, userID, chain, address string) (*Wallet, error) {
	query := `
	SELECT id, user_id, chain, address, name, created_at, updated_at
	FROM wallets WHERE user_id = ? AND chain = ?
	`

	rows, err := wm.db.QueryContext(ctx, query, userID, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets by address: %v", err)
	}
	defer rows.Close()

	caseInsensitive := chain != "solana"
	for rows.Next() {
		wallet := &Wallet{}
		if err := rows.Scan(&wallet.ID, &wallet.UserID, &wallet.Chain, &wallet.Address,
			&wallet.Name, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %v", err)
		}
		if wallet.Address == address {
			return wallet, nil
		}
		if caseInsensitive && strings.EqualFold(wallet.Address, address) {
			return wallet, nil
		}
	}

	return nil, rows.Err()
}

// DeleteWallet removes a wallet row; transactions cascade
func (wm *WalletsManager) DeleteWallet(ctx context.Context, walletID string) error {
	result, err := wm.db.ExecContext(ctx, `DELETE FROM wallets WHERE id = ?`, walletID)
	if err != nil {
		return fmt.Errorf("failed to delete wallet: %v", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		wm.logger.Warn(fmt.Sprintf("Delete of wallet %s affected no rows", walletID), "wallets-db")
	}

	return nil
}

// Count returns the total number of wallet rows
func (wm *WalletsManager) Count() (int, error) {
	var count int
	err := wm.db.QueryRow(`SELECT COUNT(*) FROM wallets`).Scan(&count)
	return count, err
}
