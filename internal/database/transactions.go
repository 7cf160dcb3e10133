package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Transaction status values
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// Transaction is a recorded on-chain transfer. Amount is the raw minor-unit
// value (wei or lamports) stored as text to avoid integer overflow.
type Transaction struct {
	ID          string
	WalletID    string
	TxHash      string
	FromAddress string
	ToAddress   string
	Amount      string
	TokenSymbol string
	Status      string
	Chain       string
	CreatedAt   int64
}

// TransactionsManager manages transaction history rows
type TransactionsManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewTransactionsManager creates a new transactions database manager
func NewTransactionsManager(db *sql.DB, logger *utils.LogsManager) (*TransactionsManager, error) {
	tm := &TransactionsManager{
		db:     db,
		logger: logger,
	}

	if err := tm.createTables(); err != nil {
		return nil, err
	}

	return tm, nil
}

func (tm *TransactionsManager) createTables() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
		tx_hash TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		token_symbol TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'confirmed', 'failed')),
		chain TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(tx_hash);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`

	if _, err := tm.db.ExecContext(context.Background(), createTableSQL); err != nil {
		return fmt.Errorf("failed to create transactions table: %v", err)
	}

	return nil
}

// InsertTransaction records a transaction
func (tm *TransactionsManager) InsertTransaction(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Status == "" {
		tx.Status = TxStatusPending
	}
	tx.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO transactions (id, wallet_id, tx_hash, from_address, to_address, amount, token_symbol, status, chain, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tm.db.ExecContext(ctx, query,
		tx.ID, tx.WalletID, tx.TxHash, tx.FromAddress, tx.ToAddress,
		tx.Amount, tx.TokenSymbol, tx.Status, tx.Chain, tx.CreatedAt)
	if err != nil {
		tm.logger.Error(fmt.Sprintf("Failed to insert transaction %s: %v", tx.TxHash, err), "transactions-db")
		return fmt.Errorf("failed to insert transaction: %v", err)
	}

	return nil
}

// UpdateStatus updates the status of a transaction by hash
func (tm *TransactionsManager) UpdateStatus(ctx context.Context, txHash, status string) error {
	_, err := tm.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE tx_hash = ?`, status, txHash)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %v", err)
	}
	return nil
}

// ListByWallet returns a wallet's transactions, newest first
func (tm *TransactionsManager) ListByWallet(ctx context.Context, walletID string) ([]*Transaction, error) {
	query := `
	SELECT id, wallet_id, tx_hash, from_address, to_address, amount, token_symbol, status, chain, created_at
	FROM transactions WHERE wallet_id = ?
	ORDER BY created_at DESC
	`

	rows, err := tm.db.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %v", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		tx := &Transaction{}
		if err := rows.Scan(&tx.ID, &tx.WalletID, &tx.TxHash, &tx.FromAddress, &tx.ToAddress,
			&tx.Amount, &tx.TokenSymbol, &tx.Status, &tx.Chain, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %v", err)
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}
