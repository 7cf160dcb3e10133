package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles all database operations
type SQLiteManager struct {
	dir    string
	cm     *utils.ConfigManager
	db     *sql.DB
	logger *utils.LogsManager

	// Specialized managers
	Users        *UsersManager
	Wallets      *WalletsManager
	Transactions *TransactionsManager
	DeviceData   *DeviceDataManager
}

// NewSQLiteManager creates a new SQLite manager with all entity managers initialized
func NewSQLiteManager(cm *utils.ConfigManager) (*SQLiteManager, error) {
	paths := utils.GetAppPaths("")
	sqlm := &SQLiteManager{
		dir:    paths.DataDir,
		cm:     cm,
		logger: utils.NewLogsManager(cm),
	}

	db, err := sqlm.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %v", err)
	}
	sqlm.db = db

	if err := sqlm.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize database managers: %v", err)
	}

	return sqlm, nil
}

// CreateConnection creates and configures the database connection
func (sqlm *SQLiteManager) CreateConnection() (*sql.DB, error) {
	// Make sure we have os specific path separator since we are adding this path to host's path
	dbFileName := sqlm.cm.GetConfigWithDefault("database_file", "./proofmesh.db")
	switch runtime.GOOS {
	case "linux", "darwin":
		dbFileName = filepath.ToSlash(dbFileName)
	case "windows":
		dbFileName = filepath.FromSlash(dbFileName)
	default:
		err := fmt.Errorf("unsupported OS type `%s`", runtime.GOOS)
		return nil, err
	}

	path := filepath.Join(sqlm.dir, dbFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		sqlm.logger.Info(fmt.Sprintf("Creating new database at %s", path), "database")
	}

	// Init db connection with enhanced settings for concurrent access
	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_synchronous=NORMAL", path))
	if err != nil {
		message := fmt.Sprintf("Can not create database connection. (%s)", err.Error())
		sqlm.logger.Log("error", message, "database")
		return nil, err
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Explicitly enable foreign key enforcement
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		message := fmt.Sprintf("Failed to enable foreign keys: %s", err.Error())
		sqlm.logger.Log("error", message, "database")
		return nil, err
	}

	// Enable WAL mode for better concurrent access
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		message := fmt.Sprintf("Failed to enable WAL mode: %s", err.Error())
		sqlm.logger.Log("warning", message, "database")
	}

	return db, nil
}

// initializeManagers sets up specialized database managers
func (sqlm *SQLiteManager) initializeManagers() error {
	var err error

	sqlm.Users, err = NewUsersManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize users database manager: %v", err)
	}

	sqlm.Wallets, err = NewWalletsManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize wallets database manager: %v", err)
	}

	sqlm.Transactions, err = NewTransactionsManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transactions database manager: %v", err)
	}

	sqlm.DeviceData, err = NewDeviceDataManager(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize device data database manager: %v", err)
	}

	sqlm.logger.Info("Database managers initialized successfully", "database")
	return nil
}

// GetDB returns the database connection for direct access if needed
func (sqlm *SQLiteManager) GetDB() *sql.DB {
	return sqlm.db
}

// Close closes the database connection
func (sqlm *SQLiteManager) Close() error {
	if sqlm.db != nil {
		return sqlm.db.Close()
	}
	return nil
}

// GetStats returns comprehensive database statistics
func (sqlm *SQLiteManager) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	dbStats := sqlm.db.Stats()
	stats["connection_stats"] = map[string]interface{}{
		"max_open_connections": dbStats.MaxOpenConnections,
		"open_connections":     dbStats.OpenConnections,
		"in_use":               dbStats.InUse,
		"idle":                 dbStats.Idle,
	}

	if sqlm.DeviceData != nil {
		if count, err := sqlm.DeviceData.Count(); err == nil {
			stats["device_data_records"] = count
		}
	}
	if sqlm.Wallets != nil {
		if count, err := sqlm.Wallets.Count(); err == nil {
			stats["wallets"] = count
		}
	}

	return stats
}

// PerformMaintenance runs database maintenance tasks
func (sqlm *SQLiteManager) PerformMaintenance() error {
	_, err := sqlm.db.Exec("PRAGMA optimize;")
	if err != nil {
		sqlm.logger.Log("warning", fmt.Sprintf("Failed to optimize database: %v", err), "database")
	}

	_, err = sqlm.db.Exec("PRAGMA incremental_vacuum(100);")
	if err != nil {
		sqlm.logger.Log("warning", fmt.Sprintf("Failed to vacuum database: %v", err), "database")
	}

	return nil
}
