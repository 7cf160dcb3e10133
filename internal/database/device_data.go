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

// DeviceDataRecord is one device/network snapshot. Location and latency
// fields are pointers because a failed probe yields null, not zero.
type DeviceDataRecord struct {
	ID                string   `json:"id"`
	DeviceID          string   `json:"device_id"`
	UniqueID          string   `json:"unique_id"`
	DeviceName        string   `json:"device_name"`
	OS                string   `json:"os"`
	OSVersion         string   `json:"os_version"`
	IPAddress         string   `json:"ip_address"`
	NetworkType       string   `json:"network_type"`
	AirplaneMode      bool     `json:"airplane_mode"`
	InternetReachable bool     `json:"internet_reachable"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Altitude          *float64 `json:"altitude"`
	Accuracy          *float64 `json:"accuracy"`
	UploadSpeed       string   `json:"upload_speed"`
	DownloadSpeed     string   `json:"download_speed"`
	AvgLatency        *float64 `json:"avg_latency"`
	BestLatency       *float64 `json:"best_latency"`
	ServerTested      string   `json:"server_tested"`
	Timestamp         int64    `json:"timestamp"`
}

// DeviceDataManager manages stored device/network snapshots. A record's
// presence in this table means it has not been uploaded yet; deletion is
// the only uploaded marker.
type DeviceDataManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewDeviceDataManager creates a new device data database manager
func NewDeviceDataManager(db *sql.DB, logger *utils.LogsManager) (*DeviceDataManager, error) {
	dm := &DeviceDataManager{
		db:     db,
		logger: logger,
	}

	if err := dm.createTables(); err != nil {
		return nil, err
	}

	return dm, nil
}

func (dm *DeviceDataManager) createTables() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS device_data (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		unique_id TEXT NOT NULL,
		device_name TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		os_version TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		network_type TEXT NOT NULL DEFAULT 'none',
		airplane_mode INTEGER NOT NULL DEFAULT 0,
		internet_reachable INTEGER NOT NULL DEFAULT 0,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		accuracy REAL,
		upload_speed TEXT NOT NULL DEFAULT '',
		download_speed TEXT NOT NULL DEFAULT '',
		avg_latency REAL,
		best_latency REAL,
		server_tested TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_device_data_timestamp ON device_data(timestamp);
	`

	if _, err := dm.db.ExecContext(context.Background(), createTableSQL); err != nil {
		return fmt.Errorf("failed to create device_data table: %v", err)
	}

	return nil
}

// InsertRecord stores one snapshot, retrying on a busy database
func (dm *DeviceDataManager) InsertRecord(ctx context.Context, record *DeviceDataRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().Unix()
	}

	query := `
	INSERT INTO device_data (id, device_id, unique_id, device_name, os, os_version,
		ip_address, network_type, airplane_mode, internet_reachable,
		latitude, longitude, altitude, accuracy,
		upload_speed, download_speed, avg_latency, best_latency, server_tested, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	maxRetries := 3
	retryDelay := 100 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err = dm.db.ExecContext(ctx, query,
			record.ID, record.DeviceID, record.UniqueID, record.DeviceName,
			record.OS, record.OSVersion, record.IPAddress, record.NetworkType,
			boolToInt(record.AirplaneMode), boolToInt(record.InternetReachable),
			record.Latitude, record.Longitude, record.Altitude, record.Accuracy,
			record.UploadSpeed, record.DownloadSpeed, record.AvgLatency,
			record.BestLatency, record.ServerTested, record.Timestamp)
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			if attempt < maxRetries-1 {
				dm.logger.Debug(fmt.Sprintf("Database busy, retrying in %v (attempt %d/%d)", retryDelay, attempt+1, maxRetries), "device-data-db")
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
		}
		break
	}

	dm.logger.Error(fmt.Sprintf("Failed to insert device data record: %v", err), "device-data-db")
	return fmt.Errorf("failed to insert device data record: %v", err)
}

// GetBatch returns up to limit stored snapshots, oldest first
func (dm *DeviceDataManager) GetBatch(ctx context.Context, limit int) ([]*DeviceDataRecord, error) {
	query := `
	SELECT id, device_id, unique_id, device_name, os, os_version,
		ip_address, network_type, airplane_mode, internet_reachable,
		latitude, longitude, altitude, accuracy,
		upload_speed, download_speed, avg_latency, best_latency, server_tested, timestamp
	FROM device_data
	ORDER BY timestamp ASC
	LIMIT ?
	`

	rows, err := dm.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query device data batch: %v", err)
	}
	defer rows.Close()

	var records []*DeviceDataRecord
	for rows.Next() {
		record := &DeviceDataRecord{}
		var airplaneMode, internetReachable int
		if err := rows.Scan(&record.ID, &record.DeviceID, &record.UniqueID, &record.DeviceName,
			&record.OS, &record.OSVersion, &record.IPAddress, &record.NetworkType,
			&airplaneMode, &internetReachable,
			&record.Latitude, &record.Longitude, &record.Altitude, &record.Accuracy,
			&record.UploadSpeed, &record.DownloadSpeed, &record.AvgLatency,
			&record.BestLatency, &record.ServerTested, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan device data row: %v", err)
		}
		record.AirplaneMode = airplaneMode != 0
		record.InternetReachable = internetReachable != 0
		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteByIDs removes all records with the given ids
func (dm *DeviceDataManager) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := dm.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM device_data WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete device data records: %v", err)
	}

	return result.RowsAffected()
}

// Count returns the number of stored snapshots
func (dm *DeviceDataManager) Count() (int, error) {
	var count int
	err := dm.db.QueryRow(`SELECT COUNT(*) FROM device_data`).Scan(&count)
	return count, err
}
