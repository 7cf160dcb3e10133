package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
	_ "modernc.org/sqlite"
)

func setupTestDeviceDataDB(t *testing.T) (*DeviceDataManager, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	dm, err := NewDeviceDataManager(db, logger)
	if err != nil {
		t.Fatalf("Failed to create DeviceDataManager: %v", err)
	}

	return dm, db
}

func insertTestRecord(t *testing.T, dm *DeviceDataManager, ts int64) *DeviceDataRecord {
	lat := 52.52
	lon := 13.405
	avg := 23.4
	record := &DeviceDataRecord{
		DeviceID:          "host-123",
		UniqueID:          "unique-123",
		DeviceName:        "test-host",
		OS:                "linux",
		OSVersion:         "6.1",
		IPAddress:         "192.168.1.10",
		NetworkType:       "wifi",
		InternetReachable: true,
		Latitude:          &lat,
		Longitude:         &lon,
		UploadSpeed:       "20MB/s",
		DownloadSpeed:     "25MB/s",
		AvgLatency:        &avg,
		ServerTested:      "8.8.8.8",
		Timestamp:         ts,
	}
	if err := dm.InsertRecord(context.Background(), record); err != nil {
		t.Fatalf("Failed to insert device data record: %v", err)
	}
	return record
}

func TestInsertAndGetBatch(t *testing.T) {
	dm, db := setupTestDeviceDataDB(t)
	defer db.Close()

	insertTestRecord(t, dm, 100)
	insertTestRecord(t, dm, 300)
	insertTestRecord(t, dm, 200)

	records, err := dm.GetBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to get batch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	// Oldest first
	if records[0].Timestamp != 100 || records[2].Timestamp != 300 {
		t.Errorf("Expected records ordered by timestamp, got %d, %d, %d",
			records[0].Timestamp, records[1].Timestamp, records[2].Timestamp)
	}

	if records[0].Latitude == nil || *records[0].Latitude != 52.52 {
		t.Error("Expected latitude to round-trip")
	}
	if records[0].Altitude != nil {
		t.Error("Expected unset altitude to stay null")
	}
	if !records[0].InternetReachable {
		t.Error("Expected internet_reachable to round-trip")
	}
}

func TestGetBatchLimit(t *testing.T) {
	dm, db := setupTestDeviceDataDB(t)
	defer db.Close()

	for i := 0; i < 5; i++ {
		insertTestRecord(t, dm, int64(i+1))
	}

	records, err := dm.GetBatch(context.Background(), 3)
	if err != nil {
		t.Fatalf("Failed to get batch: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected batch limited to 3 records, got %d", len(records))
	}
}

func TestDeleteByIDs(t *testing.T) {
	dm, db := setupTestDeviceDataDB(t)
	defer db.Close()

	r1 := insertTestRecord(t, dm, 1)
	r2 := insertTestRecord(t, dm, 2)
	insertTestRecord(t, dm, 3)

	deleted, err := dm.DeleteByIDs(context.Background(), []string{r1.ID, r2.ID})
	if err != nil {
		t.Fatalf("Failed to delete records: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted rows, got %d", deleted)
	}

	count, err := dm.Count()
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 remaining record, got %d", count)
	}
}

func TestDeleteByIDsEmpty(t *testing.T) {
	dm, db := setupTestDeviceDataDB(t)
	defer db.Close()

	deleted, err := dm.DeleteByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted rows, got %d", deleted)
	}
}
