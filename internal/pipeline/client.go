package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Uploader submits one snapshot to the remote proof endpoint
type Uploader interface {
	UploadRecord(ctx context.Context, record *database.DeviceDataRecord) error
}

// ProofClient posts snapshots to the proof API. There are no inner retry
// loops; a failed record is retried by keeping it stored for the next
// batch.
type ProofClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *utils.LogsManager
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewProofClient creates a proof API client from config
func NewProofClient(config *utils.ConfigManager, logger *utils.LogsManager) *ProofClient {
	baseURL := config.GetConfigWithDefault("proof_api_base_url", "https://api.proofmesh.io")
	token := config.GetConfigWithDefault("proof_api_token", "")
	timeout := config.GetConfigDuration("proof_upload_timeout", 30*time.Second)

	return &ProofClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// UploadRecord posts one snapshot as JSON to {base}/proofs
func (c *ProofClient) UploadRecord(ctx context.Context, record *database.DeviceDataRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/proofs", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "proofmesh-node/1.0")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("proof upload failed: %v", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %v", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.Warn(fmt.Sprintf("Proof upload rejected (HTTP %d): %s", httpResp.StatusCode, string(respBody)), "proof-client")
		return fmt.Errorf("proof upload rejected: HTTP %d", httpResp.StatusCode)
	}

	var resp uploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	if !resp.Success {
		return fmt.Errorf("proof upload not accepted: %s", resp.Message)
	}

	return nil
}
