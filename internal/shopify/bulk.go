package shopify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	apperrors "github.com/shopbridge/syncengine/pkg/errors"
)

// PollPolicy bounds the bulk-job poll loop. Interval is the sleep
// between polls; MaxWait is the hard wall-clock ceiling after which the
// wait fails with a timeout, distinct from an external failure.
type PollPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// DefaultPollPolicy matches the platform's recommended polling cadence
var DefaultPollPolicy = PollPolicy{
	Interval: 2 * time.Second,
	MaxWait:  5 * time.Minute,
}

// BulkJob is a snapshot of an externally-executed bulk operation
type BulkJob struct {
	ID          string
	Status      domain.BulkJobStatus
	ErrorCode   string
	ObjectCount int64
	ResultURL   string
}

// BulkJobClient submits and tracks bulk operations against one store
type BulkJobClient struct {
	client     *Client
	httpClient *http.Client
	policy     PollPolicy
	logger     *zap.Logger
}

// NewBulkJobClient creates a bulk job client for one store
func NewBulkJobClient(client *Client, policy PollPolicy, logger *zap.Logger) *BulkJobClient {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollPolicy.Interval
	}
	if policy.MaxWait <= 0 {
		policy.MaxWait = DefaultPollPolicy.MaxWait
	}
	return &BulkJobClient{
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		policy:     policy,
		logger:     logger,
	}
}

type bulkOperationNode struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
	URL         string `json:"url"`
}

func (n *bulkOperationNode) toJob() *BulkJob {
	job := &BulkJob{
		ID:        n.ID,
		Status:    domain.BulkJobStatus(n.Status),
		ErrorCode: n.ErrorCode,
		ResultURL: n.URL,
	}
	job.ObjectCount, _ = strconv.ParseInt(n.ObjectCount, 10, 64)
	return job
}

// CurrentJob returns the job currently in flight for the store, or nil.
// Callers must check this before submitting: the platform allows one
// bulk operation per store at a time.
func (c *BulkJobClient) CurrentJob(ctx context.Context, jobType string) (*BulkJob, error) {
	resp, err := c.client.Execute(ctx, CurrentBulkOperationQuery, map[string]interface{}{
		"type": jobType,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		CurrentBulkOperation *bulkOperationNode `json:"currentBulkOperation"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse current bulk operation: %w", err)
	}
	if data.CurrentBulkOperation == nil {
		return nil, nil
	}
	return data.CurrentBulkOperation.toJob(), nil
}

// SubmitQuery submits a bulk read job. Fails with ErrConflict if a job
// is already running for the store.
func (c *BulkJobClient) SubmitQuery(ctx context.Context, query string) (*BulkJob, error) {
	current, err := c.CurrentJob(ctx, "QUERY")
	if err != nil {
		return nil, err
	}
	if current != nil && !current.Status.IsTerminal() {
		return nil, &apperrors.ErrConflict{Message: fmt.Sprintf("bulk job %s already in flight", current.ID)}
	}

	resp, err := c.client.Execute(ctx, BulkOperationRunQueryMutation, map[string]interface{}{
		"query": query,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		BulkOperationRunQuery struct {
			BulkOperation *bulkOperationNode `json:"bulkOperation"`
			UserErrors    []UserError        `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse bulk submit response: %w", err)
	}
	if len(data.BulkOperationRunQuery.UserErrors) > 0 {
		return nil, fmt.Errorf("bulk submit rejected: %s", data.BulkOperationRunQuery.UserErrors[0].Message)
	}
	if data.BulkOperationRunQuery.BulkOperation == nil {
		return nil, fmt.Errorf("bulk submit returned no operation")
	}

	job := data.BulkOperationRunQuery.BulkOperation.toJob()
	c.logger.Info("Submitted bulk query job",
		zap.String("job_id", job.ID),
		zap.String("shop", c.client.ShopDomain()),
	)
	return job, nil
}

// SubmitMutation submits a bulk write job. The JSONL payload is staged
// out-of-band first: the platform requires large payloads uploaded to a
// separate target, then referenced by staged path in the mutation.
func (c *BulkJobClient) SubmitMutation(ctx context.Context, mutation string, payload []byte) (*BulkJob, error) {
	current, err := c.CurrentJob(ctx, "MUTATION")
	if err != nil {
		return nil, err
	}
	if current != nil && !current.Status.IsTerminal() {
		return nil, &apperrors.ErrConflict{Message: fmt.Sprintf("bulk job %s already in flight", current.ID)}
	}

	target, err := c.createUploadTarget(ctx)
	if err != nil {
		return nil, err
	}

	stagedPath, err := c.uploadBytes(ctx, target, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Execute(ctx, BulkOperationRunMutationMutation, map[string]interface{}{
		"mutation":         mutation,
		"stagedUploadPath": stagedPath,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		BulkOperationRunMutation struct {
			BulkOperation *bulkOperationNode `json:"bulkOperation"`
			UserErrors    []UserError        `json:"userErrors"`
		} `json:"bulkOperationRunMutation"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse bulk mutation response: %w", err)
	}
	if len(data.BulkOperationRunMutation.UserErrors) > 0 {
		return nil, fmt.Errorf("bulk mutation rejected: %s", data.BulkOperationRunMutation.UserErrors[0].Message)
	}
	if data.BulkOperationRunMutation.BulkOperation == nil {
		return nil, fmt.Errorf("bulk mutation returned no operation")
	}

	return data.BulkOperationRunMutation.BulkOperation.toJob(), nil
}

// Poll fetches the current state of one job
func (c *BulkJobClient) Poll(ctx context.Context, jobID string) (*BulkJob, error) {
	resp, err := c.client.Execute(ctx, BulkOperationByIDQuery, map[string]interface{}{
		"id": jobID,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Node *bulkOperationNode `json:"node"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse bulk poll response: %w", err)
	}
	if data.Node == nil {
		return nil, &apperrors.ErrNotFound{Resource: "bulk job", ID: jobID}
	}
	return data.Node.toJob(), nil
}

// PollUntilComplete polls the job at the policy interval until it
// reaches a terminal state or the wall-clock ceiling is hit. Only
// COMPLETED returns a job; every other terminal state is an error
// carrying the platform's error code.
func (c *BulkJobClient) PollUntilComplete(ctx context.Context, jobID string) (*BulkJob, error) {
	deadline := time.Now().Add(c.policy.MaxWait)
	ticker := time.NewTicker(c.policy.Interval)
	defer ticker.Stop()

	for {
		job, err := c.Poll(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case domain.BulkJobStatusCompleted:
			return job, nil
		case domain.BulkJobStatusFailed, domain.BulkJobStatusCanceled, domain.BulkJobStatusExpired:
			return nil, &apperrors.ErrBulkJob{JobID: jobID, Status: job.Status, ErrorCode: job.ErrorCode}
		}

		if time.Now().After(deadline) {
			return nil, &apperrors.ErrBulkJob{JobID: jobID, Status: job.Status, Timeout: true}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel requests cancellation of a running job. The job passes through
// CANCELING before settling in CANCELED.
func (c *BulkJobClient) Cancel(ctx context.Context, jobID string) error {
	resp, err := c.client.Execute(ctx, BulkOperationCancelMutation, map[string]interface{}{
		"id": jobID,
	})
	if err != nil {
		return err
	}

	var data struct {
		BulkOperationCancel struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"bulkOperationCancel"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse cancel response: %w", err)
	}
	if len(data.BulkOperationCancel.UserErrors) > 0 {
		return fmt.Errorf("bulk cancel rejected: %s", data.BulkOperationCancel.UserErrors[0].Message)
	}
	return nil
}

// StreamResults downloads the job result and invokes fn for every
// JSONL line. The body is scanned line by line, never buffered whole,
// so memory stays bounded for catalogs in the tens of thousands.
func (c *BulkJobClient) StreamResults(ctx context.Context, job *BulkJob, fn func(line json.RawMessage) error) error {
	if job.ResultURL == "" {
		// Zero objects produce no result file
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", job.ResultURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download bulk results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk result download failed: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		record := make(json.RawMessage, len(line))
		copy(record, line)
		if err := fn(record); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// UserError is a platform-side validation error on a mutation
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UploadTarget is a staged upload destination
type UploadTarget struct {
	URL         string            `json:"url"`
	ResourceURL string            `json:"resourceUrl"`
	Parameters  map[string]string `json:"-"`
}

func (c *BulkJobClient) createUploadTarget(ctx context.Context) (*UploadTarget, error) {
	resp, err := c.client.Execute(ctx, StagedUploadsCreateMutation, map[string]interface{}{
		"input": []map[string]interface{}{
			{
				"resource":   "BULK_MUTATION_VARIABLES",
				"filename":   "bulk_op_vars.jsonl",
				"mimeType":   "text/jsonl",
				"httpMethod": "POST",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		StagedUploadsCreate struct {
			StagedTargets []struct {
				URL         string `json:"url"`
				ResourceURL string `json:"resourceUrl"`
				Parameters  []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"parameters"`
			} `json:"stagedTargets"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse staged upload response: %w", err)
	}
	if len(data.StagedUploadsCreate.UserErrors) > 0 {
		return nil, fmt.Errorf("staged upload rejected: %s", data.StagedUploadsCreate.UserErrors[0].Message)
	}
	if len(data.StagedUploadsCreate.StagedTargets) == 0 {
		return nil, fmt.Errorf("staged upload returned no targets")
	}

	raw := data.StagedUploadsCreate.StagedTargets[0]
	target := &UploadTarget{
		URL:         raw.URL,
		ResourceURL: raw.ResourceURL,
		Parameters:  make(map[string]string, len(raw.Parameters)),
	}
	for _, p := range raw.Parameters {
		target.Parameters[p.Name] = p.Value
	}
	return target, nil
}

// uploadBytes uploads the payload to the staged target as multipart
// form data and returns the staged path ("key" parameter) to reference
// in the bulk mutation.
func (c *BulkJobClient) uploadBytes(ctx context.Context, target *UploadTarget, payload []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range target.Parameters {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write upload field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("file", "bulk_op_vars.jsonl")
	if err != nil {
		return "", fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("failed to write upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", target.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload staged payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("staged upload failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	key, ok := target.Parameters["key"]
	if !ok {
		return target.ResourceURL, nil
	}
	return key, nil
}
