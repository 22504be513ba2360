package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-care/platform/internal/shared/errors"
)

// AudioTranscriber converts recorded audio into transcript text. It is
// an optional capability; orchestrators without one reject audio
// ingestion with a configuration error.
type AudioTranscriber interface {
	// Transcribe submits a job and blocks until the transcript is
	// available or the job fails. Cancellation is the caller's
	// responsibility via ctx.
	Transcribe(ctx context.Context, jobID, mediaURI, mediaFormat string) (string, error)
}

// BatchClient drives an external batch transcription API: submit a job,
// poll until done, fetch the text. The service contract is a minimal
// JSON job resource.
type BatchClient struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// BatchClientConfig holds batch client settings.
type BatchClientConfig struct {
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
}

// NewBatchClient creates a batch transcription client.
func NewBatchClient(cfg BatchClientConfig) *BatchClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 60
	}
	return &BatchClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
	}
}

type batchJob struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"` // queued, in_progress, completed, failed
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Transcribe submits the job and polls until completion.
func (c *BatchClient) Transcribe(ctx context.Context, jobID, mediaURI, mediaFormat string) (string, error) {
	if err := c.submit(ctx, jobID, mediaURI, mediaFormat); err != nil {
		return "", err
	}

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		job, err := c.poll(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch job.Status {
		case "completed":
			return job.Transcript, nil
		case "failed":
			return "", errors.Wrap(fmt.Errorf("%s", job.Error), "transcription job failed")
		}
	}

	return "", errors.Wrap(fmt.Errorf("job %s", jobID), "transcription job timed out")
}

func (c *BatchClient) submit(ctx context.Context, jobID, mediaURI, mediaFormat string) error {
	body, err := json.Marshal(map[string]string{
		"job_id":       jobID,
		"media_uri":    mediaURI,
		"media_format": mediaFormat,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal transcription job")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", strings.NewReader(string(body)))
	if err != nil {
		return errors.Wrap(err, "failed to build transcription request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to submit transcription job")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return errors.Wrap(fmt.Errorf("status %d", resp.StatusCode), "transcription job rejected")
	}
	return nil
}

func (c *BatchClient) poll(ctx context.Context, jobID string) (*batchJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build poll request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to poll transcription job")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(fmt.Errorf("status %d", resp.StatusCode), "transcription job poll failed")
	}

	var job batchJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, errors.Wrap(err, "failed to decode transcription job")
	}
	return &job, nil
}

var _ AudioTranscriber = (*BatchClient)(nil)
