package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"triage-kiosk/internal/triage"
)

const defaultRemoteTimeout = 5 * time.Second

// RemoteModel posts the snapshot to an external analysis server that answers
// with {"healthData": {...}} in the same shape this service returns.
type RemoteModel struct {
	client   *resty.Client
	endpoint string
}

type remoteResponse struct {
	HealthData *remoteVerdict `json:"healthData"`
}

type remoteVerdict struct {
	Symptoms  []string          `json:"symptoms"`
	RiskLevel *triage.RiskLevel `json:"riskLevel"`
}

func NewRemoteModel(endpoint string, timeout time.Duration, retries int) *RemoteModel {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteModel{client: client, endpoint: endpoint}
}

func (m *RemoteModel) Name() string { return string(SourceRemote) }

func (m *RemoteModel) Analyze(ctx context.Context, s triage.Snapshot) (triage.Verdict, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(s).
		Post(m.endpoint)
	if err != nil {
		return triage.Verdict{}, fmt.Errorf("failed to call analysis server: %w", err)
	}
	if resp.IsError() {
		return triage.Verdict{}, fmt.Errorf("analysis server returned %s", resp.Status())
	}

	var body remoteResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return triage.Verdict{}, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if body.HealthData == nil {
		return triage.Verdict{}, fmt.Errorf("analysis response has no healthData")
	}
	// A missing level must not read as LOW.
	if body.HealthData.RiskLevel == nil {
		return triage.Verdict{}, fmt.Errorf("analysis response has no riskLevel")
	}

	// Status, message and recommendations are always derived locally from
	// the returned level.
	return triage.VerdictFor(*body.HealthData.RiskLevel, body.HealthData.Symptoms), nil
}
