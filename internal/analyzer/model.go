package analyzer

import (
	"context"
	"fmt"
	"time"

	"triage-kiosk/internal/triage"
)

// Model produces a verdict for a snapshot. Implementations may fail; the
// Service turns any failure into the local rule fallback.
type Model interface {
	Name() string
	Analyze(ctx context.Context, s triage.Snapshot) (triage.Verdict, error)
}

// Config selects and tunes the primary model.
type Config struct {
	// Endpoint of a remote analysis model. Empty means local rules only.
	Endpoint string
	Timeout  time.Duration
	Retries  int
}

// NewModel returns a RemoteModel when an endpoint is configured and the
// local RuleModel otherwise.
func NewModel(cfg Config) Model {
	if cfg.Endpoint == "" {
		return RuleModel{}
	}
	return NewRemoteModel(cfg.Endpoint, cfg.Timeout, cfg.Retries)
}

// RuleModel is the local threshold cascade. It refuses implausible snapshots
// so that they are reported with fallback confidence.
type RuleModel struct{}

func (RuleModel) Name() string { return string(SourceRules) }

func (RuleModel) Analyze(_ context.Context, s triage.Snapshot) (triage.Verdict, error) {
	if err := triage.Validate(s); err != nil {
		return triage.Verdict{}, fmt.Errorf("rule model: %w", err)
	}
	return triage.Classify(s), nil
}
