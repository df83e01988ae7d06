package policy

import (
	"time"

	"github.com/charlesng35/gigbook/internal/models"
)

// Cancellation defaults.
const (
	DefaultLateWindow         = 24 * time.Hour
	DefaultSuspensionLength   = 7 * 24 * time.Hour
	DefaultFrequencyThreshold = 3
	DefaultFrequencyWindow    = 30 * 24 * time.Hour
)

// CancellationConfig parameterises the cancellation policy.
type CancellationConfig struct {
	// LateWindow is how close to the start a cancellation counts as late.
	LateWindow time.Duration
	// SuspensionLength is how long a penalised musician cannot be invited.
	SuspensionLength time.Duration
	// FrequencyThreshold is the number of cancellations inside FrequencyWindow,
	// the current one included, that triggers a suspension. Zero disables the rule.
	FrequencyThreshold int
	FrequencyWindow    time.Duration
}

// DefaultCancellationConfig returns the stock policy parameters.
func DefaultCancellationConfig() CancellationConfig {
	return CancellationConfig{
		LateWindow:         DefaultLateWindow,
		SuspensionLength:   DefaultSuspensionLength,
		FrequencyThreshold: DefaultFrequencyThreshold,
		FrequencyWindow:    DefaultFrequencyWindow,
	}
}

// SuspensionWindow is the advisory outcome of a penalised cancellation.
type SuspensionWindow struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Reason   string    `json:"reason"`
}

// Decision is the result of evaluating a cancellation.
type Decision struct {
	Late       bool
	Suspension *SuspensionWindow
}

// CancellationPolicy decides whether a cancelled confirmation is penalised.
type CancellationPolicy struct {
	cfg CancellationConfig
}

// NewCancellationPolicy builds a policy, filling unset durations with defaults.
func NewCancellationPolicy(cfg CancellationConfig) *CancellationPolicy {
	if cfg.LateWindow <= 0 {
		cfg.LateWindow = DefaultLateWindow
	}
	if cfg.SuspensionLength <= 0 {
		cfg.SuspensionLength = DefaultSuspensionLength
	}
	if cfg.FrequencyThreshold < 0 {
		cfg.FrequencyThreshold = 0
	}
	if cfg.FrequencyWindow <= 0 {
		cfg.FrequencyWindow = DefaultFrequencyWindow
	}
	return &CancellationPolicy{cfg: cfg}
}

// Config returns the effective parameters.
func (p *CancellationPolicy) Config() CancellationConfig {
	return p.cfg
}

// IsLate reports whether cancelling at cancelledAt leaves less than the late
// window before gigStart. Cancelling after the start is always late.
func (p *CancellationPolicy) IsLate(gigStart, cancelledAt time.Time) bool {
	return gigStart.Sub(cancelledAt) < p.cfg.LateWindow
}

// FrequencySince returns the earliest cancellation time that still counts
// toward the frequency rule for a cancellation at cancelledAt.
func (p *CancellationPolicy) FrequencySince(cancelledAt time.Time) time.Time {
	return cancelledAt.Add(-p.cfg.FrequencyWindow)
}

// Evaluate applies the late rule, then the frequency rule. prior holds the
// times of the musician's earlier cancellations; entries outside the window
// or after cancelledAt are ignored.
func (p *CancellationPolicy) Evaluate(gigStart, cancelledAt time.Time, prior []time.Time) Decision {
	decision := Decision{Late: p.IsLate(gigStart, cancelledAt)}
	if decision.Late {
		decision.Suspension = p.suspension(cancelledAt, models.SuspensionReasonLate)
		return decision
	}

	if p.cfg.FrequencyThreshold == 0 {
		return decision
	}

	since := p.FrequencySince(cancelledAt)
	count := 1
	for _, at := range prior {
		if at.After(since) && !at.After(cancelledAt) {
			count++
		}
	}
	if count >= p.cfg.FrequencyThreshold {
		decision.Suspension = p.suspension(cancelledAt, models.SuspensionReasonFrequent)
	}
	return decision
}

func (p *CancellationPolicy) suspension(start time.Time, reason string) *SuspensionWindow {
	return &SuspensionWindow{
		StartsAt: start,
		EndsAt:   start.Add(p.cfg.SuspensionLength),
		Reason:   reason,
	}
}
