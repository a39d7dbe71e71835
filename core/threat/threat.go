package threat

import (
	"log"
	"math"
	"time"
)

// Quorum factor bounds. The factor scales the signature quorum, so it never
// drops below a simple majority and never demands more than 90% of the set.
const (
	MinFactor  = 0.51
	MaxFactor  = 0.90
	factorSpan = MaxFactor - MinFactor
)

// Signal weights. The raw score is a weighted sum of live alert volume,
// clamped to [0,1]. A single weight (0.12) is used for high-severity alerts.
const (
	weightCritical  = 0.15
	weightHigh      = 0.12
	weightUnblocked = 0.12
)

// DefaultWindow is the rolling window alert counts are drawn from.
const DefaultWindow = time.Hour

// Class is the coarse classification of a threat level.
type Class string

const (
	ClassNormal   Class = "normal"
	ClassElevated Class = "elevated"
	ClassHigh     Class = "high"
	ClassCritical Class = "critical"
)

// Counts are the raw alert counts a level was derived from.
type Counts struct {
	CriticalAlerts   int `json:"criticalAlerts"`   // unacknowledged critical alerts
	HighAlerts       int `json:"highAlerts"`       // unacknowledged high-severity alerts
	UnblockedAttacks int `json:"unblockedAttacks"` // attack events not yet blocked
}

// AlertSource is the external threat-signal boundary: it reports alert
// counts within a rolling window.
type AlertSource interface {
	Counts(window time.Duration) (Counts, error)
}

// Level is a point-in-time threat reading. It is recomputed on demand and
// not cached across calls.
type Level struct {
	Factor   float64       `json:"factor"` // quorum factor in [0.51, 0.90]
	Class    Class         `json:"class"`
	Counts   Counts        `json:"counts"`
	Window   time.Duration `json:"window"`
	Degraded bool          `json:"degraded"` // true when the source was unreachable
}

// Adapter turns raw alert counts into a quorum factor.
type Adapter struct {
	source AlertSource
	window time.Duration
}

func NewAdapter(source AlertSource) *Adapter {
	return &Adapter{source: source, window: DefaultWindow}
}

// WithWindow overrides the rolling window.
func (a *Adapter) WithWindow(window time.Duration) *Adapter {
	if window > 0 {
		a.window = window
	}
	return a
}

// Current computes the live threat level. If the source is nil or fails,
// the level degrades to the minimum factor instead of propagating an
// error: consensus availability beats signal freshness.
func (a *Adapter) Current() Level {
	if a.source == nil {
		return degradedLevel(a.window)
	}
	counts, err := a.source.Counts(a.window)
	if err != nil {
		log.Printf("[threat] alert source unavailable, degrading to minimum factor: %v", err)
		return degradedLevel(a.window)
	}
	raw := rawScore(counts)
	return Level{
		Factor: MinFactor + raw*factorSpan,
		Class:  classify(raw),
		Counts: counts,
		Window: a.window,
	}
}

func degradedLevel(window time.Duration) Level {
	return Level{Factor: MinFactor, Class: ClassNormal, Window: window, Degraded: true}
}

func rawScore(c Counts) float64 {
	raw := weightCritical*float64(c.CriticalAlerts) +
		weightHigh*float64(c.HighAlerts) +
		weightUnblocked*float64(c.UnblockedAttacks)
	return math.Min(1.0, math.Max(0.0, raw))
}

func classify(raw float64) Class {
	switch {
	case raw < 0.25:
		return ClassNormal
	case raw < 0.5:
		return ClassElevated
	case raw < 0.75:
		return ClassHigh
	default:
		return ClassCritical
	}
}

// QuorumRequired is the signature count a validator set must reach at the
// given factor. Monotonic in the factor for a fixed set size.
func QuorumRequired(totalValidators int, factor float64) int {
	if totalValidators <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalValidators) * factor))
}
