package threat

import (
	"sync"
	"time"
)

// AlertSeverity of a recorded security alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
)

// AlertFeed is an in-process AlertSource the surrounding security product
// pushes events into. Counts reflect unacknowledged alerts and unblocked
// attacks inside the rolling window.
type AlertFeed struct {
	mu      sync.Mutex
	alerts  []alertEntry
	attacks []attackEntry
	clock   func() time.Time
}

type alertEntry struct {
	at           time.Time
	severity     AlertSeverity
	acknowledged bool
	id           string
}

type attackEntry struct {
	at      time.Time
	blocked bool
	id      string
}

func NewAlertFeed() *AlertFeed {
	return &AlertFeed{clock: time.Now}
}

// WithClock overrides the feed's clock (deterministic tests).
func (f *AlertFeed) WithClock(clock func() time.Time) *AlertFeed {
	f.clock = clock
	return f
}

// RecordAlert registers a new unacknowledged alert.
func (f *AlertFeed) RecordAlert(id string, severity AlertSeverity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alertEntry{at: f.clock(), severity: severity, id: id})
}

// AcknowledgeAlert marks an alert as handled; it stops counting.
func (f *AlertFeed) AcknowledgeAlert(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].id == id {
			f.alerts[i].acknowledged = true
		}
	}
}

// RecordAttack registers a new attack event, initially unblocked.
func (f *AlertFeed) RecordAttack(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attacks = append(f.attacks, attackEntry{at: f.clock(), id: id})
}

// BlockAttack marks an attack as blocked; it stops counting.
func (f *AlertFeed) BlockAttack(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.attacks {
		if f.attacks[i].id == id {
			f.attacks[i].blocked = true
		}
	}
}

// Counts implements AlertSource over the rolling window, dropping entries
// that have aged out of it.
func (f *AlertFeed) Counts(window time.Duration) (Counts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.clock().Add(-window)
	var c Counts

	kept := f.alerts[:0]
	for _, a := range f.alerts {
		if a.at.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
		if a.acknowledged {
			continue
		}
		switch a.severity {
		case SeverityCritical:
			c.CriticalAlerts++
		case SeverityHigh:
			c.HighAlerts++
		}
	}
	f.alerts = kept

	keptAttacks := f.attacks[:0]
	for _, a := range f.attacks {
		if a.at.Before(cutoff) {
			continue
		}
		keptAttacks = append(keptAttacks, a)
		if !a.blocked {
			c.UnblockedAttacks++
		}
	}
	f.attacks = keptAttacks

	return c, nil
}
