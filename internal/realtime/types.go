package realtime

import (
	"time"

	"github.com/wonny/findash/internal/contracts"
)

// EventType names a message on the alert stream
type EventType string

const (
	// EventAlerts carries the full alert list of a pipeline run
	EventAlerts EventType = "alerts"
)

// Event is what clients of /ws/alerts receive
// ⭐ SSOT: 실시간 알림 메시지 구조
type Event struct {
	Type        EventType         `json:"type"`
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	AsOf        time.Time         `json:"as_of"`
	Alerts      []contracts.Alert `json:"alerts"`
}

// Changed reports whether the severity of any subject differs from prev
func (e Event) Changed(prev *Event) bool {
	if prev == nil || len(prev.Alerts) != len(e.Alerts) {
		return true
	}
	before := make(map[string]contracts.Severity, len(prev.Alerts))
	for _, a := range prev.Alerts {
		before[a.Subject] = a.Severity
	}
	for _, a := range e.Alerts {
		if s, ok := before[a.Subject]; !ok || s != a.Severity {
			return true
		}
	}
	return false
}
