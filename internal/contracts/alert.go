package contracts

import "github.com/guregu/null/v6"

// Severity is the closed set of alert levels
type Severity string

const (
	SeverityNormal      Severity = "normal"
	SeverityOpportunity Severity = "opportunity"
	SeverityRisk        Severity = "risk"
	SeverityUnavailable Severity = "unavailable"
)

// Severities lists every level, configurable or not
func Severities() []Severity {
	return []Severity{SeverityNormal, SeverityOpportunity, SeverityRisk, SeverityUnavailable}
}

// Configurable reports whether s may be assigned to a band.
// "unavailable" is reserved for evaluation failures.
func (s Severity) Configurable() bool {
	switch s {
	case SeverityNormal, SeverityOpportunity, SeverityRisk:
		return true
	}
	return false
}

// Alert is computed fresh on every pipeline run and never persisted
type Alert struct {
	Subject  string     `json:"subject"`
	Severity Severity   `json:"severity"`
	Band     string     `json:"band,omitempty"`
	Value    null.Float `json:"value"`
	Previous null.Float `json:"previous"`
	Change   null.Float `json:"change"` // fractional day-over-day change
	Message  string     `json:"message"`
	Reason   string     `json:"reason,omitempty"` // error kind when unavailable
}
