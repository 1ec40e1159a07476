package contracts

import "errors"

// Error taxonomy shared by every pipeline stage.
// Stages wrap these with fmt.Errorf("%w: ...") so callers can use errors.Is.
var (
	ErrFetchFailure     = errors.New("fetch failure")
	ErrEmptyResult      = errors.New("empty result")
	ErrMissingColumn    = errors.New("missing column")
	ErrInvalidRange     = errors.New("invalid range")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDomain           = errors.New("domain error")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrFetchFailure, "fetch_failure"},
	{ErrEmptyResult, "empty_result"},
	{ErrMissingColumn, "missing_column"},
	{ErrInvalidRange, "invalid_range"},
	{ErrInsufficientData, "insufficient_data"},
	{ErrDomain, "domain_error"},
}

// Kind maps err to a stable code for JSON payloads.
// nil maps to "" and foreign errors to "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
