package dashboardconfig

import (
	"fmt"

	"github.com/wonny/findash/internal/contracts"
)

// ValidationError 검증 실패 (로드 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.DashboardID == "" {
		return ValidationError{"meta.dashboard_id", "required"}
	}

	// === Data ===
	if _, err := contracts.ParseLookback(cfg.Data.Lookback); err != nil {
		return ValidationError{"data.lookback", err.Error()}
	}

	// === Universe ===
	if len(cfg.Universe.Categories) == 0 {
		return ValidationError{"universe.categories", "at least one category required"}
	}
	categories := make(map[string]struct{})
	symbols := make(map[string]struct{})
	for i, cat := range cfg.Universe.Categories {
		field := fmt.Sprintf("universe.categories[%d]", i)
		if cat.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if _, dup := categories[cat.Name]; dup {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate category %q", cat.Name)}
		}
		categories[cat.Name] = struct{}{}

		if len(cat.Symbols) == 0 {
			return ValidationError{field + ".symbols", "at least one symbol required"}
		}
		for _, s := range cat.Symbols {
			if s == "" {
				return ValidationError{field + ".symbols", "empty symbol"}
			}
			if _, dup := symbols[s]; dup {
				return ValidationError{field + ".symbols", fmt.Sprintf("symbol %q listed twice", s)}
			}
			symbols[s] = struct{}{}
		}
	}

	// === Renames ===
	renamed := make(map[string]struct{})
	for i, r := range cfg.Renames {
		field := fmt.Sprintf("renames[%d]", i)
		if _, ok := symbols[r.Symbol]; !ok {
			return ValidationError{field + ".symbol", fmt.Sprintf("%q is not in the universe", r.Symbol)}
		}
		if r.Label == "" {
			return ValidationError{field + ".label", "required"}
		}
		if _, dup := renamed[r.Symbol]; dup {
			return ValidationError{field + ".symbol", fmt.Sprintf("%q renamed twice", r.Symbol)}
		}
		renamed[r.Symbol] = struct{}{}
	}

	// labels must stay unique after renaming
	labels := make(map[string]struct{})
	for _, l := range cfg.Labels() {
		if _, dup := labels[l]; dup {
			return ValidationError{"renames", fmt.Sprintf("label %q is used by two columns", l)}
		}
		labels[l] = struct{}{}
	}

	// === View ===
	if _, ok := categories[cfg.View.DefaultCategory]; !ok {
		return ValidationError{"view.default_category", fmt.Sprintf("unknown category %q", cfg.View.DefaultCategory)}
	}
	if !cfg.View.RangePolicy.Valid() {
		return ValidationError{"view.range_policy", "must be fallback or reject"}
	}
	if cfg.View.TailRows < 1 {
		return ValidationError{"view.tail_rows", "must be >= 1"}
	}
	if cfg.View.HistogramBins < 1 {
		return ValidationError{"view.histogram_bins", "must be >= 1"}
	}

	// === KPIs ===
	for i, k := range cfg.KPIs {
		field := fmt.Sprintf("kpis[%d]", i)
		if _, ok := labels[k.Subject]; !ok {
			return ValidationError{field + ".subject", fmt.Sprintf("unknown label %q", k.Subject)}
		}
		if k.Decimals < 0 || k.Decimals > 8 {
			return ValidationError{field + ".decimals", "must be in [0, 8]"}
		}
	}

	// === Alerts ===
	subjects := make(map[string]struct{})
	for i, rule := range cfg.Alerts {
		field := fmt.Sprintf("alerts[%d]", i)
		if err := rule.Validate(); err != nil {
			return ValidationError{field, err.Error()}
		}
		if _, ok := labels[rule.Subject]; !ok {
			return ValidationError{field + ".subject", fmt.Sprintf("unknown label %q", rule.Subject)}
		}
		if _, dup := subjects[rule.Subject]; dup {
			return ValidationError{field + ".subject", fmt.Sprintf("%q has two rules", rule.Subject)}
		}
		subjects[rule.Subject] = struct{}{}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 상관행렬은 2개 이상 자산 필요
	if labels := cfg.DefaultAssets(); len(labels) < 2 {
		warnings = append(warnings, Warning{
			Code:    "SINGLE_ASSET_DEFAULT",
			Message: fmt.Sprintf("default category %q has one asset: correlation is not computable", cfg.View.DefaultCategory),
		})
	}

	for _, rule := range cfg.Alerts {
		if len(rule.Bands) == 0 {
			warnings = append(warnings, Warning{
				Code:    "NO_BANDS",
				Message: fmt.Sprintf("alert rule %q has no bands: it always reports the neutral band", rule.Subject),
			})
		}
	}

	if len(cfg.KPIs) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_KPIS",
			Message: "no KPI cards configured",
		})
	}

	return warnings
}
