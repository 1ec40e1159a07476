package handlers

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/filter"
	"github.com/wonny/findash/internal/pipeline"
)

// DashboardQuery is the raw query string of the dashboard endpoints.
//
//	?assets=AAPL,NVDA   explicit selection (assets= selects nothing)
//	?category=fx        every asset of a category
//	?start=2024-01-01&end=2024-06-30
type DashboardQuery struct {
	Assets    []string `json:"assets" validate:"omitempty,max=64,dive,required,max=64"`
	HasAssets bool     `json:"-"`
	Category  string   `json:"category" validate:"omitempty,max=64,excluded_with=Assets"`
	Start     string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
}

// NewValidator returns a validator reporting json field names
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseDashboardQuery reads the query string without validating it
func ParseDashboardQuery(values url.Values) DashboardQuery {
	q := DashboardQuery{
		Category: strings.TrimSpace(values.Get("category")),
		Start:    strings.TrimSpace(values.Get("start")),
		End:      strings.TrimSpace(values.Get("end")),
	}
	if raw, ok := values["assets"]; ok {
		q.HasAssets = true
		q.Assets = []string{}
		for _, v := range raw {
			for _, a := range strings.Split(v, ",") {
				if a = strings.TrimSpace(a); a != "" {
					q.Assets = append(q.Assets, a)
				}
			}
		}
	}
	return q
}

// Validate checks q and returns one FieldError per failed rule
func (q DashboardQuery) Validate(v *validator.Validate) []FieldError {
	err := v.Struct(q)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "query", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted YYYY-MM-DD", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "required":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with assets", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// Filters turns a validated query into pipeline filters.
// An unknown category is reported as a missing column.
func (q DashboardQuery) Filters(cfg *dashboardconfig.Config) (pipeline.Filters, error) {
	var f pipeline.Filters

	switch {
	case q.HasAssets:
		f.Assets = q.Assets
	case q.Category != "":
		labels, ok := cfg.CategoryLabels(q.Category)
		if !ok {
			return f, fmt.Errorf("%w: unknown category %q", contracts.ErrMissingColumn, q.Category)
		}
		f.Assets = labels
	}

	if q.Start != "" || q.End != "" {
		var r filter.Range
		if q.Start != "" {
			r.Start, _ = time.Parse(contracts.DateLayout, q.Start)
		}
		if q.End != "" {
			r.End, _ = time.Parse(contracts.DateLayout, q.End)
		}
		f.Range = &r
	}

	return f, nil
}
