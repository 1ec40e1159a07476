package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/findash/internal/api/handlers"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/pipeline"
)

// selection holds the view flags shared by snapshot and export.
// It goes through the same validation as the HTTP query string.
type selection struct {
	assets   []string
	category string
	start    string
	end      string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.assets, "assets", nil, "asset labels to show (empty selects nothing)")
	cmd.Flags().StringVar(&s.category, "category", "", "show every asset of a category")
	cmd.Flags().StringVar(&s.start, "start", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&s.end, "end", "", "range end (YYYY-MM-DD)")
}

func (s *selection) filters(cmd *cobra.Command, cfg *dashboardconfig.Config) (pipeline.Filters, error) {
	q := handlers.DashboardQuery{
		Category: strings.TrimSpace(s.category),
		Start:    strings.TrimSpace(s.start),
		End:      strings.TrimSpace(s.end),
	}
	if cmd.Flags().Changed("assets") {
		q.HasAssets = true
		q.Assets = []string{}
		for _, a := range s.assets {
			if a = strings.TrimSpace(a); a != "" {
				q.Assets = append(q.Assets, a)
			}
		}
	}

	if fields := q.Validate(handlers.NewValidator()); len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Message)
		}
		return pipeline.Filters{}, errors.New("invalid flags: " + strings.Join(msgs, "; "))
	}

	return q.Filters(cfg)
}
