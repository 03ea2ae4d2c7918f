package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/export"
	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	outreachMinScore int
	outreachLimit    int
	outreachTemplate bool
)

// draft is one outreach email for a lead's primary contact.
type draft struct {
	Domain  string `json:"domain"`
	Company string `json:"company"`
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Email   string `json:"email,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var outreachCmd = &cobra.Command{
	Use:   "outreach <pool-id>",
	Short: "Draft first-touch emails for a pool's best leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pool, err := st.GetPool(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get pool")
		}
		leads, err := export.Collect(ctx, st, pool.ID, export.Filter{MinScore: outreachMinScore, Limit: outreachLimit})
		if err != nil {
			return err
		}

		svc := initAI()
		drafts := make([]draft, 0, len(leads))
		for _, l := range leads {
			c := l.PrimaryContact()
			if c == nil {
				zap.L().Debug("outreach: no contact", zap.String("domain", l.Candidate.Domain))
				continue
			}
			r := recipient(l.Candidate, *c)

			var o ai.Outreach
			if outreachTemplate {
				o = ai.TemplateOutreach(r, pool.Targeting)
			} else {
				o = svc.DraftOutreach(ctx, r, pool.Targeting)
			}
			drafts = append(drafts, draft{
				Domain:  l.Candidate.Domain,
				Company: r.CompanyName,
				Name:    r.Name,
				Title:   r.Title,
				Email:   r.Email,
				Subject: o.Subject,
				Body:    o.Body,
			})
		}

		zap.L().Info("outreach drafted", zap.String("pool_id", pool.ID), zap.Int("leads", len(leads)), zap.Int("drafts", len(drafts)))
		return printJSON(cmd.OutOrStdout(), drafts)
	},
}

func recipient(cand model.LeadCandidate, c model.ContactCandidate) ai.Recipient {
	return ai.Recipient{
		Name:        c.FullName,
		Title:       c.Title,
		Email:       c.Email,
		CompanyName: cand.CompanyName,
		Domain:      cand.Domain,
	}
}

func init() {
	outreachCmd.Flags().IntVar(&outreachMinScore, "min-score", 0, "skip candidates scoring below this")
	outreachCmd.Flags().IntVar(&outreachLimit, "limit", 25, "max leads to draft for")
	outreachCmd.Flags().BoolVar(&outreachTemplate, "template", false, "use the built-in template instead of the model")
	rootCmd.AddCommand(outreachCmd)
}
