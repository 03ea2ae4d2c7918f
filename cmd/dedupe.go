package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

var (
	dedupeMinConfidence int
	dedupeReject        bool
)

// duplicate is a pair judged to be the same business. Keep is the
// higher-scoring candidate.
type duplicate struct {
	Keep       string `json:"keep"`
	Drop       string `json:"drop"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <pool-id>",
	Short: "Find candidates in a pool that are the same business",
	Long:  "Compares candidates that share a domain label or normalized name and asks the model whether they are the same business. With --reject the lower-scoring side is marked REJECTED.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cands, err := st.ListCandidates(ctx, args[0], 0)
		if err != nil {
			return eris.Wrap(err, "list candidates")
		}

		svc := initAI()
		var dups []duplicate
		for _, p := range duplicatePairs(cands) {
			a, b := cands[p[0]], cands[p[1]]
			res := svc.ResolveDuplicate(ctx, aiCompany(a), aiCompany(b))
			if !res.AreSame || res.Confidence < dedupeMinConfidence {
				continue
			}
			if b.Score > a.Score {
				a, b = b, a
			}
			dups = append(dups, duplicate{Keep: a.Domain, Drop: b.Domain, Confidence: res.Confidence, Reasoning: res.Reasoning})

			if dedupeReject && b.Status != model.CandidateStatusRejected {
				b.Status = model.CandidateStatusRejected
				if err := st.UpdateCandidate(ctx, &b); err != nil {
					return eris.Wrapf(err, "reject %s", b.Domain)
				}
			}
		}

		zap.L().Info("dedupe complete", zap.String("pool_id", args[0]), zap.Int("candidates", len(cands)), zap.Int("duplicates", len(dups)))
		return printJSON(cmd.OutOrStdout(), dups)
	},
}

// duplicatePairs returns index pairs of candidates sharing a blocking key:
// the first label of the domain, or the normalized company name. Each pair
// is reported once with the lower index first.
func duplicatePairs(cands []model.LeadCandidate) [][2]int {
	blocks := make(map[string][]int)
	for i, c := range cands {
		for _, k := range blockingKeys(c) {
			blocks[k] = append(blocks[k], i)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for i := range cands {
		for _, k := range blockingKeys(cands[i]) {
			for _, j := range blocks[k] {
				if j <= i {
					continue
				}
				p := [2]int{i, j}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}
	return pairs
}

func blockingKeys(c model.LeadCandidate) []string {
	var keys []string
	if d, ok := normalize.Domain(c.Domain); ok {
		if label, _, _ := strings.Cut(d, "."); label != "" {
			keys = append(keys, "d:"+label)
		}
	}
	if n := normalize.CompanyName(c.CompanyName); n != "" {
		keys = append(keys, "n:"+n)
	}
	return keys
}

func aiCompany(c model.LeadCandidate) ai.Company {
	return ai.Company{
		Domain:      c.Domain,
		Name:        c.CompanyName,
		Description: c.Description,
		Industry:    c.Industry,
		TechStack:   c.TechStack,
	}
}

func init() {
	dedupeCmd.Flags().IntVar(&dedupeMinConfidence, "min-confidence", 70, "ignore matches below this confidence")
	dedupeCmd.Flags().BoolVar(&dedupeReject, "reject", false, "mark the lower-scoring duplicate REJECTED")
	rootCmd.AddCommand(dedupeCmd)
}
