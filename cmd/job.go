package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	jobPoolID     string
	jobPoolName   string
	jobTargeting  string
	jobTemplates  []string
	jobUserID     string
	jobAIQueries  bool
	jobAIAnalysis bool
	jobSERP       bool
	jobShowEvents bool
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create and inspect lead generation jobs",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a PENDING job for a pool",
	Long:  "Creates a job. With --targeting the pool is created (or replaced) from a YAML targeting profile; otherwise --pool must name an existing pool.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		nj := pipeline.NewJob{
			PoolID:         jobPoolID,
			PoolName:       jobPoolName,
			QueryTemplates: jobTemplates,
			UserID:         jobUserID,
			Providers: model.JobProviders{
				AIQueries:  jobAIQueries,
				AIAnalysis: jobAIAnalysis,
				SERP:       jobSERP,
			},
		}
		if jobTargeting != "" {
			p, err := readTargeting(jobTargeting)
			if err != nil {
				return err
			}
			nj.Targeting = &p
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Runner.Submit(ctx, nj)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a job with its counters and log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		if !jobShowEvents {
			return printJSON(cmd.OutOrStdout(), job)
		}

		events, err := st.ListSourceEvents(ctx, job.ID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			*model.LeadGenJob
			Events []model.LeadSourceEvent `json:"events"`
		}{job, events})
	},
}

// readTargeting loads a YAML targeting profile. "-" reads stdin.
func readTargeting(path string) (model.TargetingProfile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.TargetingProfile{}, eris.Wrapf(err, "read targeting %s", path)
	}

	var p model.TargetingProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.TargetingProfile{}, eris.Wrapf(err, "parse targeting %s", path)
	}
	return p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	jobCreateCmd.Flags().StringVar(&jobPoolID, "pool", "", "pool ID (generated when --targeting is set and this is empty)")
	jobCreateCmd.Flags().StringVar(&jobPoolName, "pool-name", "", "pool display name")
	jobCreateCmd.Flags().StringVar(&jobTargeting, "targeting", "", "targeting profile YAML file, - for stdin")
	jobCreateCmd.Flags().StringSliceVar(&jobTemplates, "template", nil, "query template (repeatable)")
	jobCreateCmd.Flags().StringVar(&jobUserID, "user", "", "owning user ID")
	jobCreateCmd.Flags().BoolVar(&jobAIQueries, "ai-queries", false, "generate queries with AI")
	jobCreateCmd.Flags().BoolVar(&jobAIAnalysis, "ai-analysis", false, "classify and score companies with AI")
	jobCreateCmd.Flags().BoolVar(&jobSERP, "serp", true, "enable web search")

	jobShowCmd.Flags().BoolVar(&jobShowEvents, "events", false, "include source events")

	jobCmd.AddCommand(jobCreateCmd, jobShowCmd)
	rootCmd.AddCommand(jobCmd)
}
