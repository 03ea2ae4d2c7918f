package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/agent"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/workflow"
)

var (
	runUserID         string
	runMaxEnrichments int
	runStages         string
	runTemporal       bool
	runWait           bool
	agentMaxCompanies int
	agentMaxIters     int
	agentPrompt       string
)

var serpCmd = &cobra.Command{
	Use:   "serp <job-id>",
	Short: "Search the web for companies matching a job's pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStagesCmd(cmd, args[0], pipeline.Request{
			Stages: []pipeline.Stage{pipeline.StageSERP},
			UserID: runUserID,
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <job-id>",
	Short: "Enrich a job's candidates from their homepages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStagesCmd(cmd, args[0], pipeline.Request{
			Stages:         []pipeline.Stage{pipeline.StageEnrich},
			MaxEnrichments: runMaxEnrichments,
			UserID:         runUserID,
		})
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent <job-id>",
	Short: "Let the model search, visit, and save companies with tools",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStagesCmd(cmd, args[0], pipeline.Request{
			Stages: []pipeline.Stage{pipeline.StageAgent},
			UserID: runUserID,
			Agent:  agentOptions(),
		})
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <job-id>",
	Short: "Run job stages in order (serp,enrich by default)",
	Long:  "Runs the stages named by --stages against a job. With --temporal the run is submitted as a durable workflow instead of running in-process.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stages, err := pipeline.ParseStages(runStages)
		if err != nil {
			return err
		}
		req := pipeline.Request{
			Stages:         stages,
			MaxEnrichments: runMaxEnrichments,
			UserID:         runUserID,
			Agent:          agentOptions(),
		}
		if runTemporal {
			return startWorkflow(cmd, args[0], req)
		}
		return runStagesCmd(cmd, args[0], req)
	},
}

func agentOptions() agent.Options {
	return agent.Options{
		MaxCompanies:  agentMaxCompanies,
		MaxIterations: agentMaxIters,
		Prompt:        agentPrompt,
	}
}

// runStagesCmd runs req in-process and prints the report. Interrupts cancel
// the stage; the job is still marked finished.
func runStagesCmd(cmd *cobra.Command, jobID string, req pipeline.Request) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.Runner.Run(ctx, jobID, req)
	if report != nil {
		if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
			return perr
		}
	}
	return err
}

// startWorkflow submits req to Temporal and optionally waits for the result.
func startWorkflow(cmd *cobra.Command, jobID string, req pipeline.Request) error {
	ctx := cmd.Context()
	if err := cfg.Validate("worker"); err != nil {
		return err
	}

	c, err := dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := workflow.Start(ctx, c, cfg.Temporal.TaskQueue, workflow.Input{JobID: jobID, Request: req})
	if err != nil {
		return err
	}
	zap.L().Info("workflow started",
		zap.String("job_id", jobID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)

	if !runWait {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"job_id":      jobID,
			"workflow_id": run.GetID(),
			"run_id":      run.GetRunID(),
		})
	}

	var report pipeline.Report
	err = run.Get(ctx, &report)
	if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
		return perr
	}
	return err
}

func dialTemporal() (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
}

func init() {
	for _, c := range []*cobra.Command{serpCmd, enrichCmd, agentCmd, pipelineCmd} {
		c.Flags().StringVar(&runUserID, "user", "", "user ID recorded on created rows (default: the job's user)")
	}
	for _, c := range []*cobra.Command{enrichCmd, pipelineCmd} {
		c.Flags().IntVar(&runMaxEnrichments, "max", 0, "max candidates to enrich (default from config)")
	}
	for _, c := range []*cobra.Command{agentCmd, pipelineCmd} {
		c.Flags().IntVar(&agentMaxCompanies, "max-companies", 0, "companies the agent may save (default from pool targeting)")
		c.Flags().IntVar(&agentMaxIters, "max-iterations", 0, "model turns before the agent stops (default from config)")
		c.Flags().StringVar(&agentPrompt, "prompt", "", "extra instructions appended to the agent prompt")
	}
	pipelineCmd.Flags().StringVar(&runStages, "stages", "serp,enrich", "comma-separated stages: serp, enrich, agent")
	pipelineCmd.Flags().BoolVar(&runTemporal, "temporal", false, "submit as a Temporal workflow")
	pipelineCmd.Flags().BoolVar(&runWait, "wait", false, "with --temporal, wait for the workflow result")

	rootCmd.AddCommand(serpCmd, enrichCmd, agentCmd, pipelineCmd)
}
