package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

func loadTestConfig(t *testing.T) {
	t.Helper()
	t.Setenv("LEADGEN_STORE_DRIVER", "memory")
	t.Setenv("LEADGEN_AI_PROVIDER", "none")
	t.Setenv("LEADGEN_ANTHROPIC_KEY", "")
	c, err := config.Load()
	require.NoError(t, err)
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"job", "serp", "enrich", "agent", "pipeline", "targeting",
		"outreach", "dedupe", "export", "migrate", "serve", "worker",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadgen", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestPipelineCommand_Flags(t *testing.T) {
	flag := pipelineCmd.Flags().Lookup("stages")
	require.NotNil(t, flag)
	assert.Equal(t, "serp,enrich", flag.DefValue)

	for _, name := range []string{"max", "max-companies", "max-iterations", "prompt", "temporal", "wait", "user"} {
		assert.NotNil(t, pipelineCmd.Flags().Lookup(name), "pipeline should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, serveCmd.Flags().Lookup("temporal"))
}

func TestJobCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range jobCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["create"])
	assert.True(t, names["show"])

	flag := jobCreateCmd.Flags().Lookup("serp")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}

func TestReadTargeting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targeting.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
industries: [restaurants]
geos: [Austin, TX]
tech_stack: [Shopify]
limits:
  max_companies: 10
`), 0o644))

	p, err := readTargeting(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"restaurants"}, p.Industries)
	assert.Equal(t, []string{"Austin", "TX"}, p.Geos)
	assert.Equal(t, []string{"Shopify"}, p.TechStack)
	assert.Equal(t, 10, p.MaxCompanies())
}

func TestReadTargeting_Errors(t *testing.T) {
	_, err := readTargeting(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("industries: [unclosed"), 0o644))
	_, err = readTargeting(path)
	assert.Error(t, err)
}

func TestDuplicatePairs(t *testing.T) {
	cands := []model.LeadCandidate{
		{Domain: "tacoplace.com", CompanyName: "Taco Place"},
		{Domain: "tacoplace.net", CompanyName: "Taco Place LLC"},
		{Domain: "burgerbarn.com", CompanyName: "Burger Barn"},
		{Domain: "bbarn.io", CompanyName: "Burger Barn"},
		{Domain: "unrelated.org", CompanyName: "Something Else"},
	}

	pairs := duplicatePairs(cands)
	assert.ElementsMatch(t, [][2]int{{0, 1}, {2, 3}}, pairs)
}

func TestDuplicatePairs_ReportsOnce(t *testing.T) {
	// Same label and same name: one pair, not two.
	cands := []model.LeadCandidate{
		{Domain: "acme.com", CompanyName: "Acme"},
		{Domain: "acme.co", CompanyName: "Acme"},
	}
	assert.Equal(t, [][2]int{{0, 1}}, duplicatePairs(cands))
}

func TestRecipient(t *testing.T) {
	r := recipient(
		model.LeadCandidate{Domain: "tacoplace.com", CompanyName: "Taco Place"},
		model.ContactCandidate{FullName: "Ana Ruiz", Title: "Owner", Email: "ana@tacoplace.com"},
	)
	assert.Equal(t, "Ana Ruiz", r.Name)
	assert.Equal(t, "Owner", r.Title)
	assert.Equal(t, "ana@tacoplace.com", r.Email)
	assert.Equal(t, "Taco Place", r.CompanyName)
	assert.Equal(t, "tacoplace.com", r.Domain)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"n": 1}))
	assert.Equal(t, "{\n  \"n\": 1\n}\n", buf.String())
}

func TestInitEnv_MemoryStore(t *testing.T) {
	loadTestConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx)
	require.NoError(t, err)
	defer env.Close()

	assert.False(t, env.AI.Configured())
	assert.Nil(t, env.Runner.Agent, "agent stage needs an anthropic key")

	job, err := env.Runner.Submit(ctx, pipeline.NewJob{
		PoolID:    "pool-1",
		Targeting: &model.TargetingProfile{Industries: []string{"restaurants"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)

	report, err := env.Runner.Run(ctx, job.ID, pipeline.Request{Stages: []pipeline.Stage{pipeline.StageAgent}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
	require.NotNil(t, report)
	assert.Equal(t, model.JobStatusFailed, report.Status)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	loadTestConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	assert.Error(t, err)
}
