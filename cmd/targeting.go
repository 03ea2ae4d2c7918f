package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	targetingOut      string
	targetingPoolID   string
	targetingPoolName string
)

var targetingCmd = &cobra.Command{
	Use:   "targeting",
	Short: "Work with targeting profiles",
}

var targetingExpandCmd = &cobra.Command{
	Use:   "expand <prompt>...",
	Short: "Turn a free-text brief into a targeting profile",
	Long:  "Expands a brief such as \"dental clinics in Ohio using Shopify\" into a YAML targeting profile. With --pool the profile is also saved on that pool.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" {
			return eris.New("prompt is required")
		}

		profile := initAI().ExpandTargeting(ctx, prompt)

		out, err := yaml.Marshal(profile)
		if err != nil {
			return eris.Wrap(err, "encode targeting")
		}
		if targetingOut != "" {
			if err := os.WriteFile(targetingOut, out, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", targetingOut)
			}
			zap.L().Info("targeting written", zap.String("path", targetingOut))
		} else if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return err
		}

		if targetingPoolID == "" {
			return nil
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pool := &model.Pool{ID: targetingPoolID, Name: targetingPoolName, Targeting: profile}
		if err := st.SavePool(ctx, pool); err != nil {
			return eris.Wrap(err, "save pool")
		}
		zap.L().Info("pool targeting saved", zap.String("pool_id", pool.ID))
		return nil
	},
}

func init() {
	targetingExpandCmd.Flags().StringVarP(&targetingOut, "out", "o", "", "write YAML to this file instead of stdout")
	targetingExpandCmd.Flags().StringVar(&targetingPoolID, "pool", "", "save the profile on this pool")
	targetingExpandCmd.Flags().StringVar(&targetingPoolName, "pool-name", "", "pool display name when saving")

	targetingCmd.AddCommand(targetingExpandCmd)
	rootCmd.AddCommand(targetingCmd)
}
