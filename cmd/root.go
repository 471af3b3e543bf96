package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maqua/member-lookup/internal/config"
	"github.com/maqua/member-lookup/internal/profile"
	"github.com/maqua/member-lookup/internal/resilience"
	"github.com/maqua/member-lookup/pkg/yonbip"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "member-lookup",
	Short: "Member profile lookup over the YonBIP CRM gateway",
	Long:  "Resolves a customer code, phone, or name against the CRM, then assembles service history, next maintenance date, payment details, and subscription plans into a single profile.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newGatewayClient builds the CRM client from config, layering on rate
// limiting and retries when enabled.
func newGatewayClient() yonbip.Client {
	tokens := yonbip.NewTokenService(cfg.CRM.TokenConfig())

	var opts []yonbip.Option
	if cfg.CRM.RateLimitRPS > 0 {
		opts = append(opts, yonbip.WithRateLimit(cfg.CRM.RateLimitRPS))
	}

	client := yonbip.NewClient(cfg.CRM.ClientConfig(), tokens, opts...)

	if cfg.CRM.MaxAttempts > 1 {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.CRM.MaxAttempts
		client = resilience.WrapClient(client, retry)
	}

	return client
}

func newProfileBuilder() *profile.Builder {
	return profile.New(newGatewayClient(), profile.Options{
		PageSize:             cfg.Lookup.PageSize,
		TaskPageSize:         cfg.Lookup.TaskPageSize,
		OwnerKeyword:         cfg.Lookup.OwnerKeyword,
		TaskGapDays:          cfg.Lookup.TaskGapDays,
		OpportunityDetailURL: cfg.CRM.OpportunityDetailURL,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
