package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	middleware "github.com/markdave123-py/ragcrawl/internal/api/middlewares"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a tenant bearer token for local development",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenant, _ := cmd.Flags().GetString("tenant")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET not set")
		}
		tok, err := middleware.IssueToken([]byte(cfg.JWTSecret), tenant, ttl)
		if err != nil {
			return err
		}
		cmd.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("tenant", "", "tenant id (required)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(tokenCmd)
}
