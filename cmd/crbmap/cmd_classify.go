package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/guaminsects/crbmap/internal/middleware"
	"github.com/guaminsects/crbmap/internal/symbology"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [value]",
	Short: "Print the damage class of a mean damage value",
	Example: `  crbmap classify 0.5
  crbmap classify 3.2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid damage value %q: %w", args[0], err)
		}

		bin, ok := symbology.Classify(v)
		if !ok {
			return fmt.Errorf("damage value %v is outside the legend", v)
		}

		out, err := json.Marshal(bin)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for triggering rebuilds",
	Long:  `Signs a bearer token with JWT_SECRET for POST /api/v1/runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := middleware.IssueToken(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
