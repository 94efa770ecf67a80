package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token [merchant-id]",
	Short: "Mint a merchant access token",
	Long:  `Sign a merchant JWT with the configured secret, for calling /payments when merchant auth is enabled`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Security.JWTSecret == "" {
			return fmt.Errorf("security.jwt_secret is not configured")
		}

		svc := auth.NewService(auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.TokenDuration))
		resp, err := svc.IssueToken(args[0])
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}
