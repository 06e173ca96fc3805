package main

import (
	"fmt"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
)

// tokenCmd mints a bearer token signed with auth.hmac_secret, for local
// development against a running server.
var tokenCmd = &cobra.Command{
	Use:   "token <learner-id>",
	Short: "Issue a development bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		tok, err := auth.NewAuthService(cfg.Auth.HMACSecret).IssueJWT(args[0], role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("role", auth.RoleLearner, "role claim (learner|admin)")
}
