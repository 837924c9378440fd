package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/server"
)

var (
	issueTokenHours  int
	issueTokenScopes []string
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <subject>",
	Short: "Issue an API bearer token",
	Long: `Sign a bearer token for the JSON API with JWT_SECRET. The subject names the
client, such as a service or a CI job, and is logged by the server for
extraction and delete requests. --scope limits the token to "extract"
(POST /extract) or "history" (the /extractions routes); without it the
token may call both.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssueToken,
}

func init() {
	issueTokenCmd.Flags().IntVar(&issueTokenHours, "hours", 0, "Token lifetime in hours (default JWT_EXPIRATION_HOURS or 24)")
	issueTokenCmd.Flags().StringSliceVar(&issueTokenScopes, "scope", nil, "Restrict the token to these scopes (extract, history)")
	rootCmd.AddCommand(issueTokenCmd)
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	if issueTokenHours > 0 {
		jwtConfig.ExpirationHours = issueTokenHours
		if err := jwtConfig.Validate(); err != nil {
			return err
		}
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(args[0], issueTokenScopes...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
