package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxintake/internal/importer"
	"github.com/teemow/inboxintake/internal/instrumentation"
	"github.com/teemow/inboxintake/internal/session"
)

func newImportCmd() *cobra.Command {
	var (
		state      string
		tokenFile  string
		userID     string
		query      string
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import Gmail attachments once",
		Long: `Run one Gmail attachment import and print the report as JSON.

Authorization comes from either:
  --state       a state authorized through the HTTP consent flow (needs the
                redis session store so the CLI sees the server's sessions)
  --token-file  an OAuth2 token JSON file, used together with --user-id`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (state == "") == (tokenFile == "") {
				return fmt.Errorf("exactly one of --state or --token-file is required")
			}
			if tokenFile != "" && userID == "" {
				return fmt.Errorf("--user-id is required with --token-file")
			}

			ctx := cmd.Context()
			var closers []func()
			defer func() {
				for i := len(closers) - 1; i >= 0; i-- {
					closers[i]()
				}
			}()

			comps, err := buildComponents(ctx, cfg, &instrumentation.Metrics{}, func(fn func()) { closers = append(closers, fn) })
			if err != nil {
				return err
			}
			if comps.Importer == nil {
				return fmt.Errorf("gmail import is not configured: set the OAuth client and storage settings")
			}

			if tokenFile != "" {
				state, err = seedSession(ctx, comps.Sessions, tokenFile, userID)
				if err != nil {
					return err
				}
			}

			report, err := comps.Importer.ImportAttachments(ctx, state, query, maxResults)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Authorized session state")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to an OAuth2 token JSON file")
	cmd.Flags().StringVar(&userID, "user-id", "", "User the imported documents belong to (with --token-file)")
	cmd.Flags().StringVar(&query, "query", importer.DefaultQuery, "Gmail search query")
	cmd.Flags().IntVar(&maxResults, "max-results", importer.DefaultMaxResults, "Maximum number of messages to scan")
	return cmd
}

// loadToken reads an OAuth2 token JSON file.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s has neither an access nor a refresh token", path)
	}
	return &tok, nil
}

// seedSession stores the token from path under a fresh state.
func seedSession(ctx context.Context, store session.Store, path, userID string) (string, error) {
	tok, err := loadToken(path)
	if err != nil {
		return "", err
	}
	state := session.NewState()
	if err := store.Put(ctx, state, &session.Session{UserID: userID, Token: tok, CreatedAt: time.Now()}); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return state, nil
}
