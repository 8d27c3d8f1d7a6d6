package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxintake/internal/config"
	"github.com/teemow/inboxintake/internal/session"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "classify", "import", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestApplyServeFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantAddr   string
		wantCORS   []string
		wantMetric string
	}{
		{
			name:       "no flags keep config",
			args:       nil,
			wantAddr:   ":5000",
			wantCORS:   []string{"*"},
			wantMetric: ":9090",
		},
		{
			name:       "flags override config",
			args:       []string{"--http-addr", ":8080", "--cors-origins", "https://a.example,https://b.example", "--metrics-addr", ":9999"},
			wantAddr:   ":8080",
			wantCORS:   []string{"https://a.example", "https://b.example"},
			wantMetric: ":9999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &config.Config{}
			c.HTTP.Addr = ":5000"
			c.HTTP.CORSOrigins = []string{"*"}
			c.HTTP.MetricsAddr = ":9090"

			var httpAddr, metricsAddr string
			var cors []string
			cmd := &cobra.Command{Use: "serve"}
			cmd.Flags().StringVar(&httpAddr, "http-addr", "", "")
			cmd.Flags().StringSliceVar(&cors, "cors-origins", nil, "")
			cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "")
			require.NoError(t, cmd.ParseFlags(tt.args))

			applyServeFlags(cmd, c, httpAddr, cors, metricsAddr)

			assert.Equal(t, tt.wantAddr, c.HTTP.Addr)
			assert.Equal(t, tt.wantCORS, c.HTTP.CORSOrigins)
			assert.Equal(t, tt.wantMetric, c.HTTP.MetricsAddr)
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, "token.json", `{"access_token":"at","refresh_token":"rt","token_type":"Bearer"}`)
		tok, err := loadToken(path)
		require.NoError(t, err)
		assert.Equal(t, "at", tok.AccessToken)
		assert.Equal(t, "rt", tok.RefreshToken)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadToken(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := loadToken(writeFile(t, "token.json", `{`))
		assert.Error(t, err)
	})

	t.Run("no tokens", func(t *testing.T) {
		_, err := loadToken(writeFile(t, "token.json", `{"token_type":"Bearer"}`))
		assert.Error(t, err)
	})
}

func TestSeedSession(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer store.Stop()

	path := writeFile(t, "token.json", `{"access_token":"at","refresh_token":"rt"}`)
	state, err := seedSession(context.Background(), store, path, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	s, err := store.Get(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.True(t, s.Authorized())
	assert.Equal(t, "rt", s.Token.RefreshToken)
}

func TestImportCommandRequiresOneAuthSource(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "neither", args: []string{}},
		{name: "both", args: []string{"--state", "s", "--token-file", "t.json", "--user-id", "u"}},
		{name: "token without user", args: []string{"--token-file", "t.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newImportCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			assert.Error(t, cmd.Execute())
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "inboxintake version")
}
