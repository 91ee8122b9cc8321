package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandStructure(t *testing.T) {
	cmd := newRootCommand()
	assert.Equal(t, "tempshare", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sweep", "migrate"}, names)

	for _, flag := range []string{"config", "env-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("server:\n  port: 8080\n"), 0o600))
	missing := filepath.Join(dir, "missing.yaml")

	tests := []struct {
		name    string
		args    []string
		path    string
		want    string
		wantErr bool
	}{
		{name: "empty", path: "", want: ""},
		{name: "existing file", args: []string{"--config", existing}, path: existing, want: existing},
		{name: "default missing is ignored", path: missing, want: ""},
		{name: "explicit missing fails", args: []string{"--config", missing}, path: missing, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			var path string
			cmd.Flags().StringVar(&path, "config", "config.yaml", "")
			require.NoError(t, cmd.ParseFlags(tt.args))

			got, err := resolveConfigPath(cmd, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrateAndSweepCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEMPSHARE_DATABASE_PATH", filepath.Join(dir, "files.db"))
	t.Setenv("TEMPSHARE_DATABASE_LOGLEVEL", "silent")
	t.Setenv("TEMPSHARE_STORAGE_LOCAL_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("TEMPSHARE_LOG_LEVEL", "error")

	for _, sub := range []string{"migrate", "sweep"} {
		t.Run(sub, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs([]string{sub, "--config", "", "--env-file", filepath.Join(dir, "none.env")})
			require.NoError(t, cmd.ExecuteContext(context.Background()))
		})
	}

	assert.FileExists(t, filepath.Join(dir, "files.db"))
	assert.DirExists(t, filepath.Join(dir, "uploads"))
}
