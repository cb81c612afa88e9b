package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/fenceorders/cmd/fenceorders/tui"
	"github.com/marshallshelly/fenceorders/internal/config"
	"github.com/marshallshelly/fenceorders/pkg/migration"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("FENCE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateStatus_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "migrate", "status")
	assert.ErrorIs(t, err, config.ErrMissingDatabaseURL)
}

func TestServe_RequiresSecret(t *testing.T) {
	t.Setenv("FENCE_JWT_SECRET", "short")
	_, err := execute(t, "serve", "--db", "postgres://localhost/fence")
	assert.ErrorIs(t, err, config.ErrWeakSecret)
}

func TestSeedAdmin_RequiresCredentials(t *testing.T) {
	_, err := execute(t, "seed-admin", "--email", "")
	assert.EqualError(t, err, "--email and --password are required")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("FENCE_LOG_LEVEL", "warn")
	_, err := execute(t, "migrate", "status", "--log-level", "debug", "--db", "postgres://127.0.0.1:1/fence")
	require.Error(t, err, "no database is listening")
	require.NotNil(t, cfg)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://127.0.0.1:1/fence", cfg.Database.URL)
}

func TestSelectSteps(t *testing.T) {
	all := []migration.Migration{{Version: "0001"}, {Version: "0002"}, {Version: "0003"}}
	records := []migration.MigrationRecord{
		{Version: "0001", Status: migration.StatusApplied},
		{Version: "0002", Status: migration.StatusApplied},
		{Version: "0003", Status: migration.StatusFailed},
	}

	versions := func(ms []migration.Migration) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Version
		}
		return out
	}

	assert.Equal(t, []string{"0003"}, versions(selectSteps(tui.ActionUp, records, all, 0)))
	assert.Equal(t, []string{"0002", "0001"}, versions(selectSteps(tui.ActionDown, records, all, 0)))
	assert.Equal(t, []string{"0002"}, versions(selectSteps(tui.ActionDown, records, all, 1)))
}
