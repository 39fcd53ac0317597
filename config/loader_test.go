package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Formation.CapabilityMatchThreshold)
	assert.Equal(t, "COMPROMISE", cfg.Negotiation.DefaultStrategy)
	assert.Equal(t, 10, cfg.Pool.CoreWorkers)
	assert.Equal(t, 50, cfg.Pool.MaxWorkers)
	assert.Equal(t, 100, cfg.Pool.QueueSize)
	assert.Equal(t, 300*time.Second, cfg.Coordinator.SubtaskTimeout)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
formation:
  capability_match_threshold: 0.6
  performance_weight: 0.5
negotiation:
  default_strategy: VOTING
coordinator:
  subtask_timeout: 30s
`)
	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Formation.CapabilityMatchThreshold)
	assert.Equal(t, 0.4, cfg.Formation.SpecializationWeight, "untouched field keeps its default")
	assert.Equal(t, "VOTING", cfg.Negotiation.DefaultStrategy)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.SubtaskTimeout)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
formation:
  capability_match_threshold: 0.6
`)
	t.Setenv("TEAMFLOW_FORMATION_CAPABILITY_MATCH_THRESHOLD", "0.9")
	t.Setenv("TEAMFLOW_COORDINATOR_SUBTASK_TIMEOUT", "45s")
	t.Setenv("TEAMFLOW_LOG_OUTPUT_PATHS", "stdout, /var/log/teamflow.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Formation.CapabilityMatchThreshold, "env wins over file")
	assert.Equal(t, 45*time.Second, cfg.Coordinator.SubtaskTimeout)
	assert.Equal(t, []string{"stdout", "/var/log/teamflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_MissingFileFallsThrough(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/teamflow.yaml").Load()
	require.NoError(t, err, "a missing file is not an error")
	assert.Equal(t, 0.75, cfg.Formation.CapabilityMatchThreshold)
}

func TestLoader_ValidationRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"threshold out of range", "formation:\n  capability_match_threshold: 1.5\n", "capability_match_threshold"},
		{"unknown strategy", "negotiation:\n  default_strategy: HAGGLE\n", "default_strategy"},
		{"inverted pool bounds", "pool:\n  core_workers: 50\n  max_workers: 10\n", "pool bounds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			_, err := NewLoader().WithConfigPath(path).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReloader_SwapsOnChange(t *testing.T) {
	path := writeConfig(t, "formation:\n  capability_match_threshold: 0.6\n")
	cfg := MustLoad(path)

	r := NewReloader(path, cfg, time.Second, zap.NewNop())
	var gotOld, gotNew *Config
	r.OnReload(func(old, next *Config) { gotOld, gotNew = old, next })

	// Push the mtime forward so the poll sees a change.
	require.NoError(t, os.WriteFile(path, []byte("formation:\n  capability_match_threshold: 0.8\n"), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	r.poll()

	assert.Equal(t, 0.8, r.Snapshot().Formation.CapabilityMatchThreshold)
	require.NotNil(t, gotOld)
	require.NotNil(t, gotNew)
	assert.Equal(t, 0.6, gotOld.Formation.CapabilityMatchThreshold)
	assert.Equal(t, 0.8, gotNew.Formation.CapabilityMatchThreshold)
}

func TestReloader_KeepsPreviousOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "formation:\n  capability_match_threshold: 0.6\n")
	cfg := MustLoad(path)
	r := NewReloader(path, cfg, time.Second, zap.NewNop())

	require.NoError(t, os.WriteFile(path, []byte("formation:\n  capability_match_threshold: 9.9\n"), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	r.poll()

	assert.Equal(t, 0.6, r.Snapshot().Formation.CapabilityMatchThreshold,
		"invalid file must not apply")
}
