package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codedojo/internal/catalog"
	"codedojo/internal/outcome"
	"codedojo/internal/progress"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCurriculum(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"curriculum.yaml": "kind: curriculum\nschema_version: 1\nname: Go Basics\n",
		"units/01-greeting/unit.yaml": `kind: unit
schema_version: 1
unit_id: greeting
title: Greeting
tests:
  - name: TestGreetName
    hints: [one, two]
  - name: TestGreetEmpty
`,
		"units/02-counter/unit.yaml": `kind: unit
schema_version: 1
unit_id: counter
title: Counter
depends_on: [greeting]
tests:
  - name: TestCountSimple
`,
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workspace = ws
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ws, cfg.Curriculum)
	assert.Equal(t, filepath.Join(ws, progress.DefaultFileName), cfg.ProgressPath)
	assert.Equal(t, []string{"go", "test", "-v", "-count=1", "{package}"}, cfg.Command())
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)

	rc := cfg.RunnerConfig()
	assert.Equal(t, ws, rc.Dir)
	assert.Equal(t, cfg.Command(), rc.Command)
}

func TestValidateDerivesPaths(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workspace = ws
	cfg.Curriculum = "course"
	cfg.Store = StoreSQLite
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(ws, "course"), cfg.Curriculum)
	assert.Equal(t, filepath.Join(ws, ".codedojo", "progress.db"), cfg.ProgressPath)
	assert.Equal(t, filepath.Join(ws, "course"), cfg.RunnerConfig().Dir, "tests run from the curriculum root")

	cfg = DefaultConfig()
	cfg.Workspace = ws
	cfg.ProgressPath = "state/p.json"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(ws, "state", "p.json"), cfg.ProgressPath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"store":     func(c *Config) { c.Store = "redis" },
		"log level": func(c *Config) { c.LogLevel = "loud" },
		"toolchain": func(c *Config) { c.Toolchain = "   " },
		"idle":      func(c *Config) { c.IdleTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workspace = t.TempDir()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigFromViper(t *testing.T) {
	ws := t.TempDir()
	v := viper.New()
	v.Set("workspace", ws)
	v.Set("store", "sqlite")
	v.Set("idle_timeout", "45s")
	v.Set("watch", true)
	v.Set("toolchain", "go test -race -v {package}")

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 45*time.Second, cfg.IdleTimeout)
	assert.True(t, cfg.Watch)
	assert.Equal(t, []string{"go", "test", "-race", "-v", "{package}"}, cfg.Command())
	assert.Equal(t, 300*time.Millisecond, cfg.WatchDebounce)
}

func TestLoadCatalogWrapsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = t.TempDir()
	require.NoError(t, cfg.Validate())
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Workspace, "curriculum.yaml"), []byte("kind: [broken"), 0o644))

	_, err := LoadCatalog(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrMalformed))
}

func TestStatusReadsStoredProgress(t *testing.T) {
	for _, store := range []string{StoreJSON, StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			ctx := context.Background()
			cfg := DefaultConfig()
			cfg.Workspace = t.TempDir()
			cfg.Store = store
			require.NoError(t, cfg.Validate())
			writeCurriculum(t, cfg.Workspace)

			s, err := OpenStore(ctx, cfg)
			require.NoError(t, err)
			snap := progress.NewSnapshot()
			snap.SetRun("greeting", 2, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
			snap.SetTest("greeting", "TestGreetName", progress.TestProgress{Outcome: outcome.Pass(""), Hints: 2})
			snap.SetTest("greeting", "TestGreetEmpty", progress.TestProgress{Outcome: outcome.Pass("")})
			require.NoError(t, s.Save(ctx, snap))
			require.NoError(t, s.Close())

			report, err := Status(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, "Go Basics", report.Curriculum)
			assert.Empty(t, report.Warning)
			require.Len(t, report.Units, 2)

			g := report.Units[0]
			assert.Equal(t, "greeting", g.ID)
			assert.True(t, g.Complete)
			assert.Equal(t, 2, g.Passed)
			assert.Equal(t, 2, g.HintsUsed)
			assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), g.LastRun)

			c := report.Units[1]
			assert.False(t, c.Complete)
			assert.True(t, c.DependenciesComplete)
			assert.Equal(t, 1, c.Total)
		})
	}
}

func TestStatusReportsCorruptProgress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = t.TempDir()
	require.NoError(t, cfg.Validate())
	writeCurriculum(t, cfg.Workspace)
	require.NoError(t, os.WriteFile(cfg.ProgressPath, []byte("not json"), 0o644))

	report, err := Status(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, report.Warning, "corrupt")
	assert.Equal(t, 0, report.Units[0].Passed)
}
