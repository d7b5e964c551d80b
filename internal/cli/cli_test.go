package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/automata/internal/config"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/testutils"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toggleJSON = `{
  "type": "dfa",
  "states": ["q0", "q1"],
  "alphabet": ["a"],
  "start_state": "q0",
  "accept_states": ["q1"],
  "transitions": {"q0,a": "q1", "q1,a": "q0"}
}`

const toggleYAML = `type: nfa
states: q0,q1
alphabet: a
start_state: q0
accept_states: q1
transitions:
  q0:
    a: [q1]
`

func TestLayered(t *testing.T) {
	ctx := context.Background()
	override := domain.CatalogEntry{Name: "even-zeros", Title: "Local override"}
	extra := domain.CatalogEntry{Name: "zzz", Title: "Extra"}
	catalog := Layered(memory.NewCatalog(override, extra), memory.Builtin())

	entries, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, len(memory.BuiltinNames())+1)
	assert.Equal(t, "zzz", entries[len(entries)-1].Name)

	entry, err := catalog.Get(ctx, "even-zeros")
	require.NoError(t, err)
	assert.Equal(t, "Local override", entry.Title)

	entry, err = catalog.Get(ctx, "contains-11")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeNFA, entry.Definition.Mode)

	_, err = catalog.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestLoadDefinition(t *testing.T) {
	ctx := context.Background()
	catalog := memory.Builtin()

	path := filepath.Join(t.TempDir(), "toggle.json")
	require.NoError(t, os.WriteFile(path, []byte(toggleJSON), 0644))

	t.Run("json file", func(t *testing.T) {
		def, samples, err := LoadDefinition(ctx, catalog, Source{File: path}, nil)
		require.NoError(t, err)
		assert.Nil(t, samples)
		assert.Equal(t, domain.ModeDFA, def.Mode)
		assert.Equal(t, "q0,q1", def.States)
		assert.Contains(t, def.Transitions, "q0,a,q1")
	})

	t.Run("yaml on stdin", func(t *testing.T) {
		def, _, err := LoadDefinition(ctx, catalog, Source{File: "-"}, strings.NewReader(toggleYAML))
		require.NoError(t, err)
		assert.Equal(t, domain.ModeNFA, def.Mode)
		assert.Equal(t, "q0,a,q1", def.Transitions)
	})

	t.Run("catalog entry", func(t *testing.T) {
		def, samples, err := LoadDefinition(ctx, catalog, Source{Entry: "ending-01"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "q0,q1,q2", def.States)
		assert.NotEmpty(t, samples)
	})

	t.Run("mode override", func(t *testing.T) {
		def, _, err := LoadDefinition(ctx, catalog, Source{Entry: "ending-01", Mode: "nfa"}, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeNFA, def.Mode)

		_, _, err = LoadDefinition(ctx, catalog, Source{Entry: "ending-01", Mode: "pda"}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})

	t.Run("no source", func(t *testing.T) {
		_, _, err := LoadDefinition(ctx, catalog, Source{}, nil)
		assert.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadDefinition(ctx, catalog, Source{File: filepath.Join(t.TempDir(), "nope.json")}, nil)
		assert.Error(t, err)
	})
}

func ending01(t *testing.T) domain.Definition {
	t.Helper()
	entry, err := memory.Builtin().Get(context.Background(), "ending-01")
	require.NoError(t, err)
	return entry.Definition
}

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	app, err := Build(config.Default(), logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Registry)
	require.NotNil(t, app.Gatherer())
	require.NoError(t, app.Ping(ctx))

	res, err := app.Engine.Process(ctx, ending01(t), "", "10")
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	count, err := testutil.GatherAndCount(app.Registry, "automata_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuild_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, app.Registry)
	assert.Nil(t, app.Gatherer())
}

func TestBuild_FileStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Dir = t.TempDir()

	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)

	_, err = app.Sessions.Start(ctx, "on-disk", ending01(t), "", "10")
	require.NoError(t, err)

	files, err := os.ReadDir(cfg.Store.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestBuild_EncryptedFileStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Dir = t.TempDir()
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)

	_, err = app.Sessions.Start(ctx, "sealed", ending01(t), "", "10")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Dir, "sealed.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sealed"`)
	assert.NotContains(t, string(raw), "q0,0", "transitions are not stored in the clear")

	sess, err := app.Sessions.Forward(ctx, "sealed")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Simulation.Position)
}

func TestBuild_RedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()

	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()
	require.NoError(t, app.Ping(ctx))

	sess, err := app.Sessions.Start(ctx, "shared", ending01(t), "", "1")
	require.NoError(t, err)
	_, err = app.Sessions.Forward(ctx, sess.ID)
	require.NoError(t, err)

	ids, err := app.Sessions.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "shared")

	history, err := app.Engine.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1, "finished session run is recorded in redis")
}

func TestBuild_CatalogDir(t *testing.T) {
	ctx := context.Background()
	dir := testutils.CatalogDir(t, map[string]string{"toggle.json": `{
  "title": "Odd number of a",
  "states": "q0,q1",
  "alphabet": "a",
  "start_state": "q0",
  "accept_states": "q1",
  "transitions": ["q0,a,q1", "q1,a,q0"]
}`})

	cfg := config.Default()
	cfg.Catalog.Dir = dir
	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.Catalog)

	entry, err := app.Engine.Catalog().Get(ctx, "toggle")
	require.NoError(t, err)
	assert.Equal(t, "Odd number of a", entry.Title)

	_, err = app.Engine.Catalog().Get(ctx, "ending-01")
	assert.NoError(t, err, "built-in entries stay available")
}

func TestBuild_BadBackendURL(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = "ftp://example.com"
	_, err := Build(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestRunSteps(t *testing.T) {
	ctx := context.Background()
	app, err := Build(config.Default(), logging.NewNop())
	require.NoError(t, err)

	t.Run("local json", func(t *testing.T) {
		var out bytes.Buffer
		sim, err := RunSteps(ctx, app, StepOptions{
			Definition: ending01(t),
			Input:      "10",
			JSON:       true,
			In:         strings.NewReader("n\nn\n"),
			Out:        &out,
		})
		require.NoError(t, err)
		assert.True(t, sim.Finished)
		assert.True(t, sim.Accepted)
		assert.Equal(t, 3, strings.Count(out.String(), `"type":"frame"`))
	})

	t.Run("session resume", func(t *testing.T) {
		var out bytes.Buffer
		sim, err := RunSteps(ctx, app, StepOptions{
			Definition: ending01(t),
			Input:      "10",
			SessionID:  "cli",
			Plain:      true,
			In:         strings.NewReader("n\n"),
			Out:        &out,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, sim.Position)

		sim, err = RunSteps(ctx, app, StepOptions{
			SessionID: "cli",
			Resume:    true,
			Plain:     true,
			In:        strings.NewReader("n\n"),
			Out:       &out,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, sim.Position)
		assert.True(t, sim.Accepted)
		assert.Contains(t, out.String(), "ACCEPTED")
	})
}
