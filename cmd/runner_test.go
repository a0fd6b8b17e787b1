package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/shared"
	tu "github.com/desertthunder/forro/internal/testing"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// harness runs the CLI end to end against a temporary config and store.
type harness struct {
	runner     *Runner
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	logs       *bytes.Buffer
	catalog    *tu.MockCatalog
	dir        string
	configPath string
	config     *shared.Config
}

type harnessOpt func(*shared.Config, *RunnerOpts)

func withDriver(driver, filename string) harnessOpt {
	return func(c *shared.Config, _ *RunnerOpts) {
		c.Store.Driver = driver
		c.Store.Filename = filename
	}
}

func withoutCatalog() harnessOpt {
	return func(_ *shared.Config, o *RunnerOpts) { o.Catalog = nil }
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REDIRECT_URI", "TARGET_PLAYLIST_ID",
		"DATA_DIR", "TRACK_PAIRS_FILENAME", "FORRO_STORE_DRIVER", "FORRO_LOG_LEVEL", "FORRO_LOOKUP_DELAY_MS",
	} {
		t.Setenv(key, "")
	}
}

func newHarness(t *testing.T, opts ...harnessOpt) *harness {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Store.DataDir = filepath.Join(dir, "data")
	config.Playlist.ID = "playlist123"
	config.Playlist.LookupDelayMS = 0
	config.Log.Level = "debug"

	h := &harness{
		out:        &bytes.Buffer{},
		errOut:     &bytes.Buffer{},
		logs:       &bytes.Buffer{},
		catalog:    tu.NewMockCatalog(),
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
	}

	ropts := RunnerOpts{
		Catalog:   h.catalog,
		Logger:    log.New(h.logs),
		Output:    h.out,
		ErrOutput: h.errOut,
		Now:       func() time.Time { return fixedNow },
		OpenBrowser: func(string) error {
			return errors.New("no browser in tests")
		},
	}
	for _, opt := range opts {
		opt(config, &ropts)
	}
	if ropts.Catalog == nil {
		h.catalog = nil
	}

	if err := shared.SaveConfig(h.configPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	h.config = config
	h.runner = NewRunner(ropts)
	t.Cleanup(func() { h.runner.Close() })
	return h
}

func (h *harness) run(args ...string) error {
	return newApp(h.runner).Run(context.Background(), append([]string{"forro", "--config", h.configPath}, args...))
}

func (h *harness) storePath() string {
	return h.config.Store.Path()
}

func (h *harness) addPair(t *testing.T, ba, bt, oa, ot string) {
	t.Helper()
	if err := h.run("pairs", "add", "--ba", ba, "--bt", bt, "--oa", oa, "--ot", ot); err != nil {
		t.Fatalf("pairs add failed: %v\nstderr: %s", err, h.errOut.String())
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := tu.NewMockCatalog()
			store := repositories.NewCSVStore(filepath.Join(t.TempDir(), "pairs.csv"))

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "custom.toml",
				Store:      store,
				Catalog:    catalog,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "custom.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected default config path, got %s", runner.configPath)
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.errOutput != os.Stderr {
				t.Error("expected errOutput to default to os.Stderr")
			}
			if runner.openBrowser == nil || runner.now == nil {
				t.Error("expected browser opener and clock defaults")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if got, want := output.String(), `{"key":"value"}`+"\n"; got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.NewLimitedWriter(1, &bytes.Buffer{})})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "pairs", "playlist", "tui"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})

	t.Run("exitCode", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{nil, 0},
			{shared.ErrValidation, 1},
			{context.Canceled, 130},
			{fmt.Errorf("wrapped: %w", context.Canceled), 130},
			{errors.New("unexpected"), 1},
		}
		for _, tt := range tests {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		}
	})
}

func TestConfigure(t *testing.T) {
	t.Run("loads the config file and applies env", func(t *testing.T) {
		h := newHarness(t)
		t.Setenv("TARGET_PLAYLIST_ID", "from-env")

		if err := h.run("pairs", "list"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.runner.configPath != h.configPath {
			t.Errorf("configPath = %s", h.runner.configPath)
		}
		if h.runner.config.Playlist.ID != "from-env" {
			t.Errorf("playlist id = %q, want env override", h.runner.config.Playlist.ID)
		}
		if h.runner.config.Store.DataDir != h.config.Store.DataDir {
			t.Errorf("data dir = %q", h.runner.config.Store.DataDir)
		}
	})

	t.Run("missing config file uses defaults", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		tu.MustChdir(t, dir)
		runner := NewRunner(RunnerOpts{Catalog: tu.NewMockCatalog(), Logger: log.New(&bytes.Buffer{}), Output: &bytes.Buffer{}})
		defer runner.Close()

		err := newApp(runner).Run(context.Background(), []string{"forro", "--config", "missing.toml", "pairs", "list"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runner.config.Store.Filename != shared.DefaultConfig().Store.Filename {
			t.Errorf("expected default store filename, got %q", runner.config.Store.Filename)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "data", "track_pairs.csv"))
	})

	t.Run("invalid config file", func(t *testing.T) {
		h := newHarness(t)
		tu.MustWriteFile(t, h.configPath, "[store]\ndriver = \"postgres\"\n")

		if err := h.run("pairs", "list"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("builds the spotify client from credentials", func(t *testing.T) {
		h := newHarness(t, withoutCatalog())
		t.Setenv("SPOTIFY_CLIENT_ID", "id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

		if err := h.run("pairs", "list"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.runner.catalog == nil || h.runner.auth == nil {
			t.Fatal("expected spotify client to be configured")
		}
		if _, err := h.runner.requireCatalog(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated without a stored token, got %v", err)
		}
	})
}

func TestPairStore(t *testing.T) {
	t.Run("csv driver", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config = h.config

		store, err := h.runner.pairStore(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*repositories.CSVStore); !ok {
			t.Errorf("expected CSV store, got %T", store)
		}
		if h.runner.lookups != nil {
			t.Error("csv driver should not open a lookup log")
		}
		tu.AssertFileExists(t, h.storePath())

		again, _ := h.runner.pairStore(context.Background())
		if again != store {
			t.Error("store should be cached")
		}
	})

	t.Run("sqlite driver", func(t *testing.T) {
		h := newHarness(t, withDriver(shared.StoreDriverSQLite, "pairs.db"))
		h.runner.config = h.config

		store, err := h.runner.pairStore(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*repositories.SQLiteStore); !ok {
			t.Errorf("expected SQLite store, got %T", store)
		}
		if h.runner.lookups == nil {
			t.Error("sqlite driver should open a lookup log")
		}
		if err := h.runner.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if err := h.runner.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
	})
}

func TestRequireCatalog(t *testing.T) {
	runner := NewRunner(RunnerOpts{})
	if _, err := runner.requireCatalog(); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}

	runner = NewRunner(RunnerOpts{Catalog: tu.NewMockCatalog()})
	if _, err := runner.requireCatalog(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
