package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/server"
	"github.com/desertthunder/forro/internal/services"
	"github.com/desertthunder/forro/internal/shared"
	"github.com/desertthunder/forro/internal/ui"
)

// Authenticator runs the authorization-code half of the OAuth2 flow.
type Authenticator interface {
	server.TokenExchanger
	AuthURL(state string) string
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	store       repositories.PairStore
	lookups     *repositories.LookupLog
	db          *sql.DB
	catalog     services.Catalog
	auth        Authenticator
	openBrowser func(string) error
	now         func() time.Time
	logger      *log.Logger
	output      io.Writer
	errOutput   io.Writer
	palette     *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Catalog and Auth are built from the config by [Runner.Configure] when left nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Store       repositories.PairStore
	Lookups     *repositories.LookupLog
	Catalog     services.Catalog
	Auth        Authenticator
	OpenBrowser func(string) error
	Now         func() time.Time
	Logger      *log.Logger
	Output      io.Writer
	ErrOutput   io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		store:       opts.Store,
		lookups:     opts.Lookups,
		catalog:     opts.Catalog,
		auth:        opts.Auth,
		openBrowser: opts.OpenBrowser,
		now:         opts.Now,
		logger:      opts.Logger,
		output:      opts.Output,
		errOutput:   opts.ErrOutput,
		palette:     ui.Styles(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, pairsCommand, playlistCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads .env and the config file named by the root --config flag, applies environment
// overrides and builds the Spotify client. It runs before every command.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(); err != nil {
		return ctx, err
	}

	r.configPath = cmd.String("config")
	config := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		loaded, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		config = loaded
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := config.ApplyEnv(); err != nil {
		return ctx, err
	}
	r.config = config
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))

	if r.catalog == nil && r.auth == nil {
		r.buildSpotify(ctx)
	}
	return ctx, nil
}

// buildSpotify leaves the catalog unset when credentials are missing; commands that need it report that.
func (r *Runner) buildSpotify(ctx context.Context) {
	creds := r.config.Credentials.Spotify
	svc, err := services.NewSpotifyService(creds.Map(), services.WithTokenCallback(r.onTokenRefresh))
	if err != nil {
		r.logger.Debug("spotify client not configured", "error", err)
		return
	}

	if token := creds.Token(); token != nil {
		if err := svc.Authenticate(ctx, token); err != nil {
			r.logger.Debug("stored token rejected", "error", err)
		}
	}
	r.catalog = svc
	r.auth = svc
}

func (r *Runner) onTokenRefresh(token *oauth2.Token) {
	if err := r.persistToken(token); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

// persistToken stores token in the config and writes the config file.
func (r *Runner) persistToken(token *oauth2.Token) error {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}
	return nil
}

// pairStore opens the configured record store on first use and makes sure it is initialized.
func (r *Runner) pairStore(ctx context.Context) (repositories.PairStore, error) {
	if r.store != nil {
		return r.store, nil
	}

	var store repositories.PairStore
	path := r.config.Store.Path()
	opts := []repositories.Option{repositories.WithClock(r.now)}

	switch r.config.Store.Driver {
	case shared.StoreDriverSQLite:
		db, err := shared.NewDatabase(ctx, path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, r.config.Store.MaxOpenConns, 0)
		r.db = db
		r.lookups = repositories.NewLookupLog(db)
		store = repositories.NewSQLiteStore(db, path, opts...)
	default:
		store = repositories.NewCSVStore(path, opts...)
	}

	if err := store.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("record store ready", "driver", r.config.Store.Driver, "path", path)
	r.store = store
	return store, nil
}

// requireCatalog reports missing credentials or a missing token before any pair is touched.
func (r *Runner) requireCatalog() (services.Catalog, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET or [credentials.spotify] in %s",
			shared.ErrMissingCredentials, r.configPath)
	}
	if a, ok := r.catalog.(interface{ Authenticated() bool }); ok && !a.Authenticated() {
		return nil, fmt.Errorf("%w: run 'forro auth' first", shared.ErrNotAuthenticated)
	}
	return r.catalog, nil
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeErr writes to the error stream, ignoring write errors.
func (r *Runner) writeErr(format string, args ...any) {
	fmt.Fprintf(r.errOutput, format, args...)
}

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
