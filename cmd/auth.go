package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/server"
	"github.com/desertthunder/forro/internal/shared"
)

// Auth performs the OAuth2 authorization-code flow for Spotify.
//
// A local server receives the callback on the configured host and port, which must match the
// redirect URI registered with Spotify. The token is written back to the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET or [credentials.spotify] in %s",
			shared.ErrMissingCredentials, r.configPath)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler, err := server.NewOAuthHandler(r.auth, r.redirectURI(), state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	authURL := r.auth.AuthURL(state)
	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	r.logger.Info("starting OAuth callback server", "addr", addr)

	result, err := server.WaitForCallback(ctx, addr, handler, r.logger, func(string) {
		if cmd.Bool("no-browser") {
			r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
		} else {
			r.writePlain("→ Opening browser for Spotify authorization...\n")
			if err := r.openBrowser(authURL); err != nil {
				r.logger.Warn("failed to open browser automatically", "error", err)
				r.writePlain("%s Could not open browser automatically.\n", r.palette.Warn("⚠"))
				r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
			}
		}
		r.writePlain("→ Waiting for authorization (%s timeout)...\n", cmd.Duration("timeout"))
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if result.Token == nil {
		return fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	if err := r.persistToken(result.Token); err != nil {
		return err
	}

	r.writePlain("\n%s Authorization successful\n", r.palette.OK("✓"))
	r.writePlain("%s Tokens saved to %s\n", r.palette.OK("✓"), r.configPath)
	return nil
}

func (r *Runner) redirectURI() string {
	if uri := r.config.Credentials.Spotify.RedirectURI; uri != "" {
		return uri
	}
	return fmt.Sprintf("http://%s/callback", net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port)))
}
