package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/desertthunder/forro/internal/shared"
)

type fakeAuth struct {
	token *oauth2.Token
	err   error
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://accounts.example/authorize?state=" + state
}

func (f *fakeAuth) Exchange(context.Context, string) (*oauth2.Token, error) {
	return f.token, f.err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// authHarness points the callback server at a free port and answers the browser step by
// calling the callback with the state from the authorization URL.
func authHarness(t *testing.T, auth *fakeAuth, query func(state string) string) *harness {
	t.Helper()
	port := freePort(t)

	return newHarness(t, withoutCatalog(), func(c *shared.Config, o *RunnerOpts) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = port
		c.Credentials.Spotify.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", port)
		o.Auth = auth
		o.OpenBrowser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			callback := fmt.Sprintf("http://127.0.0.1:%d/callback?%s", port, query(u.Query().Get("state")))
			go func() {
				resp, err := http.Get(callback)
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}
	})
}

func TestAuth(t *testing.T) {
	t.Run("saves the token to the config file", func(t *testing.T) {
		auth := &fakeAuth{token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}}
		h := authHarness(t, auth, func(state string) string { return "state=" + state + "&code=abc" })

		if err := h.run("auth", "--timeout", "5s"); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, h.out.String())
		}
		if !strings.Contains(h.out.String(), "Authorization successful") {
			t.Errorf("unexpected output:\n%s", h.out.String())
		}

		saved, err := shared.LoadConfig(h.configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if saved.Credentials.Spotify.AccessToken != "access" || saved.Credentials.Spotify.RefreshToken != "refresh" {
			t.Errorf("token not saved: %+v", saved.Credentials.Spotify)
		}
	})

	t.Run("state mismatch fails", func(t *testing.T) {
		auth := &fakeAuth{token: &oauth2.Token{AccessToken: "access"}}
		h := authHarness(t, auth, func(string) string { return "state=forged&code=abc" })

		if err := h.run("auth", "--timeout", "5s"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		saved, _ := shared.LoadConfig(h.configPath)
		if saved.Credentials.Spotify.AccessToken != "" {
			t.Error("no token should be saved")
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := authHarness(t, &fakeAuth{}, func(string) string { return "" })
		h.runner.openBrowser = func(string) error { return errors.New("no browser") }

		err := h.run("auth", "--timeout", "100ms")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if !strings.Contains(h.out.String(), "https://accounts.example/authorize") {
			t.Errorf("expected the URL to be printed when the browser fails:\n%s", h.out.String())
		}
	})

	t.Run("requires credentials", func(t *testing.T) {
		h := newHarness(t, withoutCatalog())
		h.config.Credentials.Spotify.ClientSecret = ""
		if err := shared.SaveConfig(h.configPath, h.config); err != nil {
			t.Fatal(err)
		}
		if err := h.run("auth"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestRedirectURI(t *testing.T) {
	runner := NewRunner(RunnerOpts{})
	runner.config.Credentials.Spotify.RedirectURI = ""
	runner.config.Server.Host = "127.0.0.1"
	runner.config.Server.Port = 4000

	if got := runner.redirectURI(); got != "http://127.0.0.1:4000/callback" {
		t.Errorf("redirectURI() = %q", got)
	}
}

func TestPersistToken(t *testing.T) {
	h := newHarness(t)
	h.runner.config = h.config
	h.runner.configPath = h.configPath

	if err := h.runner.persistToken(nil); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	h.runner.onTokenRefresh(&oauth2.Token{AccessToken: "refreshed"})
	saved, err := shared.LoadConfig(h.configPath)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if saved.Credentials.Spotify.AccessToken != "refreshed" {
		t.Errorf("refreshed token not saved: %+v", saved.Credentials.Spotify)
	}
}
