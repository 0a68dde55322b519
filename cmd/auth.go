package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/server"
	"github.com/desertthunder/festa/internal/services"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 3 * time.Minute

// loginURL builds the provider's authorize URL for state.
func (r *Runner) loginURL(state string) string {
	conf := &oauth2.Config{
		ClientID:    r.config.Auth.ClientID,
		RedirectURL: r.config.Auth.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: r.config.Auth.AuthorizeURL},
	}
	return conf.AuthCodeURL(state)
}

// AuthLogin opens the provider login page, waits for the redirect on a local
// callback server and exchanges the code for platform tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if r.config.Auth.AuthorizeURL == "" || r.config.Auth.ClientID == "" {
		return fmt.Errorf("%w: auth.authorize_url and auth.client_id must be set", shared.ErrMissingConfig)
	}

	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Auth.CallbackPort
	}

	state := shared.GenerateID()
	authURL := r.loginURL(state)

	exchange := func(ctx context.Context, code string) (*models.Credentials, error) {
		return r.client.ExchangeCode(ctx, r.config.Auth.ExchangePath, code)
	}
	handler := server.NewOAuthHandler(exchange, state)

	ready := func(addr string) {
		r.logger.Info("waiting for login callback", "addr", addr)
		if cmd.Bool("no-browser") {
			r.writePlain("Open this URL to sign in:\n%s\n", authURL)
			return
		}
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "err", err)
			r.writePlain("Open this URL to sign in:\n%s\n", authURL)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	creds, err := server.ListenForCallback(ctx, port, handler, r.logger, ready)
	if err != nil {
		return err
	}
	if err := r.sessions.Save(*creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	r.logger.Info("authentication successful", "role", creds.Role)
	return r.writePlain("✓ Signed in\n")
}

// AuthStatus decodes the stored access token and prints its subject and expiry.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	raw, err := r.sessions.AccessToken()
	if err != nil {
		return r.writePlain("✗ Not signed in\n")
	}

	identity, err := r.sessions.Identity()
	if err != nil {
		r.logger.Warn("failed to read identity", "err", err)
	}

	claims, err := services.ParseClaims(raw)
	if err != nil {
		r.writePlain("✓ Token stored (not a readable JWT)\n")
		return nil
	}

	r.writePlain("✓ Signed in\n")
	if claims.Subject != "" {
		r.writePlain("Subject: %s\n", claims.Subject)
	}
	if identity.VerifyID != "" {
		r.writePlain("Verify ID: %s\n", identity.VerifyID)
	}
	if role, _ := r.sessions.Role(); role != "" {
		r.writePlain("Role: %s\n", role)
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		status := "valid"
		if r.clock.Now().After(exp) {
			status = "expired"
		}
		r.writePlain("Expires: %s (%s)\n", exp.Local().Format(time.RFC1123), status)
	}
	return nil
}

// AuthLogout clears stored credentials.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.sessions.Clear(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	r.logger.Info("credentials cleared")
	return r.writePlain("✓ Signed out\n")
}

// AuthToken stores an access token supplied on the command line.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	token := strings.TrimSpace(cmd.StringArg("access-token"))
	if token == "" {
		return fmt.Errorf("%w: access token", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	creds := models.Credentials{
		AccessToken:  token,
		RefreshToken: cmd.String("refresh"),
		VerifyID:     cmd.String("verify-id"),
	}
	if err := r.sessions.Save(creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return r.writePlain("✓ Token stored\n")
}
