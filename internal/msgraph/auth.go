package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/worklog/internal/logging"
	"github.com/Tiliavir/worklog/internal/storage"
)

var requiredScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// AuthConfig identifies the Azure app and where its tokens are kept.
type AuthConfig struct {
	TenantID string
	ClientID string
	// TokenPath is the JSON token cache; DefaultTokenPath when empty.
	TokenPath string
}

// DefaultTokenPath returns ~/.wlog/auth/msgraph_tokens.json.
func DefaultTokenPath() (string, error) {
	base, err := storage.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "auth", "msgraph_tokens.json"), nil
}

// oauth2Config returns the oauth2.Config for Microsoft Graph using the
// provided tenant and client IDs.
func oauth2Config(tenantID, clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   requiredScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: msEndpoint(tenantID, "devicecode"),
			TokenURL:      msEndpoint(tenantID, "token"),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// loadToken loads a previously saved token. A missing file yields nil.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", path, err)
	}
	return &tok, nil
}

// saveToken persists a token, replacing the file atomically.
func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Authenticate returns a Graph client for the signed-in user. It uses the
// saved token, refreshes it when expired, or runs the device code flow and
// writes the sign-in instructions to prompt.
func Authenticate(ctx context.Context, ac AuthConfig, prompt io.Writer, log *zap.Logger) (*Client, error) {
	log = logging.OrNop(log).Named("msgraph")
	if ac.TokenPath == "" {
		p, err := DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		ac.TokenPath = p
	}
	cfg := oauth2Config(ac.TenantID, ac.ClientID)

	tok, err := loadToken(ac.TokenPath)
	if err != nil {
		log.Warn("ignoring saved token", zap.Error(err))
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return NewClient(ctx, tok, cfg, ac.TokenPath, log), nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := cfg.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := saveToken(ac.TokenPath, refreshed); err != nil {
				log.Warn("could not save refreshed token", zap.Error(err))
			}
			return NewClient(ctx, refreshed, cfg, ac.TokenPath, log), nil
		}
		log.Info("token refresh failed, re-authenticating", zap.Error(err))
	}

	resp, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(prompt)
	fmt.Fprintln(prompt, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(prompt, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(prompt, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(prompt)

	newTok, err := cfg.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := saveToken(ac.TokenPath, newTok); err != nil {
		log.Warn("could not save token", zap.Error(err))
	}
	return NewClient(ctx, newTok, cfg, ac.TokenPath, log), nil
}
