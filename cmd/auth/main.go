// Package main provides a tool that obtains the Spotify refresh token used by
// the spotify search provider.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/voxbox/internal/infra/logger"
)

var (
	app          = kingpin.New("voxbox-auth", "Obtain a Spotify refresh token for the voxbox spotify search provider")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for authorization").Default("5m").Duration()
)

const donePage = `<!DOCTYPE html>
<html>
<head><title>voxbox - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
<h1>Authorization Complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	token, err := authorize(*clientID, *clientSecret, *port, *timeout)
	if err != nil {
		zlog.Fatal().Msgf("Authorization failed: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to config/server.yaml:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
}

// authorize runs the authorization code flow against a local callback server.
// Catalog search needs no user scopes, so none are requested.
func authorize(id, secret string, port int, wait time.Duration) (*oauth2.Token, error) {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(id),
		spotifyauth.WithClientSecret(secret),
	)
	state := uuid.New().String()

	tokens := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("auth: state mismatch: got=%s", st)
			return
		}
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			zlog.Warn().Msgf("auth: failed to get token: %v", err)
			return
		}
		fmt.Fprint(w, donePage)
		select {
		case tokens <- token:
		default:
		}
	})

	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn().Msgf("auth: failed to shutdown callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize voxbox:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	select {
	case token := <-tokens:
		return token, nil
	case err := <-errCh:
		return nil, fmt.Errorf("callback server: %w", err)
	case <-time.After(wait):
		return nil, fmt.Errorf("no authorization within %s", wait)
	}
}
