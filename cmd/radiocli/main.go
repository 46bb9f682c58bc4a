// Package main provides a command line client for the voxbox server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/osa030/voxbox/internal/api/httpapi"
	"github.com/osa030/voxbox/internal/app/radio"
	"github.com/osa030/voxbox/internal/infra/catalog"
)

var (
	app     = kingpin.New("voxbox-radiocli", "voxbox radio client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Control token").Envar("CONTROL_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("15s").Duration()

	sayCmd  = app.Command("say", "Submit a voice command as text")
	sayText = sayCmd.Arg("text", "What to play").Required().Strings()

	toggleCmd = app.Command("toggle", "Pause or resume playback")
	nextCmd   = app.Command("next", "Skip to the next track")
	prevCmd   = app.Command("prev", "Go back to the previous track")

	seekCmd = app.Command("seek", "Seek to a percentage of the current track")
	seekPct = seekCmd.Arg("percentage", "Position (0-100)").Required().Float64()

	selectCmd     = app.Command("select", "Play an alternative track")
	selectVideoID = selectCmd.Arg("video-id", "Video ID").Required().String()
	selectTitle   = selectCmd.Flag("title", "Track title").String()
	selectArtist  = selectCmd.Flag("artist", "Track artist").String()

	autoCmd     = app.Command("auto", "Enable or disable automatic continuation")
	autoEnabled = autoCmd.Arg("enabled", "on or off").Required().Enum("on", "off")

	stateCmd = app.Command("state", "Show the radio state")

	searchCmd   = app.Command("search", "Query the search proxy")
	searchQuery = searchCmd.Arg("query", "Search text").Required().Strings()
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	c := &client{
		base:  strings.TrimRight(*server, "/"),
		token: *token,
		http:  &http.Client{Timeout: *timeout},
	}
	ctx := context.Background()

	var err error
	switch command {
	case sayCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/commands", map[string]string{"text": strings.Join(*sayText, " ")})
	case toggleCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/playback/toggle", nil)
	case nextCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/playback/next", nil)
	case prevCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/playback/previous", nil)
	case seekCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/playback/seek", map[string]float64{"percentage": *seekPct})
	case selectCmd.FullCommand():
		err = c.post(ctx, http.MethodPost, "/api/queue/select", map[string]any{
			"track": catalog.Item{VideoID: *selectVideoID, Title: *selectTitle, Artist: *selectArtist},
		})
	case autoCmd.FullCommand():
		err = c.post(ctx, http.MethodPut, "/api/queue/autocontinue", map[string]bool{"enabled": *autoEnabled == "on"})
	case stateCmd.FullCommand():
		err = c.state(ctx)
	case searchCmd.FullCommand():
		err = c.search(ctx, strings.Join(*searchQuery, " "))
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

type client struct {
	base  string
	token string
	http  *http.Client
}

// post sends an intent and prints the outcome.
func (c *client) post(ctx context.Context, method, path string, body any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		payload = bytes.NewReader(b)
	}

	if err := c.do(ctx, method, path, payload, nil); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func (c *client) state(ctx context.Context) error {
	var st radio.Status
	if err := c.do(ctx, http.MethodGet, "/api/state", http.NoBody, &st); err != nil {
		return err
	}

	fmt.Printf("Queue:    %s %s\n", st.QueueState, st.Position)
	fmt.Printf("Playback: %s %s\n", st.PlaybackState, st.Progress.Display)
	if st.Current != nil {
		fmt.Printf("Current:  %s - %s\n", st.Current.Artist, st.Current.Title)
	}
	if st.Utterance != "" {
		fmt.Printf("Request:  %q (%d variations)\n", st.Utterance, len(st.Variations))
	}
	fmt.Printf("Auto:     %t\n", st.AutoContinue)
	for i, t := range st.Queue {
		marker := "  "
		if i == st.Cursor {
			marker = "> "
		}
		fmt.Printf("%s%2d. %s - %s [%s]\n", marker, i+1, t.Artist, t.Title, t.ID)
	}
	return nil
}

func (c *client) search(ctx context.Context, query string) error {
	var items []catalog.Item
	if err := c.do(ctx, http.MethodGet, "/search?"+url.Values{"q": {query}}.Encode(), http.NoBody, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No results")
		return nil
	}
	for i, it := range items {
		fmt.Printf("%d. %s - %s (%s) [%s]\n", i+1, it.Artist, it.Title, it.Duration, it.VideoID)
	}
	return nil
}

// do performs a request and decodes a JSON response into out when set.
func (c *client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.http.Timeout+time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(httpapi.ControlTokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return errors.Newf("%s (HTTP %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return errors.Newf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return errors.Newf("server returned HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "failed to parse response")
}
