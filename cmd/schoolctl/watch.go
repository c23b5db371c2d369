package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// wsURL turns the API base URL into the websocket endpoint, which lives at
// the server root rather than under /api.
func wsURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// formatEvent renders one hub message as a single line.
func formatEvent(raw []byte, now time.Time) string {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
		return fmt.Sprintf("%s  %s", now.Format("15:04:05"), strings.TrimSpace(string(raw)))
	}
	return fmt.Sprintf("%s  %-20s %s", now.Format("15:04:05"), ev.Type, string(ev.Data))
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live attendance, schedule and message events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := viper.GetString("token")
			if token == "" {
				return errors.New("not logged in, run schoolctl login first")
			}
			target, err := wsURL(viper.GetString("server"), token)
			if err != nil {
				return err
			}

			conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), target, nil)
			if err != nil {
				if resp != nil {
					return fmt.Errorf("websocket handshake failed: %s", resp.Status)
				}
				return err
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "Watching for events, press Ctrl+C to stop")
			return readEvents(conn, cmd.OutOrStdout(), cmd.Context().Err)
		},
	}
}

// readEvents prints messages until the connection closes. Closing after
// cancellation is not an error.
func readEvents(conn *websocket.Conn, out io.Writer, cancelled func() error) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if cancelled() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		fmt.Fprintln(out, formatEvent(raw, time.Now()))
	}
}
