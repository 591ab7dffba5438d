package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const defaultWatchURL = "ws://localhost:8000/ws"

func newWatchCmd(app *App) *cobra.Command {
	var (
		url       string
		pretty    bool
		count     int
		reconnect bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream light-curve and pre-warm events from a running server",
		Example: `  keplerctl watch
  keplerctl watch --url ws://kepler.local:8000/ws --count 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.logger(cmd)
			seen := 0
			for {
				n, err := watchOnce(cmd.Context(), url, cmd.OutOrStdout(), pretty, count-seen)
				seen += n
				if count > 0 && seen >= count {
					return nil
				}
				if cmd.Context().Err() != nil {
					return nil
				}
				if !reconnect {
					return err
				}
				logger.Warn().Err(err).Str("url", url).Msg("disconnected, reconnecting")
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", defaultWatchURL, "websocket endpoint")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many events (0 streams forever)")
	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "redial after a disconnect")
	return cmd
}

// watchOnce prints messages from one connection until it drops, ctx ends or
// limit messages were printed (limit <= 0 means no limit).
func watchOnce(ctx context.Context, url string, w io.Writer, pretty bool, limit int) (int, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	n := 0
	for limit <= 0 || n < limit {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return n, fmt.Errorf("read: %w", err)
		}
		n++

		if !pretty {
			fmt.Fprintln(w, string(msg))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil {
			// not JSON? print raw
			fmt.Fprintln(w, string(msg))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Fprintln(w, string(b))
	}
	return n, nil
}
