package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/ui"
)

func newWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch <channel>",
		Short: "Print live events from a push channel",
		Long: fmt.Sprintf(`Print live events from a push channel until interrupted.

Channels: %s.
With --format json, each event is printed as one JSON object per line.`, strings.Join(push.Channels, ", ")),
		Example: `  brckctl watch dashboard
  brckctl watch sim-connectivity --format json
  brckctl watch diagnostics --count 1`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: push.Channels,
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := args[0]
			known := false
			for _, c := range push.Channels {
				known = known || c == channel
			}
			if !known {
				return fmt.Errorf("unknown channel %q (want %s)", channel, strings.Join(push.Channels, ", "))
			}

			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteDashboard); err != nil {
				return err
			}

			ctx := cmd.Context()
			var (
				mu   sync.Mutex
				seen int
				done = make(chan struct{})
				once sync.Once
			)
			dialer := push.NewDialer(a.settings.Appliance.PushBaseURL(), a.store)
			sub, err := dialer.Subscribe(ctx, channel,
				func(msg push.Message) {
					mu.Lock()
					defer mu.Unlock()
					if count > 0 && seen >= count {
						return
					}
					seen++
					printMessage(a, msg)
					if count > 0 && seen >= count {
						once.Do(func() { close(done) })
					}
				},
				func(err error) {
					mu.Lock()
					defer mu.Unlock()
					if !quiet() {
						fmt.Fprintf(a.errw, "%s %s\n", ui.WarningMarker, err)
					}
				},
			)
			if err != nil {
				return failed("Cannot watch "+channel, err)
			}
			defer sub.Unsubscribe()

			if !quiet() {
				a.out.PrintHeader("Watching "+channel, "brckctl watch "+channel,
					ui.Detail{Key: "Push URL", Value: dialer.BaseURL})
			}
			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many events (0 runs until interrupted)")
	return cmd
}

// watchLine is the JSON form of one event.
type watchLine struct {
	Time    time.Time       `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func printMessage(a *appliance, msg push.Message) {
	now := time.Now()
	if outputFormat == formatJSON {
		data, err := json.Marshal(watchLine{Time: now, Channel: msg.Channel, Event: msg.Event, Data: msg.Data})
		if err == nil {
			fmt.Fprintln(a.w, string(data))
		}
		return
	}
	fmt.Fprintf(a.w, "%s  %-12s %s\n", now.Format("15:04:05"), msg.Event, summarize(msg))
}

// summarize renders a one-line description of a push message.
func summarize(msg push.Message) string {
	switch msg.Event {
	case push.EventSystem:
		if s, err := push.DecodeSystem(msg); err == nil {
			return s.Summary()
		}
	case push.EventDiagnostics:
		if d, err := push.DecodeDiagnostics(msg); err == nil {
			return fmt.Sprintf("%d clients, CPU %s", len(d.Clients), firstTemperature(d.CPU))
		}
	case push.EventConnection:
		if ev, err := push.DecodeConnectionEvent(msg); err == nil {
			return ev.Event + ": " + ev.Description
		}
	}
	return string(msg.Data)
}

func firstTemperature(s brckapi.Sensor) string {
	if len(s.Temperature) == 0 {
		return brckapi.TemperatureUnknown
	}
	return s.Temperature[0].Format(false)
}
