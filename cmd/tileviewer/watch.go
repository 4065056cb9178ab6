package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileviewer/engine"
	"tileviewer/util"
)

var (
	flagInterval     time.Duration
	flagPollInterval time.Duration
	flagRecord       string
	flagClearReady   bool
)

func formatSnapshot(s engine.Snapshot) string {
	if !s.Ready {
		return fmt.Sprintf("[%s] not ready (%s)", s.Stage, s.LastError)
	}
	return fmt.Sprintf(
		"[%s] map=%02x gs=%02x door=%04x player=(%d,%d) camera=(%d,%d) radius=(%d,%d) width=%d level=%s iter=%d err=%s",
		s.Stage,
		s.MapID,
		s.GameState,
		s.DoorState,
		s.Player.X, s.Player.Y,
		s.Camera.X, s.Camera.Y,
		s.Radius.X, s.Radius.Y,
		s.Width,
		humanize.Bytes(uint64(len(s.MapData))),
		s.Iteration,
		s.LastError,
	)
}

// openRecording opens path for appending so several watch sessions can share one recording.
func openRecording(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "connect, poll Super Metroid state and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if flagInterval <= 0 {
			return fmt.Errorf("--interval must be positive, got %v", flagInterval)
		}
		if flagPollInterval < 0 {
			return fmt.Errorf("--poll-interval must not be negative, got %v", flagPollInterval)
		}

		cfg := engine.DefaultConfig()
		cfg.URL = flagURL
		cfg.ClientName = flagName
		cfg.Device = flagDevice
		cfg.PollInterval = flagPollInterval
		cfg.ClearReadyOnReconnect = flagClearReady

		var rec *engine.Recorder
		if flagRecord != "" {
			var f *os.File
			if f, err = openRecording(flagRecord); err != nil {
				return
			}
			w := bufio.NewWriter(f)
			defer func() {
				if ferr := w.Flush(); err == nil {
					err = ferr
				}
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()
			rec = engine.NewRecorder(w)
		}

		c := engine.NewController(cfg, nil, engine.NewState(), logger.Named("engine"))

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					util.LogPanic(p)
					panic(p)
				}
			}()
			done <- c.Run(ctx)
		}()

		t := time.NewTicker(flagInterval)
		defer t.Stop()
		for {
			select {
			case err = <-done:
				if rec != nil {
					logger.Info("recorded", zap.Int("snapshots", rec.Count()), zap.String("path", flagRecord))
				}
				if errors.Is(err, context.Canceled) {
					err = nil
				}
				return
			case <-t.C:
				s := c.State().Snapshot()
				fmt.Println(formatSnapshot(s))
				if rec != nil && s.Ready {
					if err = rec.Record(s); err != nil {
						cancel()
						<-done
						return
					}
				}
			}
		}
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "print the snapshots of a recording made with watch --record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		n := 0
		err = engine.ReadRecording(bufio.NewReader(f), func(s engine.Snapshot) error {
			n++
			fmt.Printf("%s %s\n", s.UpdatedAt.Format(time.RFC3339Nano), formatSnapshot(s))
			return cmd.Context().Err()
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d snapshots\n", n)
		return nil
	},
}

func init() {
	f := watchCmd.Flags()
	f.DurationVar(&flagInterval, "interval", 500*time.Millisecond, "how often to print the current state")
	f.DurationVar(&flagPollInterval, "poll-interval", 0, "delay between device polls")
	f.StringVar(&flagRecord, "record", "", "append printed snapshots to this msgpack file")
	f.BoolVar(&flagClearReady, "clear-ready", util.IsTruthy(os.Getenv("TILEVIEWER_CLEAR_READY")), "clear readiness whenever the connection is restarted")

	rootCmd.AddCommand(watchCmd, replayCmd)
}
