package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileviewer/snes/usb2snes"
	"tileviewer/util"
)

var (
	flagURL   string
	flagName  string
	flagDebug bool
	flagLog   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tileviewer",
	Short: "Super Metroid memory viewer for usb2snes devices",
	Long: `tileviewer talks to a usb2snes WebSocket service (QUsb2Snes or SNI) and reads
Super Metroid's player and level state from the attached console.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		path := ""
		if flagLog {
			path = util.TempLogPath("tileviewer", time.Now())
		}
		if logger, err = util.NewLogger(path, flagDebug); err != nil {
			return
		}
		zap.ReplaceGlobals(logger)
		if path != "" {
			logger.Info("logging to file", zap.String("path", path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = util.FlushLogger()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagURL, "url", util.GetOrDefault("TILEVIEWER_URL", usb2snes.DefaultURL), "usb2snes service URL (QUsb2Snes legacy port is ws://localhost:8080)")
	pf.StringVar(&flagName, "name", util.GetOrDefault("TILEVIEWER_NAME", "SM TileViewer"), "client name announced to the service")
	pf.BoolVar(&flagDebug, "debug", util.IsTruthy(os.Getenv("TILEVIEWER_DEBUG")), "log every protocol message")
	pf.BoolVar(&flagLog, "log-file", false, "also write the log to a file in the temp directory")
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			util.LogPanic(err)
			panic(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
