package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Wyydra/ya-signal/internal/logging"
	"github.com/Wyydra/ya-signal/internal/probe"
	"github.com/spf13/cobra"
)

var (
	flagURL        string
	flagSecret     string
	flagTimeout    time.Duration
	flagICEServers []string
	flagLoopback   bool
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "probe",
	Short:         "Smoke test a ya-signal deployment with two WebRTC peers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect two peers through the coordinator and open a data channel",
	Long: `Connects "probe-offerer" and "probe-answerer", exchanges offer, answer and
ICE candidates through the coordinator, and waits for a data channel to open
on both ends.

Examples:
  probe run --url ws://localhost:8181/ws --secret s3cret
  probe run --url wss://signal.example.com/ws --secret s3cret --ice-server stun:stun.l.google.com:19302`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSecret == "" {
			flagSecret = os.Getenv("SIGNAL_SHARED_SECRET")
		}
		if flagSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		logging.Setup(flagLogLevel, "console", os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		res, err := probe.Run(ctx, probe.Options{
			URL:        flagURL,
			Secret:     flagSecret,
			ICEServers: flagICEServers,
			Loopback:   flagLoopback,
			Timeout:    flagTimeout,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: data channel open after %s (%d/%d candidates)\n",
			res.Elapsed.Round(time.Millisecond), res.OffererCandidates, res.AnswererCandidates)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&flagURL, "url", "ws://localhost:8181/ws", "coordinator websocket URL")
	runCmd.Flags().StringVar(&flagSecret, "secret", "", "shared secret (defaults to SIGNAL_SHARED_SECRET)")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "give up after this long")
	runCmd.Flags().StringSliceVar(&flagICEServers, "ice-server", nil, "STUN/TURN server URL (repeatable)")
	runCmd.Flags().BoolVar(&flagLoopback, "loopback", false, "gather loopback candidates")
	runCmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "probe failed:", err)
		os.Exit(1)
	}
}
