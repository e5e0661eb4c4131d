package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/auth"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	repo "github.com/Wyydra/ya-signal/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/sfu/livekit"
	handler "github.com/Wyydra/ya-signal/internal/adapter/driving/http"
	"github.com/Wyydra/ya-signal/internal/config"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/Wyydra/ya-signal/internal/core/service"
	"github.com/Wyydra/ya-signal/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ya-signal",
	Short: "WebRTC signaling coordinator",
	Long: `ya-signal relays offers, answers and ICE candidates between peers over
websockets, and optionally brokers LiveKit room tokens.

Every flag can also be set through the environment, for example
SIGNAL_SHARED_SECRET or LIVEKIT_URL. Flags win over the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags(), nil)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		l := logging.Setup("error", "console", os.Stderr)
		l.Error().Err(err).Msg("Failed to start")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	l := logging.Setup(cfg.LogLevel, string(cfg.LogFormat), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	signaling := service.NewSignalingService(
		repo.NewConnectionRegistry(),
		repo.NewNegotiationStore(),
		auth.NewStaticSecret(cfg.SharedSecret),
		hub,
		service.WithNegotiationTTL(cfg.NegotiationTTL),
	)

	var (
		issuer port.TokenIssuer
		rooms  port.RoomLister
	)
	if cfg.LiveKitEnabled() {
		lk := livekit.NewAdapter(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitTokenTTL)
		issuer, rooms = lk, lk
		l.Info().Str("url", cfg.LiveKitURL).Msg("LiveKit broker enabled")
	}
	broker := service.NewBrokerService(issuer, rooms)
	h := handler.NewHandler(signaling, broker, hub, cfg)

	go hub.Run()
	go signaling.RunJanitor(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.NewRouter(),
	}

	errc := make(chan error, 1)
	go func() {
		l.Info().Str("addr", cfg.ListenAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		hub.Stop()
		return err
	case <-ctx.Done():
	}
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
	return nil
}
