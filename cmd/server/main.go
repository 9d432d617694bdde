package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-identity-service/auth"
	"github.com/jrsteele09/go-identity-service/credentials"
	"github.com/jrsteele09/go-identity-service/internal/config"
	"github.com/jrsteele09/go-identity-service/internal/logging"
	"github.com/jrsteele09/go-identity-service/internal/metrics"
	"github.com/jrsteele09/go-identity-service/internal/tracing"
	"github.com/jrsteele09/go-identity-service/server"
	"github.com/jrsteele09/go-identity-service/token"
	"github.com/jrsteele09/go-identity-service/users"
	"github.com/rs/zerolog/log"
)

const restartDelay = 1 * time.Second

func main() {
	c, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(c.GetLogLevel(), c.IsDev(), os.Stderr)
	displayAppname(c.GetAppName())

	registry := token.NewInMemoryRegistry()
	metrics.RegisterRevocationGauge(registry.Len)

	for {
		if err := run(c, registry); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(restartDelay)
			continue
		}
		break
	}
	log.Info().Msg("Server stopped")
}

// run serves until a stop signal arrives. The revocation registry outlives a
// restart after a panic so logged-out tokens stay rejected.
func run(c config.Config, registry *token.InMemoryRegistry) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, c.GetAppName(), c.GetOTLPEndpoint())
	if err != nil {
		return fmt.Errorf("tracing.Setup: %w", err)
	}
	defer flushTraces(shutdownTracing, c.GetShutdownTimeout())

	store, err := openUserStore(ctx, c)
	if err != nil {
		return fmt.Errorf("openUserStore: %w", err)
	}
	defer store.Close()

	handler, err := newHandler(c, store.Repo, registry)
	if err != nil {
		return err
	}

	go registry.SweepEvery(ctx, c.GetRevocationSweepInterval(), func(removed int) {
		metrics.RevocationsSwept.Add(float64(removed))
		if removed > 0 {
			log.Debug().Int("removed", removed).Msg("swept expired revocations")
		}
	})

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer, c.GetShutdownTimeout())
}

func newHandler(c config.Config, repo users.UserRepo, registry token.Registry) (http.Handler, error) {
	signer, err := newSigner(c)
	if err != nil {
		return nil, err
	}
	issuer, err := token.NewIssuer(signer,
		token.WithTTL(c.GetAccessTokenTTL()),
		token.WithIssuerName(c.GetTokenIssuer()),
	)
	if err != nil {
		return nil, fmt.Errorf("token.NewIssuer: %w", err)
	}

	hasher := credentials.NewBcryptHasher(
		credentials.WithCost(c.GetBcryptCost()),
		credentials.WithConcurrency(c.GetHashConcurrency()),
	)

	authService, err := auth.NewService(repo, hasher, issuer, registry)
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}
	profiles, err := users.NewProfileService(repo)
	if err != nil {
		return nil, fmt.Errorf("users.NewProfileService: %w", err)
	}

	s, err := server.New(c, server.Services{
		Auth:     authService,
		Profiles: profiles,
		Issuer:   issuer,
		Health:   repo.Ping,
	})
	if err != nil {
		return nil, fmt.Errorf("server.New: %w", err)
	}
	return s.Handler(), nil
}

// newSigner prefers an RSA key file over the shared HMAC secret.
func newSigner(c config.TokenConfig) (token.Signer, error) {
	keyFile := c.GetSigningKeyFile()
	if keyFile == "" {
		signer, err := token.NewHMACSigner(c.GetJWTSecret())
		if err != nil {
			return nil, fmt.Errorf("token.NewHMACSigner: %w", err)
		}
		return signer, nil
	}

	pemData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	keyPair, err := token.LoadRSAKeyPairFromPEM(c.GetSigningKeyID(), pemData)
	if err != nil {
		return nil, fmt.Errorf("token.LoadRSAKeyPairFromPEM: %w", err)
	}
	log.Info().Str("kid", keyPair.KeyID).Msg("signing tokens with RS256")
	return token.NewKeyPairSigner(keyPair)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func flushTraces(shutdownTracing tracing.ShutdownFunc, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
