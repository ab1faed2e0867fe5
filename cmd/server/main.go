// server runs the HTTP API and the gRPC server. With DATABASE_URL unset it uses in-memory stores.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	otellog "go.opentelemetry.io/otel/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"interview-analyzer/internal/audit"
	"interview-analyzer/internal/config"
	"interview-analyzer/internal/db"
	healthhandler "interview-analyzer/internal/health/handler"
	identitydomain "interview-analyzer/internal/identity/domain"
	identityservice "interview-analyzer/internal/identity/service"
	"interview-analyzer/internal/identity/verifier"
	"interview-analyzer/internal/logutil"
	"interview-analyzer/internal/security"
	"interview-analyzer/internal/server"
	"interview-analyzer/internal/server/interceptors"
	sessionrepo "interview-analyzer/internal/session/repository"
	sessionservice "interview-analyzer/internal/session/service"
	telemetry "interview-analyzer/internal/telemetry/otel"
	transcriptrepo "interview-analyzer/internal/transcript/repository"
	transcriptservice "interview-analyzer/internal/transcript/service"
	userrepo "interview-analyzer/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logutil.New(os.Stderr, "info").Error(err, "config")
		os.Exit(1)
	}
	logger := logutil.New(os.Stdout, cfg.LogLevel).WithValues("service", cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(err, "server exited")
		os.Exit(1)
	}
}

type stores struct {
	users       identityservice.UserRepo
	sessions    sessionrepo.Repository
	transcripts transcriptrepo.Repository
	pinger      healthhandler.Pinger
}

func openStores(ctx context.Context, cfg *config.Config, logger logr.Logger) (*stores, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set; using in-memory stores")
		return &stores{
			users:       userrepo.NewMemoryRepository(),
			sessions:    sessionrepo.NewMemoryRepository(),
			transcripts: transcriptrepo.NewMemoryRepository(),
		}, func() {}, nil
	}
	database, err := db.OpenWithRetry(ctx, logger, cfg.DatabaseURL, uint(cfg.DBConnectRetries))
	if err != nil {
		return nil, nil, err
	}
	return &stores{
		users:       userrepo.NewPostgresRepository(database),
		sessions:    sessionrepo.NewPostgresRepository(database),
		transcripts: transcriptrepo.NewPostgresRepository(database),
		pinger:      database,
	}, func() { closeDB(database, logger) }, nil
}

func closeDB(database *sql.DB, logger logr.Logger) {
	if err := database.Close(); err != nil {
		logger.Error(err, "failed to close database")
	}
}

func newTokenService(cfg *config.Config) (*security.TokenService, error) {
	if !cfg.UsesAsymmetricSigning() {
		return security.NewHMACTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewKeyPairTokenService(signer, pub, cfg.JWTIssuer, cfg.JWTAudience)
}

// newVerifier also returns the assertion signing algorithm it accepts.
func newVerifier(cfg *config.Config) (*verifier.JWTVerifier, string, error) {
	if !cfg.UsesIdentityPublicKey() {
		v, err := verifier.NewHMACVerifier([]byte(cfg.IdentitySecret), cfg.IdentityIssuer, cfg.IdentityAudience, identitydomain.IdentityProviderDev)
		return v, "HS256", err
	}
	pub, err := security.ParsePublicKey(cfg.IdentityPublicKey)
	if err != nil {
		return nil, "", err
	}
	alg := security.KeyAlg(pub)
	if alg == "" {
		return nil, "", security.ErrInvalidKey
	}
	v, err := verifier.NewPublicKeyVerifier(pub, cfg.IdentityIssuer, cfg.IdentityAudience, identitydomain.IdentityProviderOIDC)
	return v, alg, err
}

func run(ctx context.Context, cfg *config.Config, logger logr.Logger) error {
	providers, err := telemetry.NewProviders(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return logutil.LogAndWrapErr(logger, "failed to create telemetry providers", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Error(err, "telemetry shutdown")
		}
	}()

	st, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return logutil.LogAndWrapErr(logger, "failed to open database", err)
	}
	defer closeStores()

	key, err := security.DeriveVaultKey(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	vault, err := security.NewVault(key, security.Cipher(cfg.VaultCipher))
	if err != nil {
		return err
	}
	tokens, err := newTokenService(cfg)
	if err != nil {
		return logutil.LogAndWrapErr(logger, "failed to configure credential signing", err)
	}
	v, assertionAlg, err := newVerifier(cfg)
	if err != nil {
		return logutil.LogAndWrapErr(logger, "failed to configure identity verification", err)
	}
	logger.Info("identity verification configured", "issuer", cfg.IdentityIssuer, "alg", assertionAlg)

	var lp otellog.LoggerProvider
	if providers.LoggerProvider != nil {
		lp = providers.LoggerProvider
	}
	auditLogger := audit.NewLogger(lp, interceptors.ClientIP)

	store := sessionservice.NewStore(st.sessions, cfg.SessionSecretBytes, logger)
	auth := identityservice.NewAuthService(v, st.users, store, tokens, auditLogger, identityservice.Options{
		SessionTTL:     cfg.SessionTTL(),
		RenewThreshold: cfg.RenewThreshold(),
	}, logger)
	transcripts := transcriptservice.NewService(st.transcripts, vault, logger)

	registry := server.NewRegistry()
	janitor := sessionservice.NewJanitor(auth, cfg.CleanupInterval(), logger).
		OnRun(server.NewCleanupMetrics(registry))
	go janitor.Run(ctx)

	checker := healthhandler.NewChecker(st.pinger, logger)
	grpcHealth := health.NewServer()
	go checker.Watch(ctx, grpcHealth, 10*time.Second)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Auth:        auth,
			Transcripts: transcripts,
			Health:      checker,
			Registry:    registry,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "signing", tokens.Algorithm(), "cipher", cfg.VaultCipher)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return logutil.LogAndWrapErr(logger, "failed to listen", err, "addr", cfg.GRPCAddr)
		}
		grpcSrv = server.NewGRPCServer(server.GRPCDeps{
			Auth:       auth,
			Health:     grpcHealth,
			Logger:     logger,
			Reflection: cfg.Env != "production",
		})
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	grpcHealth.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Error(err, "HTTP shutdown")
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("server stopped")
	return nil
}
