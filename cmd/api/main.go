package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/readify/api/internal/di"
	"github.com/readify/api/internal/handlers"
	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/platform/config"
	pfirestore "github.com/readify/api/internal/platform/firestore"
	"github.com/readify/api/internal/platform/idempotency"
	"github.com/readify/api/internal/platform/jobs"
	"github.com/readify/api/internal/platform/observability"
	"github.com/readify/api/internal/platform/secrets"
	platformstorage "github.com/readify/api/internal/platform/storage"
	"github.com/readify/api/internal/repositories"
	firestoreRepo "github.com/readify/api/internal/repositories/firestore"
	"github.com/readify/api/internal/services"
)

const pubsubEmulatorEnv = "PUBSUB_EMULATOR_HOST"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	var (
		pubsubClient *pubsub.Client
		orderTopic   *pubsub.Topic
	)
	if topicID := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); topicID != "" {
		pubsubClient, err = newPubSubClient(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		orderTopic = pubsubClient.Topic(topicID)
		defer func() {
			orderTopic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	healthRepo, err := newHealthRepository(firestoreClient, fetcher, orderTopic)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLogger(baseLogger.Named("services")),
		di.WithMeter(otel.GetMeterProvider().Meter("github.com/readify/api/services")),
		di.WithBuildInfo(buildInfo),
	}
	if orderTopic != nil {
		publisher, err := jobs.NewPubSubOrderEventPublisher(orderTopic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		containerOpts = append(containerOpts, di.WithOrderEvents(publisher))
	}
	if bucket := strings.TrimSpace(cfg.Storage.CoversBucket); bucket != "" {
		covers, err := newCoverURLs(cfg)
		if err != nil {
			logger.Fatal("failed to initialise cover url signer", zap.Error(err))
		}
		containerOpts = append(containerOpts, di.WithCoverURLs(covers))
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	idempotencyLogger := observability.NewPrintfAdapter(logger.Named("idempotency"))
	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(idempotencyLogger),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		idempotency.RunCleanup(cleanupCtx, idempotencyStore, cfg.Idempotency.CleanupInterval,
			cfg.Idempotency.CleanupBatchSize, time.Now, idempotencyLogger)
	}()

	verifier, err := newTokenVerifier(ctx, cfg, logger.Named("auth"))
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier,
		auth.WithMetrics(observability.NewAuthMetrics(otel.GetMeterProvider())),
		auth.WithMiddlewareLogger(observability.NewPrintfAdapter(logger.Named("auth"))),
		auth.WithVerifierKind(cfg.Auth.Provider),
	)

	limiter := handlers.NewRateLimiter(cfg.RateLimits.MutationsPerMinute, cfg.RateLimits.Burst, time.Now)
	handlerOpts := []handlers.HandlerOption{
		handlers.WithMutationMiddlewares(limiter.Middleware()),
		handlers.WithIdempotency(idempotencyMiddleware),
	}

	svc := container.Services
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, handlerOpts...)
	addressHandlers := handlers.NewAddressHandlers(authenticator, svc.Addresses, handlerOpts...)
	cartHandlers := handlers.NewListHandlers(authenticator, svc.Cart, handlerOpts...)
	wishlistHandlers := handlers.NewListHandlers(authenticator, svc.Wishlist, handlerOpts...)

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if svc.System != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(svc.System))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAddressRoutes(addressHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithWishlistRoutes(wishlistHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("readify api listening", zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client, fetcher *secrets.Fetcher, topic *pubsub.Topic) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 3)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				if errors.Is(err, secrets.ErrSecretNotFound) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s not found", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func newTokenVerifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.TokenVerifier, error) {
	printf := observability.NewPrintfAdapter(logger)
	jwtOpts := []auth.JWTOption{
		auth.WithRoleClaim(cfg.Auth.RoleClaim),
		auth.WithLogger(printf),
	}
	if issuer := strings.TrimSpace(cfg.Auth.Issuer); issuer != "" {
		jwtOpts = append(jwtOpts, auth.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Auth.Audience); audience != "" {
		jwtOpts = append(jwtOpts, auth.WithAudience(audience))
	}

	switch cfg.Auth.Provider {
	case config.AuthProviderJWKS:
		cache := auth.NewJWKSCache(cfg.Auth.JWKSURL,
			auth.WithJWKSRefreshInterval(cfg.Auth.JWKSRefresh),
			auth.WithJWKSLogger(printf),
		)
		verifier, err := auth.NewJWKSVerifier(cache, jwtOpts...)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case config.AuthProviderFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, auth.WithFirebaseRoleClaim(cfg.Auth.RoleClaim))
		if err != nil {
			return nil, err
		}
		return verifier, nil
	default:
		verifier, err := auth.NewHMACVerifier([]byte(cfg.Auth.JWTSecret), jwtOpts...)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	}
}

func newPubSubClient(ctx context.Context, cfg config.Config) (*pubsub.Client, error) {
	// the client library only honours the emulator through the environment
	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" && os.Getenv(pubsubEmulatorEnv) == "" {
		_ = os.Setenv(pubsubEmulatorEnv, host)
	}
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" && cfg.PubSub.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	return pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
}

func newCoverURLs(cfg config.Config) (*platformstorage.CoverURLs, error) {
	signerKey := strings.TrimSpace(cfg.Storage.SignerKey)
	if signerKey == "" {
		return nil, errors.New("storage signer key is required when a covers bucket is configured")
	}
	signer, err := platformstorage.NewKeySigner([]byte(signerKey))
	if err != nil {
		return nil, fmt.Errorf("parse storage signer key: %w", err)
	}
	return platformstorage.NewCoverURLs(signer, cfg.Storage.CoversBucket,
		platformstorage.WithTTL(cfg.Storage.SignedURLTTL))
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve to a non-empty value for the
// configured auth provider and storage setup.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	provider := strings.ToLower(strings.TrimSpace(env["API_AUTH_PROVIDER"]))
	if provider == "" || provider == config.AuthProviderJWT {
		required = append(required, "Auth.JWTSecret")
	}
	if strings.TrimSpace(env["API_STORAGE_COVERS_BUCKET"]) != "" {
		required = append(required, "Storage.SignerKey")
	}
	return required
}
