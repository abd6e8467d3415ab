package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultEnvironment          = "local"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 20 * time.Second
	defaultAuthProvider         = AuthProviderJWT
	defaultRoleClaim            = "role"
	defaultJWKSRefresh          = time.Hour
	defaultSignedURLTTL         = 15 * time.Minute
	defaultMutationsPerMinute   = 60
	defaultMutationBurst        = 20
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Auth provider identifiers accepted in API_AUTH_PROVIDER.
const (
	AuthProviderJWT      = "jwt"
	AuthProviderJWKS     = "jwks"
	AuthProviderFirebase = "firebase"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PubSub      PubSubConfig
	Auth        AuthConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig describes where book covers live and how download links are signed.
type StorageConfig struct {
	CoversBucket string
	SignerKey    string
	SignedURLTTL time.Duration
}

// PubSubConfig names the topic order events are published to. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
	EmulatorHost     string
}

// AuthConfig selects and configures the bearer token verifier.
type AuthConfig struct {
	Provider    string
	JWTSecret   string
	Issuer      string
	Audience    string
	JWKSURL     string
	JWKSRefresh time.Duration
	RoleClaim   string
}

// RateLimitConfig controls per-identity throttling of mutating requests.
type RateLimitConfig struct {
	MutationsPerMinute int
	Burst              int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Auth.JWTSecret") whose secret must resolve to a value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration from defaults, .env overrides, the process
// environment, explicit values and Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	env, err := newEnvSource(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(env.str("API_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:           env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:    env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: env.duration("API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			CoversBucket: env.str("API_STORAGE_COVERS_BUCKET", ""),
			SignerKey:    env.str("API_STORAGE_SIGNER_KEY", ""),
			SignedURLTTL: env.duration("API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		PubSub: PubSubConfig{
			ProjectID:        env.str("API_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: env.str("API_PUBSUB_ORDER_EVENTS_TOPIC", ""),
			EmulatorHost:     env.str("API_PUBSUB_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			Provider:    strings.ToLower(env.str("API_AUTH_PROVIDER", defaultAuthProvider)),
			JWTSecret:   env.str("API_AUTH_JWT_SECRET", ""),
			Issuer:      env.str("API_AUTH_ISSUER", ""),
			Audience:    env.str("API_AUTH_AUDIENCE", ""),
			JWKSURL:     env.str("API_AUTH_JWKS_URL", ""),
			JWKSRefresh: env.duration("API_AUTH_JWKS_REFRESH", defaultJWKSRefresh),
			RoleClaim:   env.str("API_AUTH_ROLE_CLAIM", defaultRoleClaim),
		},
		RateLimits: RateLimitConfig{
			MutationsPerMinute: env.integer("API_RATELIMIT_MUTATIONS_PER_MIN", defaultMutationsPerMinute),
			Burst:              env.integer("API_RATELIMIT_BURST", defaultMutationBurst),
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	resolver := options.secret
	if resolver == nil {
		resolver = unconfiguredResolver
	}
	resolved := make(map[string]string)
	for _, target := range []struct {
		name  string
		field *string
	}{
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
		{"Storage.SignerKey", &cfg.Storage.SignerKey},
	} {
		value, err := resolveSecret(ctx, *target.field, resolver)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validate(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		invalid = append(invalid, "Firestore.ProjectID")
	}
	switch cfg.Auth.Provider {
	case AuthProviderJWT:
		// secret presence is enforced through WithRequiredSecrets
	case AuthProviderJWKS:
		if cfg.Auth.JWKSURL == "" {
			invalid = append(invalid, "Auth.JWKSURL")
		}
	case AuthProviderFirebase:
		if cfg.Firebase.ProjectID == "" {
			invalid = append(invalid, "Firebase.ProjectID")
		}
	default:
		invalid = append(invalid, "Auth.Provider")
	}
	if strings.TrimSpace(cfg.Auth.RoleClaim) == "" {
		invalid = append(invalid, "Auth.RoleClaim")
	}
	if cfg.RateLimits.MutationsPerMinute < 0 {
		invalid = append(invalid, "RateLimits.MutationsPerMinute")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
