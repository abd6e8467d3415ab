package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/config"
	"github.com/readify/api/internal/platform/observability"
	"github.com/readify/api/internal/repositories"
	"github.com/readify/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderService
	Addresses services.AddressService
	Cart      services.ListService
	Wishlist  services.ListService
	Catalog   services.CatalogService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises the collaborators handed to services.
type Option func(*options)

type options struct {
	events services.OrderEventPublisher
	covers services.CoverURLResolver
	logger *zap.Logger
	meter  metric.Meter
	clock  func() time.Time
	build  services.BuildInfo
}

// WithOrderEvents publishes order lifecycle events through publisher.
func WithOrderEvents(publisher services.OrderEventPublisher) Option {
	return func(o *options) {
		o.events = publisher
	}
}

// WithCoverURLs resolves book cover paths into signed URLs.
func WithCoverURLs(resolver services.CoverURLResolver) Option {
	return func(o *options) {
		o.covers = resolver
	}
}

// WithLogger sets the base logger services derive their event loggers from.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter overrides the meter used for service metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithClock overrides the clock shared by services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBuildInfo reports build metadata through the system service.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.build.Environment == "" {
		o.build.Environment = cfg.Environment
	}
	if o.build.StartedAt.IsZero() {
		o.build.StartedAt = o.clock().UTC()
	}

	svc, err := buildServices(ctx, reg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, o options) (Services, error) {
	var svc Services

	books := reg.Books()
	if books == nil {
		return svc, errors.New("book repository is required")
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Books:  books,
		Covers: o.covers,
		Logger: observability.ServiceLogger(o.logger.Named("catalog")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	if addressRepo := reg.Addresses(); addressRepo != nil {
		addressSvc, err := services.NewAddressService(services.AddressServiceDeps{
			Addresses: addressRepo,
			Clock:     o.clock,
			Logger:    observability.ServiceLogger(o.logger.Named("addresses")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build address service: %w", err)
		}
		svc.Addresses = addressSvc
	}

	if carts := reg.Carts(); carts != nil {
		cartSvc, err := services.NewListService(services.ListServiceDeps{
			Kind:    domain.ListKindCart,
			Lists:   carts,
			Books:   books,
			Catalog: catalogSvc,
			Clock:   o.clock,
			Logger:  observability.ServiceLogger(o.logger.Named("cart")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	if wishlists := reg.Wishlists(); wishlists != nil {
		wishlistSvc, err := services.NewListService(services.ListServiceDeps{
			Kind:    domain.ListKindWishlist,
			Lists:   wishlists,
			Books:   books,
			Catalog: catalogSvc,
			Clock:   o.clock,
			Logger:  observability.ServiceLogger(o.logger.Named("wishlist")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build wishlist service: %w", err)
		}
		svc.Wishlist = wishlistSvc
	}

	ordersRepo := reg.Orders()
	counterRepo := reg.Counters()
	if ordersRepo != nil && counterRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:     ordersRepo,
			Books:      books,
			Addresses:  reg.Addresses(),
			Counters:   counterRepo,
			Catalog:    catalogSvc,
			UnitOfWork: reg,
			Clock:      o.clock,
			Events:     o.events,
			Meter:      o.meter,
			Logger:     observability.ServiceLogger(o.logger.Named("orders")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            o.clock,
			Build:            o.build,
			Critical:         []string{"firestore"},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
