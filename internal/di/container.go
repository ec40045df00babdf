package di

import (
	"github.com/RugileVa/TiGets/internal/clock"
	"github.com/RugileVa/TiGets/internal/handler"
	"github.com/RugileVa/TiGets/internal/repository"
	"github.com/RugileVa/TiGets/internal/service"
	"github.com/RugileVa/TiGets/internal/worker"
	"github.com/RugileVa/TiGets/pkg/config"
	"github.com/RugileVa/TiGets/pkg/database"
	"github.com/RugileVa/TiGets/pkg/redis"
)

// Container holds all dependencies for the marketplace
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	Transactor   repository.Transactor
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	TransferRepo repository.TransferRepository
	OutboxRepo   repository.OutboxRepository

	// Services
	TransferService service.TransferService
	TicketService   service.TicketService
	AuthService     service.AuthService

	// Handlers
	HealthHandler *handler.HealthHandler
	TicketHandler *handler.TicketHandler
	AuthHandler   *handler.AuthHandler

	clock  clock.Clock
	config *config.Config
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB *database.PostgresDB
	// Redis is optional. Without it transfer history is read straight from Postgres.
	Redis  *redis.Client
	Clock  clock.Clock
	Config *config.Config
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	c := &Container{
		DB:     cfg.DB,
		Redis:  cfg.Redis,
		clock:  clk,
		config: cfg.Config,
	}

	// Initialize repositories
	pool := c.DB.Pool()
	c.Transactor = repository.NewPostgresTransactor(pool)
	c.TicketRepo = repository.NewPostgresTicketRepository(pool)
	c.UserRepo = repository.NewPostgresUserRepository(pool)
	c.OutboxRepo = repository.NewPostgresOutboxRepository(pool)
	c.TransferRepo = repository.NewPostgresTransferRepository(pool)
	if c.Redis != nil {
		c.TransferRepo = repository.NewCachedTransferRepository(c.TransferRepo, c.Redis, cfg.Config.Redis.TransferTTL)
	}

	// Initialize services
	c.TransferService = service.NewTransferService(c.TransferRepo, clk)
	c.TicketService = service.NewTicketService(
		c.TicketRepo,
		c.UserRepo,
		c.TransferService,
		c.OutboxRepo,
		c.Transactor,
		clk,
		&service.TicketServiceConfig{
			TransferTopic:    cfg.Config.Kafka.TransferTopic,
			OutboxMaxRetries: cfg.Config.Outbox.MaxRetries,
		},
	)
	c.AuthService = service.NewAuthService(c.UserRepo, c.Transactor, clk, &service.AuthServiceConfig{
		JWTSecret:         cfg.Config.JWT.Secret,
		Issuer:            cfg.Config.JWT.Issuer,
		AccessTokenExpiry: cfg.Config.JWT.AccessTokenTTL,
		InitialBalance:    cfg.Config.Market.InitialBalance,
	})

	// Initialize handlers
	checks := map[string]handler.HealthChecker{
		"database": c.DB,
		"redis":    nil,
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.TicketHandler = handler.NewTicketHandler(c.TicketService, c.TransferService)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService)

	return c
}

// NewOutboxWorker builds the transfer event relay on top of the container's
// repositories
func (c *Container) NewOutboxWorker(publisher worker.Publisher) *worker.OutboxWorker {
	oc := c.config.Outbox
	return worker.NewOutboxWorker(c.OutboxRepo, c.Transactor, publisher, c.clock, &worker.OutboxWorkerConfig{
		PollInterval:    oc.PollInterval,
		BatchSize:       oc.BatchSize,
		RetryInterval:   10 * oc.PollInterval,
		CleanupInterval: oc.CleanupInterval,
		Retention:       oc.RetentionPeriod,
	})
}
