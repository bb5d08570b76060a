package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/vaidashi/restaurant-pos/internal/checkout"
	"github.com/vaidashi/restaurant-pos/internal/config"
	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/internal/handlers"
	"github.com/vaidashi/restaurant-pos/internal/inventory"
	"github.com/vaidashi/restaurant-pos/internal/kitchen"
	"github.com/vaidashi/restaurant-pos/internal/ledger"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
	"github.com/vaidashi/restaurant-pos/internal/outbox"
	"github.com/vaidashi/restaurant-pos/internal/realtime"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	"github.com/vaidashi/restaurant-pos/internal/shift"
	"github.com/vaidashi/restaurant-pos/pkg/circuitbreaker"
	"github.com/vaidashi/restaurant-pos/pkg/kafka"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
	"github.com/vaidashi/restaurant-pos/pkg/middleware"
	"github.com/vaidashi/restaurant-pos/pkg/rabbitmq"
	"github.com/vaidashi/restaurant-pos/pkg/retry"
)

// Services are the POS components the HTTP handlers call
type Services struct {
	Orders      OrderService
	Kitchen     KitchenService
	Checkout    CheckoutService
	Shifts      ShiftService
	Stock       StockService
	DeadLetters DeadLetterAdmin
	Breaker     *circuitbreaker.CircuitBreaker
	Hub         http.Handler
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	validate   *validator.Validate
	auth       *Authenticator
	services   Services

	db                  *database.Database
	redis               *redis.Client
	hub                 *realtime.Hub
	feed                *realtime.Feed
	bridge              *realtime.Bridge
	board               *kitchen.Board
	rateLimiter         *middleware.RateLimiterMiddleware
	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor
	kafkaProducer       *kafka.Producer
	kafkaConsumer       *kafka.Consumer
	amqpPublisher       *rabbitmq.Publisher
}

// NewServer connects to the database and brokers and assembles every POS component
func NewServer(ctx context.Context, cfg *config.Config, logger logger.Logger) (*Server, error) {
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	s := &Server{config: cfg, logger: logger, db: db}

	orderRepo := repository.NewOrderRepository(db, logger)
	shiftRepo := repository.NewShiftRepository(db, logger)
	ledgerRepo := repository.NewLedgerRepository(db, logger)
	stockRepo := repository.NewStockRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)
	dlqRepo := repository.NewDeadLetterRepository(db, logger)

	if !cfg.POS.OrderTaxRate.Equal(cfg.POS.CheckoutTaxRate) {
		logger.Warn("Order and checkout tax rates differ; checkout orders are priced with the checkout rate",
			"orderTaxRate", cfg.POS.OrderTaxRate.String(),
			"checkoutTaxRate", cfg.POS.CheckoutTaxRate.String())
	}

	orderStore := orders.NewStore(orderRepo, s.newSequencer(db), orders.Config{
		TaxRate:      cfg.POS.OrderTaxRate,
		NumberPrefix: cfg.POS.OrderNumberPrefix,
		Location:     cfg.Location(),
		StoreTimeout: cfg.POS.StoreTimeout,
		Debounce:     cfg.POS.TransitionDebounce,
	}, logger.With("component", "orders"))

	stockStore := inventory.NewStore(stockRepo, cfg.POS.StoreTimeout, logger.With("component", "inventory"))
	shiftManager := shift.NewManager(shiftRepo, ledger.NewStore(ledgerRepo, logger), cfg.POS.StoreTimeout, logger.With("component", "shift"))
	coordinator := checkout.NewCoordinator(checkout.NewCarts(), orderStore, cfg.POS.CheckoutTaxRate, logger.With("component", "checkout"))

	s.hub = realtime.NewHub(cfg.HTTP.CORSOrigins, logger.With("component", "hub"))
	s.board = kitchen.NewBoard(orderStore, s.hub, kitchen.Config{
		WarnAfter: cfg.POS.KitchenWarnAfter,
		CritAfter: cfg.POS.KitchenCritAfter,
		Tick:      cfg.POS.KitchenTick,
	}, logger.With("component", "kitchen"))

	feed, err := realtime.NewFeed(cfg.GetDBConnString(), cfg.DB.NotifyChannel, logger.With("component", "feed"))
	if err != nil {
		// stores still work, they just only learn about other terminals through Kafka
		logger.Warn("Change feed unavailable, continuing without it", "error", err)
	}
	s.feed = feed

	s.bridge = realtime.NewBridge(feed, s.hub, orderStore, stockStore, realtime.Window{
		Duration: cfg.POS.OrderWindow,
		Limit:    cfg.POS.OrderFetchLimit,
	}, logger.With("component", "bridge"))
	s.bridge.Start()
	s.bridge.Reload(ctx)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.Kafka.BreakerThreshold,
		ResetTimeout:     cfg.Kafka.BreakerReset,
	})
	publisher := s.setupBrokers(orderStore, breaker)

	s.outboxProcessor = outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollingInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}, logger.With("component", "outbox"))

	s.deadLetterProcessor = outbox.NewDeadLetterProcessor(dlqRepo, outbox.DeadLetterProcessorConfig{
		PollingInterval: cfg.Outbox.DLQInterval,
		BatchSize:       5,
		MaxRetries:      5,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}, logger.With("component", "dlq"))

	for _, eventType := range models.EventTypes {
		s.outboxProcessor.RegisterHandler(eventType, publisher)
		s.deadLetterProcessor.RegisterHandler(eventType, publisher)
	}

	s.rateLimiter = middleware.NewRateLimiterMiddleware(middleware.RateLimiterConfig{
		Interval:          cfg.HTTP.RateLimitInterval,
		Burst:             cfg.HTTP.RateLimitBurst,
		TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
	}, logger)

	s.init(cfg, Services{
		Orders:      orderStore,
		Kitchen:     s.board,
		Checkout:    coordinator,
		Shifts:      shiftManager,
		Stock:       stockStore,
		DeadLetters: dlqRepo,
		Breaker:     breaker,
		Hub:         s.hub,
	})

	s.outboxProcessor.Start()
	s.deadLetterProcessor.Start()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Start(); err != nil {
			logger.Error("Failed to start Kafka consumer", "error", err)
		}
	}

	return s, nil
}

// newServer builds the HTTP layer only, around already constructed services
func newServer(cfg *config.Config, services Services, logger logger.Logger) *Server {
	s := &Server{config: cfg, logger: logger}
	s.init(cfg, services)
	return s
}

func (s *Server) init(cfg *config.Config, services Services) {
	s.services = services
	s.validate = validator.New()
	s.auth = NewAuthenticator(cfg.Auth.JWTSecret)
	s.router = mux.NewRouter()
	s.setupRoutes()

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Terminal-ID"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) newSequencer(db *database.Database) orders.Sequencer {
	if s.config.Redis.Addr == "" {
		return repository.NewPostgresSequencer(db, s.logger)
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     s.config.Redis.Addr,
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})
	s.logger.Info("Using Redis for order numbers", "addr", s.config.Redis.Addr)
	return repository.NewRedisSequencer(s.redis, s.logger)
}

// setupBrokers connects the optional brokers and returns the outbox sink
func (s *Server) setupBrokers(orderStore *orders.Store, breaker *circuitbreaker.CircuitBreaker) outbox.MessageHandler {
	cfg := s.config
	var sinks outbox.Fanout

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, s.logger)
		if err != nil {
			s.logger.Error("Failed to create Kafka producer", "error", err)
		} else {
			s.kafkaProducer = producer
			sinks = append(sinks, outbox.NewKafkaHandler(producer, cfg.Kafka.Topic, breaker, s.logger))
		}

		consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.Topic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, s.logger)
		if err != nil {
			s.logger.Error("Failed to create Kafka consumer", "error", err)
		} else {
			consumer.RegisterHandler(cfg.Kafka.Topic, handlers.NewOrderEventsHandler(orderStore, s.logger))
			s.kafkaConsumer = consumer
		}
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, s.logger)
		if err != nil {
			s.logger.Error("Failed to connect to RabbitMQ", "error", err)
		} else {
			s.amqpPublisher = publisher
			sinks = append(sinks, outbox.NewAMQPHandler(publisher))
		}
	}

	if len(sinks) == 0 {
		s.logger.Warn("No event broker configured, outbox events are only logged")
		return outbox.NewLoggingHandler(s.logger)
	}
	return sinks
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Server is starting", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Run drives the kitchen ticker and the change feed until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.board != nil {
		g.Go(func() error { return s.board.Run(ctx) })
	}
	if s.feed != nil {
		g.Go(func() error { return s.feed.Run(ctx) })
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the server and releases every connection
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.outboxProcessor != nil {
		s.outboxProcessor.Stop()
	}
	if s.deadLetterProcessor != nil {
		s.deadLetterProcessor.Stop()
	}

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}
	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}
	if s.amqpPublisher != nil {
		if err := s.amqpPublisher.Close(); err != nil {
			s.logger.Error("Error closing RabbitMQ publisher", "error", err)
		}
	}

	if s.bridge != nil {
		s.bridge.Stop()
	}
	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			s.logger.Error("Error closing change feed", "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Error closing Redis client", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", "error", err)
		}
	}

	return err
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Middleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	if s.services.Hub != nil {
		api.Handle("/ws", s.auth.Middleware(s.services.Hub)).Methods(http.MethodGet)
	}

	pos := api.NewRoute().Subrouter()
	pos.Use(s.auth.Middleware)

	pos.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	pos.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	pos.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	pos.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)

	pos.HandleFunc("/kitchen/board", s.getKitchenBoardHandler).Methods(http.MethodGet)
	pos.HandleFunc("/kitchen/orders/{id}/advance", s.advanceKitchenOrderHandler).Methods(http.MethodPost)
	pos.HandleFunc("/kitchen/orders/{id}/drop", s.dropKitchenOrderHandler).Methods(http.MethodPost)
	pos.HandleFunc("/kitchen/orders/{id}/complete", s.completeKitchenOrderHandler).Methods(http.MethodPost)

	pos.HandleFunc("/cart", s.getCartHandler).Methods(http.MethodGet)
	pos.HandleFunc("/cart", s.addCartLineHandler).Methods(http.MethodPost)
	pos.HandleFunc("/cart", s.clearCartHandler).Methods(http.MethodDelete)
	pos.HandleFunc("/cart/lines/{key}", s.updateCartLineHandler).Methods(http.MethodPatch)
	pos.HandleFunc("/cart/lines/{key}", s.removeCartLineHandler).Methods(http.MethodDelete)
	pos.HandleFunc("/checkout/totals", s.checkoutTotalsHandler).Methods(http.MethodPost)
	pos.HandleFunc("/checkout", s.checkoutHandler).Methods(http.MethodPost)

	pos.HandleFunc("/shifts/active", s.getActiveShiftHandler).Methods(http.MethodGet)
	pos.HandleFunc("/shifts/open", s.openShiftHandler).Methods(http.MethodPost)
	pos.HandleFunc("/shifts/close", s.closeShiftHandler).Methods(http.MethodPost)
	pos.HandleFunc("/shifts/summary", s.getShiftSummaryHandler).Methods(http.MethodGet)
	pos.HandleFunc("/shifts/history", s.getShiftHistoryHandler).Methods(http.MethodGet)
	pos.HandleFunc("/shifts/cash-logs", s.addCashLogHandler).Methods(http.MethodPost)
	pos.HandleFunc("/shifts/cash-logs", s.getCashLogsHandler).Methods(http.MethodGet)

	pos.HandleFunc("/inventory", s.getInventoryHandler).Methods(http.MethodGet)

	admin := pos.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
