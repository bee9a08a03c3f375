package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoelite-platform/procurement-service/pkg/api"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/kafka"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
	"github.com/autoelite-platform/procurement-service/pkg/middleware"
	"github.com/autoelite-platform/procurement-service/pkg/mongodb"
	"github.com/autoelite-platform/procurement-service/pkg/outbox"
	"github.com/autoelite-platform/procurement-service/pkg/tracing"

	"github.com/autoelite-platform/procurement-service/internal/application"
	"github.com/autoelite-platform/procurement-service/internal/domain"
	mongoRepo "github.com/autoelite-platform/procurement-service/internal/infrastructure/mongodb"
)

const serviceName = "procurement-service"

func main() {
	// Setup enhanced logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting procurement-service API")

	// Load configuration
	config := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing - don't exit
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB with instrumentation
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer instrumentedMongo.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize Kafka producer with instrumentation
	kafkaProducer := kafka.NewProducer(config.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	defer instrumentedProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize CloudEvents factory
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceProcurement)

	// Initialize repositories with instrumented client and event factory
	db := instrumentedMongo.Database()
	partRepo := mongoRepo.NewPartRepository(db, eventFactory)
	orderRepo := mongoRepo.NewPurchaseOrderRepository(db, eventFactory)
	capitalRepo := mongoRepo.NewCapitalRepository(db, eventFactory)
	auditRepo := mongoRepo.NewAuditRepository(db)
	alertRepo := mongoRepo.NewAlertStateRepository(db)

	// Initialize and start outbox publisher
	outboxPublisher := outbox.NewPublisher(
		orderRepo.GetOutboxRepository(),
		instrumentedProducer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Initialize application services
	auditRecorder := application.NewAuditRecorder(auditRepo, logger, m)
	partService := application.NewPartService(partRepo, auditRecorder, logger, m)
	procurementService := application.NewProcurementService(orderRepo, partRepo, capitalRepo, auditRecorder, logger, m)
	capitalService := application.NewCapitalService(capitalRepo, auditRecorder, logger, m)
	stockMonitor := application.NewStockMonitor(
		partRepo,
		alertRepo,
		instrumentedProducer,
		eventFactory,
		logger,
		m,
		config.AlertCooldown,
	)

	// Ensure the capital account exists before taking traffic
	account, err := capitalService.Bootstrap(ctx, config.CapitalSeedCents, config.Currency)
	if err != nil {
		logger.WithError(err).Error("Failed to bootstrap capital account")
		os.Exit(1)
	}
	logger.Info("Capital account ready", "balanceCents", account.CurrentAmount.Amount())

	// Setup Gin router with middleware
	router := gin.New()

	// Apply standard middleware (includes recovery, request ID, correlation, logging, error handling)
	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	// Add metrics middleware
	router.Use(middleware.MetricsMiddleware(m))

	// Add tracing middleware
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	// Resolve the acting user from request headers
	actorConfig := middleware.DefaultActorAuthConfig()
	actorConfig.Required = getEnv("ACTOR_AUTH_REQUIRED", "false") == "true"
	router.Use(middleware.ActorAuth(actorConfig))

	// Handle 404 and 405 errors
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return instrumentedMongo.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")

	parts := v1.Group("/parts")
	{
		canManageStock := middleware.RequireRole(middleware.RoleInventoryManager, middleware.RoleAdmin)

		// Static routes first (must come before wildcard routes)
		parts.POST("", canManageStock, createPartHandler(partService, logger))
		parts.GET("", listPartsHandler(partService, logger))
		parts.GET("/low-stock", listLowStockHandler(partService, logger))

		// Wildcard part routes (must come after static routes)
		parts.GET("/:id", getPartHandler(partService, logger))
		parts.POST("/:id/receive", canManageStock, receiveStockHandler(partService, logger))
		parts.POST("/:id/adjust", canManageStock, adjustStockHandler(partService, logger))
		parts.DELETE("/:id", canManageStock, deactivatePartHandler(partService, logger))
	}

	// Order transitions are authorized inside the state machine, so these
	// routes only need an identified actor
	orders := v1.Group("/purchase-orders")
	{
		orders.POST("", createOrderHandler(procurementService, logger))
		orders.GET("", listOrdersHandler(procurementService, logger))
		orders.GET("/:id", getOrderHandler(procurementService, logger))
		orders.PUT("/:id", updateOrderHandler(procurementService, logger))
		orders.POST("/:id/submit", submitOrderHandler(procurementService, logger))
		orders.POST("/:id/approve", transitionHandler(procurementService.Approve, logger))
		orders.POST("/:id/deliver", transitionHandler(procurementService.Deliver, logger))
		orders.POST("/:id/cancel", transitionHandler(procurementService.Cancel, logger))
		orders.POST("/:id/reject", transitionHandler(procurementService.Reject, logger))
	}

	capital := v1.Group("/capital")
	{
		canManageCapital := middleware.RequireRole(middleware.RoleFinanceManager, middleware.RoleAdmin)
		canViewCapital := middleware.RequireRole(middleware.RoleFinanceManager, middleware.RoleManager, middleware.RoleAdmin)

		capital.GET("", canViewCapital, getCapitalHandler(capitalService, logger))
		capital.GET("/transactions", canViewCapital, listTransactionsHandler(capitalService, logger))
		capital.POST("/initialize", canManageCapital, initializeCapitalHandler(capitalService, logger))
		capital.PUT("/adjust", canManageCapital, adjustCapitalHandler(capitalService, logger))
	}

	auditLogs := v1.Group("/audit-logs")
	auditLogs.Use(middleware.RequireRole(middleware.RoleManager, middleware.RoleFinanceManager, middleware.RoleAdmin))
	{
		auditLogs.GET("", listAuditHandler(auditRecorder, logger))
		auditLogs.GET("/summary", auditSummaryHandler(auditRecorder, logger))
	}

	v1.POST("/stock-scan",
		middleware.RequireRole(middleware.RoleInventoryManager, middleware.RoleAdmin),
		stockScanHandler(stockMonitor, logger),
	)

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr       string
	MongoDB          *mongodb.Config
	Kafka            *kafka.Config
	CapitalSeedCents int64
	Currency         string
	AlertCooldown    time.Duration
}

func loadConfig() *Config {
	seedCents := domain.DefaultSeedCents
	if raw := os.Getenv("CAPITAL_SEED_CENTS"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			seedCents = parsed
		}
	}

	cooldown := application.DefaultCooldown
	if raw := os.Getenv("ALERT_COOLDOWN"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cooldown = parsed
		}
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8010"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "procurement_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: "procurement-service",
			ClientID:      "procurement-service",
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
		},
		CapitalSeedCents: seedCents,
		Currency:         getEnv("CAPITAL_CURRENCY", domain.DefaultCurrency),
		AlertCooldown:    cooldown,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createPartHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			PartCode       string `json:"partCode" binding:"required"`
			Name           string `json:"name" binding:"required"`
			Category       string `json:"category"`
			Description    string `json:"description"`
			UnitPriceCents int64  `json:"unitPriceCents" binding:"required,gt=0"`
			OnHand         int    `json:"onHand" binding:"min=0"`
			Reserved       int    `json:"reserved" binding:"min=0"`
			MinLevel       int    `json:"minLevel" binding:"min=0"`
			MaxLevel       int    `json:"maxLevel" binding:"min=0"`
			ReorderLevel   int    `json:"reorderLevel" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.CreatePartCommand{
			PartCode:       req.PartCode,
			Name:           req.Name,
			Category:       req.Category,
			Description:    req.Description,
			UnitPriceCents: req.UnitPriceCents,
			OnHand:         req.OnHand,
			Reserved:       req.Reserved,
			MinLevel:       req.MinLevel,
			MaxLevel:       req.MaxLevel,
			ReorderLevel:   req.ReorderLevel,
		}

		part, err := service.CreatePart(c.Request.Context(), cmd, middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, part)
	}
}

func listPartsHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)

		parts, err := service.ListParts(c.Request.Context(), int(page.GetLimit()), int(page.GetOffset()))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": parts, "page": page.Page, "pageSize": page.PageSize})
	}
}

func listLowStockHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		parts, err := service.ListLowStock(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": parts, "count": len(parts)})
	}
}

func getPartHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		part, err := service.GetPart(c.Request.Context(), c.Param("id"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, part)
	}
}

func receiveStockHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Quantity int    `json:"quantity" binding:"required,gt=0"`
			OrderID  string `json:"orderId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.ReceiveStockCommand{
			PartID:   c.Param("id"),
			Quantity: req.Quantity,
			OrderID:  req.OrderID,
		}

		part, err := service.ReceiveStock(c.Request.Context(), cmd, middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, part)
	}
}

func adjustStockHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			NewOnHand int    `json:"newOnHand" binding:"min=0"`
			Reason    string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.AdjustStockCommand{
			PartID:    c.Param("id"),
			NewOnHand: req.NewOnHand,
			Reason:    req.Reason,
		}

		part, err := service.AdjustStock(c.Request.Context(), cmd, middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, part)
	}
}

func deactivatePartHandler(service *application.PartService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		part, err := service.DeactivatePart(c.Request.Context(), c.Param("id"), middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, part)
	}
}

// orderItemRequest is one requested line in a create or update payload
type orderItemRequest struct {
	PartID         string `json:"partId" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
	UnitPriceCents int64  `json:"unitPriceCents" binding:"min=0"`
}

type orderRequest struct {
	SupplierID           string             `json:"supplierId"`
	SupplierName         string             `json:"supplierName"`
	Items                []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	TaxCents             int64              `json:"taxCents" binding:"min=0"`
	ShippingCents        int64              `json:"shippingCents" binding:"min=0"`
	Currency             string             `json:"currency"`
	ExpectedDeliveryDate time.Time          `json:"expectedDeliveryDate"`
	PaymentTerms         string             `json:"paymentTerms"`
	PaymentMethod        string             `json:"paymentMethod"`
	DeliveryAddress      string             `json:"deliveryAddress"`
	Notes                string             `json:"notes"`
}

func (r orderRequest) items() []application.OrderItemInput {
	items := make([]application.OrderItemInput, len(r.Items))
	for i, item := range r.Items {
		items[i] = application.OrderItemInput{
			PartID:         item.PartID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return items
}

func createOrderHandler(service *application.ProcurementService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req orderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.CreateOrderCommand{
			SupplierID:           req.SupplierID,
			SupplierName:         req.SupplierName,
			Items:                req.items(),
			TaxCents:             req.TaxCents,
			ShippingCents:        req.ShippingCents,
			Currency:             req.Currency,
			ExpectedDeliveryDate: req.ExpectedDeliveryDate,
			PaymentTerms:         req.PaymentTerms,
			PaymentMethod:        req.PaymentMethod,
			DeliveryAddress:      req.DeliveryAddress,
			Notes:                req.Notes,
		}

		actor := middleware.GetActor(c)
		order, err := service.CreateOrder(c.Request.Context(), cmd, actor.ID, domain.Role(actor.Role))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler(service *application.ProcurementService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		status := domain.OrderStatus(c.Query("status"))
		if status != "" && !status.IsValid() {
			responder.RespondBadRequest("Unknown order status: " + string(status))
			return
		}

		page := api.ParsePagination(c)

		orders, total, err := service.ListOrders(c.Request.Context(), status, int(page.GetLimit()), int(page.GetOffset()))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(orders, page.Page, page.PageSize, total))
	}
}

func getOrderHandler(service *application.ProcurementService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		order, err := service.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func updateOrderHandler(service *application.ProcurementService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req orderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.UpdateOrderCommand{
			OrderID:              c.Param("id"),
			Items:                req.items(),
			TaxCents:             req.TaxCents,
			ShippingCents:        req.ShippingCents,
			Currency:             req.Currency,
			ExpectedDeliveryDate: req.ExpectedDeliveryDate,
			PaymentTerms:         req.PaymentTerms,
			PaymentMethod:        req.PaymentMethod,
			DeliveryAddress:      req.DeliveryAddress,
			Notes:                req.Notes,
		}

		actor := middleware.GetActor(c)
		order, err := service.UpdateOrder(c.Request.Context(), cmd, actor.ID, domain.Role(actor.Role))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func submitOrderHandler(service *application.ProcurementService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		actor := middleware.GetActor(c)
		order, err := service.Submit(c.Request.Context(), c.Param("id"), actor.ID, domain.Role(actor.Role))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

// transitionFunc is the shared shape of the approve, deliver, cancel and
// reject operations
type transitionFunc func(ctx context.Context, cmd application.TransitionOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error)

func transitionHandler(transition transitionFunc, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Notes  string `json:"notes"`
			Reason string `json:"reason"`
		}
		// Body is optional for transitions
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.TransitionOrderCommand{
			OrderID: c.Param("id"),
			Notes:   req.Notes,
			Reason:  req.Reason,
		}

		actor := middleware.GetActor(c)
		order, err := transition(c.Request.Context(), cmd, actor.ID, domain.Role(actor.Role))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func getCapitalHandler(service *application.CapitalService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		account, err := service.Get(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, account)
	}
}

func listTransactionsHandler(service *application.CapitalService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		filter := domain.TransactionFilter{
			Type: domain.TransactionType(c.Query("type")),
		}
		if from, ok := parseTimeQuery(c, "from"); ok {
			filter.From = from
		} else if c.Query("from") != "" {
			responder.RespondBadRequest("Invalid from timestamp, expected RFC3339")
			return
		}
		if to, ok := parseTimeQuery(c, "to"); ok {
			filter.To = to
		} else if c.Query("to") != "" {
			responder.RespondBadRequest("Invalid to timestamp, expected RFC3339")
			return
		}

		page := api.ParsePagination(c)

		txns, total, err := service.Transactions(c.Request.Context(), filter, int(page.GetLimit()), int(page.GetOffset()))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(txns, page.Page, page.PageSize, total))
	}
}

func initializeCapitalHandler(service *application.CapitalService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			AmountCents int64  `json:"amountCents" binding:"required,gt=0"`
			Currency    string `json:"currency"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.InitializeCapitalCommand{
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
		}

		account, txn, err := service.Initialize(c.Request.Context(), cmd, middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"account": account, "transaction": txn})
	}
}

func adjustCapitalHandler(service *application.CapitalService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			NewAmountCents int64  `json:"newAmountCents" binding:"required,min=0"`
			Currency       string `json:"currency"`
			Description    string `json:"description" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.AdjustCapitalCommand{
			NewAmountCents: req.NewAmountCents,
			Currency:       req.Currency,
			Description:    req.Description,
		}

		account, txn, err := service.Adjust(c.Request.Context(), cmd, middleware.GetActor(c).ID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"account": account, "transaction": txn})
	}
}

func listAuditHandler(recorder *application.AuditRecorder, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		filter := domain.AuditFilter{
			EntityType: c.Query("entityType"),
			Action:     c.Query("action"),
			Actor:      c.Query("actor"),
		}
		if from, ok := parseTimeQuery(c, "from"); ok {
			filter.From = from
		}
		if to, ok := parseTimeQuery(c, "to"); ok {
			filter.To = to
		}

		page := api.ParsePagination(c)

		entries, total, err := recorder.List(c.Request.Context(), filter, int(page.GetLimit()), int(page.GetOffset()))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(entries, page.Page, page.PageSize, total))
	}
}

func auditSummaryHandler(recorder *application.AuditRecorder, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var since *time.Time
		if parsed, ok := parseTimeQuery(c, "since"); ok {
			since = parsed
		}

		summary, err := recorder.Summary(c.Request.Context(), since)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

func stockScanHandler(monitor *application.StockMonitor, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := monitor.Scan(c.Request.Context(), application.TriggerManual)
		if err != nil {
			// A failed scan still reports its result shape
			if result != nil {
				c.JSON(http.StatusInternalServerError, result)
				return
			}
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
