package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bimuz/bimuz-api/config"
	"github.com/bimuz/bimuz-api/database"
	"github.com/bimuz/bimuz-api/handlers"
	auth_handlers "github.com/bimuz/bimuz-api/handlers/auth"
	booking_handlers "github.com/bimuz/bimuz-api/handlers/booking"
	group_handlers "github.com/bimuz/bimuz-api/handlers/group"
	invoice_handlers "github.com/bimuz/bimuz-api/handlers/invoice"
	payment_handlers "github.com/bimuz/bimuz-api/handlers/payment"
	report_handlers "github.com/bimuz/bimuz-api/handlers/report"
	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/services/multicard"
	"github.com/bimuz/bimuz-api/services/sms"
	"github.com/bimuz/bimuz-api/services/tasks"
	"github.com/bimuz/bimuz-api/utils/auth"
	"github.com/bimuz/bimuz-api/utils/cache"
	"github.com/bimuz/bimuz-api/utils/middleware"
)

// Wiring exposes the pieces the app lifecycle still needs after routes are
// mounted: the services the cron jobs run against and the notification queue
// that must be drained on shutdown.
type Wiring struct {
	Groups   *services.GroupService
	Invoices *services.InvoiceService
	Queue    *tasks.Queue
}

func SetupRoutes(app *fiber.App, store database.Storage) *Wiring {
	env, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load environment variables")
	}

	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "bimuz-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := store.GetDB()
	if db == nil {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs brute force protection and the gateway token caches.
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Payment gateway client. The token cache is optional; the client
	// re-authenticates per request without it.
	var gatewayCache multicard.TokenCache
	if redisCache != nil {
		gatewayCache = redisCache
	}
	gateway := multicard.NewClient(multicard.Config{
		BaseURL:       env.MULTICARD_BASE_URL,
		ApplicationID: env.MULTICARD_APPLICATION_ID,
		Secret:        env.MULTICARD_SECRET,
		StoreID:       env.MULTICARD_STORE_ID,
		CallbackURL:   env.MULTICARD_CALLBACK_URL,
	}, gatewayCache)

	// SMS sender. Falls back to a no-op when Eskiz is not configured so
	// bookings still work in environments without SMS credentials.
	var sender sms.Sender = sms.NoopSender{}
	if env.ESKIZ_EMAIL != "" && env.ESKIZ_PASSWORD != "" {
		var smsCache sms.TokenCache
		if redisCache != nil {
			smsCache = redisCache
		}
		sender = sms.NewEskizClient(sms.Config{
			BaseURL:  env.ESKIZ_BASE_URL,
			Email:    env.ESKIZ_EMAIL,
			Password: env.ESKIZ_PASSWORD,
			From:     env.ESKIZ_FROM,
		}, smsCache)
	} else {
		log.Println("Eskiz credentials not set, SMS notifications disabled")
	}
	notifier := tasks.NewQueue(sender, 2)

	// Domain services
	invoiceService := services.NewInvoiceService(db, gateway)
	bookingService := services.NewBookingService(db, invoiceService, notifier)
	groupService := services.NewGroupService(db, invoiceService)
	settlementService := services.NewSettlementService(db)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	bookingHandler := booking_handlers.NewBookingHandler(bookingService)
	groupHandler := group_handlers.NewGroupHandler(groupService)
	invoiceHandler := invoice_handlers.NewInvoiceHandler(invoiceService, db)
	paymentHandler := payment_handlers.NewPaymentHandler(invoiceService)
	reportHandler := report_handlers.NewReportHandler(settlementService)

	// Apply security middleware
	allowedOrigins := env.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/health", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Group catalog routes
	groups := api.Group("/groups", authMiddleware.Required())
	groups.Get("/", groupHandler.List)
	groups.Get("/:id", groupHandler.Get)
	groups.Post("/",
		authMiddleware.RequireRoles(model.RoleAdministrator, model.RoleDirector, model.RoleDeveloper),
		middleware.AuditLog(db, "group_create", "groups"),
		groupHandler.Create)
	groups.Put("/:id",
		authMiddleware.RequireRoles(model.RoleAdministrator, model.RoleDirector, model.RoleDeveloper),
		middleware.AuditLog(db, "group_update", "groups"),
		groupHandler.Update)

	// Booking routes
	bookings := api.Group("/bookings", authMiddleware.Required())
	bookings.Get("/groups", bookingHandler.ListGroups)
	bookings.Post("/", bookingHandler.Book)
	bookings.Post("/cancel", bookingHandler.Cancel)
	bookings.Post("/change-group",
		authMiddleware.RequireRoles(model.RoleAdministrator, model.RoleMentor, model.RoleDirector, model.RoleDeveloper),
		middleware.AuditLog(db, "booking_change_group", "bookings"),
		bookingHandler.ChangeGroup)

	// Invoice routes
	invoices := api.Group("/invoices", authMiddleware.Required())
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/:id", invoiceHandler.Get)

	// Payment routes. Callback and webhook are called by the gateway and
	// carry their own signature verification, so they stay public.
	payments := api.Group("/payments")
	payments.Post("/callback", paymentHandler.Callback)
	payments.Post("/webhook", paymentHandler.Webhook)
	payments.Post("/create", authMiddleware.Required(), paymentHandler.CreateLink)
	payments.Get("/status", authMiddleware.RequireEmployee(), paymentHandler.CheckStatus)
	payments.Post("/mark-paid",
		authMiddleware.RequireRoles(model.RoleAccountant, model.RoleDirector, model.RoleDeveloper),
		middleware.AuditLog(db, "invoices_mark_paid", "invoices"),
		paymentHandler.MarkPaid)

	// Settlement and payroll routes
	reports := api.Group("/reports")
	reports.Get("/monthly",
		authMiddleware.RequireRoles(model.RoleDirector, model.RoleAdministrator, model.RoleAccountant, model.RoleDeveloper),
		reportHandler.Monthly)
	reports.Post("/salaries",
		authMiddleware.RequireRoles(model.RoleDirector, model.RoleAccountant),
		middleware.AuditLog(db, "salary_set", "employee_salaries"),
		reportHandler.SetSalary)
	reports.Post("/salaries/mark-paid",
		authMiddleware.RequireRoles(model.RoleDirector, model.RoleAccountant),
		middleware.AuditLog(db, "salary_mark_paid", "employee_salaries"),
		reportHandler.MarkSalaryPaid)
	reports.Post("/mentor-payments/mark-paid",
		authMiddleware.RequireRoles(model.RoleDirector, model.RoleAccountant),
		middleware.AuditLog(db, "mentor_payment_mark_paid", "mentor_payments"),
		reportHandler.MarkMentorPaid)

	return &Wiring{
		Groups:   groupService,
		Invoices: invoiceService,
		Queue:    notifier,
	}
}
