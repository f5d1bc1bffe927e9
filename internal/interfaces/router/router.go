package router

import (
	"net/http"

	certsvc "csx-backend/internal/application/certificates"
	healthsvc "csx-backend/internal/application/health"
	ledgersvc "csx-backend/internal/application/ledger"
	lesvc "csx-backend/internal/application/listingevents"
	listsvc "csx-backend/internal/application/listings"
	"csx-backend/internal/application/regulator"
	"csx-backend/internal/application/scoring"
	tendersvc "csx-backend/internal/application/tenders"
	tradesvc "csx-backend/internal/application/trading"
	"csx-backend/internal/config"
	"csx-backend/internal/constants"
	"csx-backend/internal/infrastructure/artifacts"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/notify"
	certhandler "csx-backend/internal/interfaces/handlers/certificates"
	companyhandler "csx-backend/internal/interfaces/handlers/companies"
	govhandler "csx-backend/internal/interfaces/handlers/gov"
	healthhandler "csx-backend/internal/interfaces/handlers/health"
	lehandler "csx-backend/internal/interfaces/handlers/listingevents"
	listhandler "csx-backend/internal/interfaces/handlers/listings"
	tenderhandler "csx-backend/internal/interfaces/handlers/tenders"
	tradehandler "csx-backend/internal/interfaces/handlers/trading"
	txhandler "csx-backend/internal/interfaces/handlers/transactions"
	updatehandler "csx-backend/internal/interfaces/handlers/updates"
	"csx-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with every route. Redis is optional: without it, health
// stats are not collected and live updates are fanned out in-process only.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.CORSOriginSuffix,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	if rdb != nil {
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.Authenticate(cfg.JWTSecret))

	ml := scoring.NewHTTPScorer(cfg.MLServiceURL)
	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		Dependencies:   []healthsvc.Dependency{{Name: "ml_service", Ping: ml.Ping}},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL is not set; only health routes are served")
		return app, nil, rdb, nil
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	hh.DB = &gormDBPinger{db: db}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	locker := locks.NewKeyedLocker(cfg.LedgerLockTimeout)
	var broker notify.Broker
	if rdb != nil {
		broker = notify.NewRedisBroker(rdb, cfg.NotifyChannel)
	} else {
		broker = notify.NewHub()
	}

	store, err := artifactStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	signer := certsvc.Signer{Secret: []byte(cfg.CertSignatureSecret)}
	issuer := &certsvc.Issuer{
		DB:          db,
		Locks:       locker,
		Signer:      signer,
		Renderer:    certsvc.NewHTMLRenderer(),
		Store:       store,
		Notifier:    broker,
		BaseURL:     cfg.BaseURL,
		LockTimeout: cfg.LedgerLockTimeout,
	}
	verifier := &certsvc.Verifier{DB: db, Signer: signer}
	certs := &certsvc.Service{DB: db, Store: store}

	ledger := &ledgersvc.Service{DB: db, Locks: locker, Notifier: broker, LockTimeout: cfg.LedgerLockTimeout}
	listings := &listsvc.Service{DB: db, Locks: locker, Notifier: broker, LockTimeout: cfg.LedgerLockTimeout}
	trading := &tradesvc.Service{DB: db, Locks: locker, Notifier: broker, LockTimeout: cfg.LedgerLockTimeout}
	scores := &scoring.Service{
		DB:       db,
		Scorer:   &scoring.FallbackScorer{Primary: ml, Fallback: scoring.RuleBased{}},
		Issuer:   issuer,
		Notifier: broker,
	}
	gov := &regulator.Service{DB: db}
	tenders := &tendersvc.Service{DB: db, Notifier: broker}

	api := app.Group("/api/v1")

	// Credits
	txh := &txhandler.Handlers{Service: ledger}
	lh := &listhandler.Handlers{Service: listings}
	th := &tradehandler.Handlers{Trading: trading, Ledger: ledger}
	cg := api.Group("/credits", middleware.RequireAuth())
	cg.Get("/balance", middleware.AuthorizePermission(constants.ViewData), txh.GetBalance)
	cg.Get("/marketplace", middleware.AuthorizePermission(constants.ViewData), txh.GetMarketplace)
	cg.Get("/transactions", middleware.AuthorizePermission(constants.ViewData), txh.GetTransactions)
	cg.Post("/transfer", middleware.AuthorizePermission(constants.TransferCredits), th.Transfer)
	cg.Post("/purchase", middleware.AuthorizePermission(constants.PurchaseCredits), th.Purchase)
	cg.Post("/grant", middleware.AuthorizePermission(constants.GrantCredits), th.Grant)
	cg.Post("/listings", middleware.AuthorizePermission(constants.CreateListing), lh.CreateListing)
	cg.Get("/listings", middleware.AuthorizePermission(constants.ViewData), lh.GetActiveListings)
	cg.Get("/listings/:id", middleware.AuthorizePermission(constants.ViewData), lh.GetListing)
	cg.Delete("/listings/:id", middleware.AuthorizePermission(constants.CancelListing), lh.CancelListing)
	cg.Get("/my-listings", middleware.AuthorizePermission(constants.ViewData), lh.GetMyListings)
	leh := &lehandler.Handlers{Service: &lesvc.Service{DB: db}}
	cg.Get("/listing-events", middleware.AuthorizePermission(constants.ViewData), leh.GetMyListingEvents)

	// Companies
	ch := &companyhandler.Handlers{Service: scores}
	api.Get("/companies", ch.ListCompanies)
	cmp := api.Group("/companies", middleware.RequireAuth())
	cmp.Post("/:id/data", middleware.AuthorizePermission(constants.SubmitData), ch.SubmitData)
	cmp.Get("/:id/score", middleware.AuthorizePermission(constants.ViewData), ch.GetScore)
	cmp.Get("/:id/score-history", middleware.AuthorizePermission(constants.ViewData), ch.GetScoreHistory)

	// Certificates; verification is public
	cth := &certhandler.Handlers{Verifier: verifier, Service: certs}
	api.Get("/certificates/verify/:certificateId", cth.Verify)
	ctg := api.Group("/certificates", middleware.RequireAuth())
	ctg.Get("/company/:companyId", middleware.AuthorizePermission(constants.ViewData), cth.ListByCompany)
	ctg.Get("/download/:id", middleware.AuthorizePermission(constants.ViewData), cth.Download)
	ctg.Get("/audit/log", middleware.AuthorizePermission(constants.ViewCertAuditLog), cth.AuditLog)

	// Government
	gh := &govhandler.Handlers{Service: gov}
	gg := api.Group("/gov", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ViewDashboard))
	gg.Get("/dashboard", gh.Dashboard)
	gg.Get("/industry-analysis", gh.IndustryAnalysis)
	gg.Get("/companies", gh.Companies)
	gg.Get("/individuals", gh.Individuals)
	gg.Get("/score-distribution", gh.ScoreDistribution)

	// Tenders
	tdh := &tenderhandler.Handlers{Service: tenders}
	tg := api.Group("/tenders", middleware.RequireAuth())
	tg.Get("/", middleware.AuthorizePermission(constants.ViewData), tdh.ListTenders)
	tg.Post("/", middleware.AuthorizePermission(constants.CreateTender), tdh.CreateTender)
	tg.Get("/my-applications", middleware.AuthorizePermission(constants.ApplyTender), tdh.MyApplications)
	tg.Post("/:id/apply", middleware.AuthorizePermission(constants.ApplyTender), tdh.Apply)
	tg.Get("/:id/applications", middleware.AuthorizePermission(constants.ViewTenderApplications), tdh.TenderApplications)
	tg.Post("/:id/close", middleware.AuthorizePermission(constants.CloseTender), tdh.CloseTender)

	// Live updates
	uh := &updatehandler.Handlers{Broker: broker}
	api.Get("/updates/stream", middleware.RequireAuth(), uh.Stream)

	return app, db, rdb, nil
}

func artifactStore(cfg *config.Config) (artifacts.Store, error) {
	if cfg.SupabaseURL != "" {
		return &artifacts.SupabaseStore{
			BaseURL:   cfg.SupabaseURL,
			SecretKey: cfg.SupabaseSecretKey,
			Bucket:    cfg.CertificatesBucket,
		}, nil
	}
	return artifacts.NewLocalStore(cfg.CertificatesDir)
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
