package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/common/logger"
	commonmw "github.com/yashrajoria/orderms/common/middleware"
	"github.com/yashrajoria/orderms/internal/cache"
	"github.com/yashrajoria/orderms/internal/config"
	"github.com/yashrajoria/orderms/internal/controllers"
	"github.com/yashrajoria/orderms/internal/database"
	"github.com/yashrajoria/orderms/internal/providers"
	"github.com/yashrajoria/orderms/internal/repository"
	"github.com/yashrajoria/orderms/internal/routes"
	"github.com/yashrajoria/orderms/internal/services"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "orderms"

// app holds the process-wide resources shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  *redis.Client

	logSink   *aws_pkg.CloudWatchLogsClient
	sns       aws_pkg.SNSPublisher
	metrics   aws_pkg.MetricsRecorder
	presigner aws_pkg.UploadPresigner
}

// newApp loads configuration, builds the logger and opens the database.
// Redis and AWS clients are optional and stay nil when not configured.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}

	var awsCfgLoaded bool
	if cfg.AWS.Enabled() {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		awsCfgLoaded = true

		if cfg.AWS.CloudWatchEnabled {
			cw, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.AWS.CloudWatchLogGroup, serviceName)
			if err != nil {
				a.logger = logger.Initialize(cfg.AppEnv)
				a.logger.Warn("CloudWatch Logs init failed", zap.Error(err))
			} else {
				a.logSink = cw
				a.logger = logger.InitializeWithWriter(cfg.AppEnv, cw)
			}
			a.metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.AWS.CloudWatchNamespace, true)
		}
		if cfg.AWS.OrderSNSTopicARN != "" {
			a.sns = aws_pkg.NewSNSClient(awsCfg)
		}
		if cfg.AWS.ProductImageBucket != "" {
			a.presigner = aws_pkg.NewS3Presigner(awsCfg)
		}
	}
	if a.logger == nil {
		a.logger = logger.Initialize(cfg.AppEnv)
	}
	zap.ReplaceGlobals(a.logger)
	a.logger.Info("configuration loaded",
		zap.String("env", cfg.AppEnv),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("payment_gateway", cfg.Payment.Gateway),
		zap.Bool("aws", awsCfgLoaded),
	)

	a.db, err = database.Connect(ctx, cfg.DB, a.logger)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.logger.Warn("Redis unavailable, running without cache and batch lock", zap.Error(err))
			a.redis = nil
		} else {
			a.logger.Info("Connected to Redis")
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Error("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
	if a.logSink != nil {
		_ = a.logSink.Close()
	}
}

func (a *app) paymentGateway() (providers.PaymentGateway, error) {
	p := a.cfg.Payment
	switch p.Gateway {
	case providers.GatewayRazorpay:
		return providers.NewRazorpayGateway(p.RazorpayBaseURL, p.RazorpayKeyID, p.RazorpayKeySecret, nil), nil
	case providers.GatewayStripe:
		return providers.NewStripeGateway(p.StripeSecretKey, p.StripePublishableKey, nil), nil
	default:
		return nil, fmt.Errorf("unsupported PAYMENT_GATEWAY %q", p.Gateway)
	}
}

func (a *app) events() *services.EventPublisher {
	return services.NewEventPublisher(a.sns, a.cfg.AWS.OrderSNSTopicARN, a.logger)
}

func (a *app) batchLocker() cache.BatchLocker {
	if a.redis == nil {
		return cache.NoopLocker{}
	}
	return cache.NewRedisLocker(a.redis, a.cfg.Redis.LockTTL)
}

func (a *app) fulfillmentService() *services.FulfillmentService {
	sr := a.cfg.Shiprocket
	shipper := providers.NewShiprocketProvider(providers.ShiprocketConfig{
		BaseURL:        sr.BaseURL,
		Email:          sr.Email,
		Password:       sr.Password,
		PickupLocation: sr.PickupLocation,
		CourierID:      sr.CourierID,
	}, nil)
	parcel := providers.Parcel{
		Length:  sr.ParcelLength,
		Breadth: sr.ParcelBreadth,
		Height:  sr.ParcelHeight,
		Weight:  sr.ParcelWeight,
	}
	orders := repository.NewGormOrderRepository(a.db)
	return services.NewFulfillmentService(orders, shipper, a.batchLocker(), parcel, a.events(), a.metrics, a.logger).
		WithClaimTimeout(a.cfg.Redis.LockTTL)
}

func (a *app) adminService(tokens *services.TokenService) *services.AdminService {
	return services.NewAdminService(repository.NewGormAdminRepository(a.db), tokens, a.logger)
}

// seedAdmin creates the default admin when a password is configured.
func (a *app) seedAdmin(ctx context.Context, admins *services.AdminService) error {
	if a.cfg.Admin.DefaultPassword == "" {
		a.logger.Info("ADMIN_DEFAULT_PASSWORD not set, skipping admin seed")
		return nil
	}
	created, err := admins.EnsureDefaultAdmin(ctx, a.cfg.Admin.DefaultEmail, a.cfg.Admin.DefaultPassword)
	if err != nil {
		return err
	}
	if created {
		a.logger.Info("Default admin created", zap.String("email", a.cfg.Admin.DefaultEmail))
	}
	return nil
}

// router wires repositories, services and controllers onto a gin engine.
func (a *app) router(ctx context.Context) (*gin.Engine, error) {
	gateway, err := a.paymentGateway()
	if err != nil {
		return nil, err
	}

	tokens := services.NewTokenService(a.cfg.JWTSecret, a.cfg.JWTTTL)
	users := repository.NewGormUserRepository(a.db)
	products := repository.NewGormProductRepository(a.db)
	orders := repository.NewGormOrderRepository(a.db)

	payments := services.NewPaymentService(gateway, a.cfg.Payment.Currency, a.metrics, a.logger)
	catalog := cache.NewCatalogCache(a.redis, a.cfg.Redis.CacheTTL, a.logger)
	productSvc := services.NewProductService(products, catalog, a.presigner, a.cfg.AWS.ProductImageBucket, a.metrics, a.logger)
	orderSvc := services.NewOrderService(a.db, orders, payments, a.events(), a.metrics, a.logger)
	admins := a.adminService(tokens)

	if err := a.seedAdmin(ctx, admins); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	cookie := controllers.CookieConfig{Secure: a.cfg.CookieSecure, Domain: a.cfg.CookieDomain}
	checks := map[string]controllers.Pinger{
		"database": func(ctx context.Context) error { return database.Ping(ctx, a.db) },
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}

	h := routes.Controllers{
		Auth:     controllers.NewAuthController(services.NewAuthService(a.db, users, tokens, a.logger), cookie),
		Address:  controllers.NewAddressController(services.NewAddressService(a.db, users)),
		Product:  controllers.NewProductController(productSvc),
		Checkout: controllers.NewCheckoutController(services.NewCartService(), payments, orderSvc),
		Admin:    controllers.NewAdminController(admins, orderSvc, a.fulfillmentService(), cookie),
		Health:   controllers.NewHealthController(checks),
	}

	if a.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.AllowedOrigin,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(a.logger))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.RateLimitMiddleware())
	r.Use(commonmw.MetricsMiddleware(a.metrics, serviceName))
	r.Use(apperrors.ErrorMiddleware(a.logger))
	r.Use(commonmw.Timeout(30 * time.Second))

	routes.RegisterRoutes(r, h, tokens)
	return r, nil
}
