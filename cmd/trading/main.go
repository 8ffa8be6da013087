// 模拟交易服务入口
// 装配行情、订单、组合、用户、自选五个上下文并启动 HTTP 服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	mdapp "github.com/wyfcoding/papertrading/internal/marketdata/application"
	mdhttp "github.com/wyfcoding/papertrading/internal/marketdata/interfaces/http"
	mdmysql "github.com/wyfcoding/papertrading/internal/marketdata/infrastructure/persistence/mysql"
	mdredis "github.com/wyfcoding/papertrading/internal/marketdata/infrastructure/persistence/redis"
	orderapp "github.com/wyfcoding/papertrading/internal/order/application"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	orderhttp "github.com/wyfcoding/papertrading/internal/order/interfaces/http"
	ordermsg "github.com/wyfcoding/papertrading/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/papertrading/internal/order/infrastructure/persistence/mysql"
	pfapp "github.com/wyfcoding/papertrading/internal/portfolio/application"
	pfhttp "github.com/wyfcoding/papertrading/internal/portfolio/interfaces/http"
	pfmysql "github.com/wyfcoding/papertrading/internal/portfolio/infrastructure/persistence/mysql"
	userapp "github.com/wyfcoding/papertrading/internal/user/application"
	userhttp "github.com/wyfcoding/papertrading/internal/user/interfaces/http"
	usermysql "github.com/wyfcoding/papertrading/internal/user/infrastructure/persistence/mysql"
	wlapp "github.com/wyfcoding/papertrading/internal/watchlist/application"
	wlhttp "github.com/wyfcoding/papertrading/internal/watchlist/interfaces/http"
	wlmysql "github.com/wyfcoding/papertrading/internal/watchlist/infrastructure/persistence/mysql"
	"github.com/wyfcoding/papertrading/pkg/cache"
	"github.com/wyfcoding/papertrading/pkg/config"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
	"github.com/wyfcoding/papertrading/pkg/middleware"
	"github.com/wyfcoding/papertrading/pkg/mq"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "starting service",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	database, err := db.Init(cfg.Database)
	if err != nil {
		logger.Fatal(ctx, "failed to connect database", "error", err)
	}
	defer database.Close()

	if err := migrate(database); err != nil {
		logger.Fatal(ctx, "failed to migrate database", "error", err)
	}

	redisCache, err := cache.New(cfg.Redis)
	if err != nil {
		// Redis 不可用时降级为直读数据库
		logger.Warn(ctx, "redis unavailable, price cache disabled", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	var producer *mq.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mq.NewProducer(cfg.Kafka)
		if err != nil {
			logger.Warn(ctx, "kafka unavailable, event publishing disabled", "error", err)
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	m := metrics.New(cfg.ServiceName)

	defaultCash, err := decimal.NewFromString(cfg.Trading.DefaultCashBalance)
	if err != nil {
		logger.Fatal(ctx, "invalid trading.default_cash_balance", "value", cfg.Trading.DefaultCashBalance)
	}

	// 行情上下文
	assetRepo := mdmysql.NewAssetRepository(database.DB)
	optionRepo := mdmysql.NewOptionRepository(database.DB)
	historyRepo := mdmysql.NewPriceHistoryRepository(database.DB)
	var marketDataSvc *mdapp.MarketDataService
	if redisCache != nil {
		priceCache := mdredis.NewPriceCache(redisCache, time.Duration(cfg.Trading.PriceCacheTTL)*time.Second)
		marketDataSvc = mdapp.NewMarketDataService(assetRepo, optionRepo, historyRepo, priceCache)
	} else {
		marketDataSvc = mdapp.NewMarketDataService(assetRepo, optionRepo, historyRepo, nil)
	}

	// 订单上下文
	orderRepo := ordermysql.NewOrderRepository(database.DB)
	executionRepo := ordermysql.NewExecutionRepository(database.DB)
	portfolioRepo := pfmysql.NewPortfolioRepository(database.DB)
	holdingRepo := pfmysql.NewHoldingRepository(database.DB)

	var publisher orderdomain.EventPublisher
	if producer != nil {
		publisher = ordermsg.NewKafkaEventPublisher(producer, cfg.Kafka.OrderTopic)
	}

	orderSvc := orderapp.NewOrderService(
		database,
		orderRepo,
		executionRepo,
		portfolioRepo,
		holdingRepo,
		marketDataSvc,
		publisher,
		m,
		cfg.Trading.ConflictRetries,
	)

	// 组合上下文
	portfolioSvc := pfapp.NewPortfolioService(
		database,
		portfolioRepo,
		holdingRepo,
		marketDataSvc,
		m,
		defaultCash,
		cfg.Trading.ConflictRetries,
	)

	// 用户上下文
	userRepo := usermysql.NewUserRepository(database.DB)
	userSvc := userapp.NewUserService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	// 自选上下文
	watchlistRepo := wlmysql.NewWatchlistRepository(database.DB)
	watchlistSvc := wlapp.NewWatchlistService(watchlistRepo, marketDataSvc)

	engine := buildEngine(cfg, m)
	api := engine.Group("/api/v1")
	mdhttp.NewMarketDataHandler(marketDataSvc).RegisterRoutes(api)
	orderhttp.NewOrderHandler(orderSvc).RegisterRoutes(api)
	pfhttp.NewPortfolioHandler(portfolioSvc).RegisterRoutes(api)
	userhttp.NewUserHandler(userSvc).RegisterRoutes(api)
	wlhttp.NewWatchlistHandler(watchlistSvc).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	run(ctx, server)
}

func buildEngine(cfg *config.Config, m *metrics.Metrics) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.Logging(), middleware.Metrics(m))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	return engine
}

func migrate(database *db.DB) error {
	migrations := []func(*gorm.DB) error{
		mdmysql.AutoMigrate,
		ordermysql.AutoMigrate,
		pfmysql.AutoMigrate,
		usermysql.AutoMigrate,
		wlmysql.AutoMigrate,
	}
	for _, fn := range migrations {
		if err := fn(database.DB); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, server *http.Server) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal(context.Background(), "server exited with error", "error", err)
	}
	logger.Info(context.Background(), "server stopped")
}
