// Пакет ats HTTP сервер платформы отчетов ATS (Análisis de Trabajo Seguro).
//
// Основные возможности:
//   - Вход пользователей бригад и сессии на JWT.
//   - Выдача данных формы и прием заполненной заявки.
//   - Формирование PDF и рассылка через пакет business.
//   - Метрики Prometheus на отдельном адресе.
//   - Периодическая очистка временных файлов и сводка реестра.
package ats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/business"
	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/cronmanager"
	"github.com/cicsa-sst/ats/internal/ats/export"
	filestorage "github.com/cicsa-sst/ats/internal/ats/file-storage"
	"github.com/cicsa-sst/ats/internal/ats/intake"
	"github.com/cicsa-sst/ats/internal/ats/maintenance"
	"github.com/cicsa-sst/ats/internal/ats/notifications"
)

const shutdownTimeout = time.Second * 15

type Services struct {
	db       *gorm.DB
	cfg      *config.Config
	business *business.Business
	assets   *intake.AssetStore
	captcha  *CaptchaSignatures
	version  string
}

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "CICSA-ATS")
		return next(c)
	}
}

// NewServices собирает зависимости обработки заявок по конфигурации.
// Недоступное хранилище не мешает запуску: отчеты продолжают формироваться и рассылаться.
func NewServices(ctx context.Context, db *gorm.DB, cfg *config.Config, version string) (*Services, error) {
	assets, err := intake.NewAssetStore(cfg.TempDir)
	if err != nil {
		return nil, err
	}

	storage, err := filestorage.New(ctx, cfg)
	if err != nil {
		slog.Error("Fail init object storage, reports will not be stored", "backend", cfg.StorageBackend, "err", err)
		storage = filestorage.NoopStorage{}
	}

	bl := business.NewBL(business.Deps{
		DB: db,
		Renderer: export.NewRenderer(export.LayoutOptions{
			Company: cfg.CompanyName,
		}, nil, assets.Remove),
		Mailer:   notifications.NewEmailService(cfg),
		Telegram: notifications.NewTelegramService(cfg),
		Storage:  storage,
		Uploader: filestorage.NewLinkUploader(cfg.UploadLink),
	})

	return &Services{
		db:       db,
		cfg:      cfg,
		business: bl,
		assets:   assets,
		captcha:  NewCaptchaService(cfg.SecretKey, cfg.CaptchaDisabled),
		version:  version,
	}, nil
}

// Router маршруты API. Дополнительные middleware подключаются перед остальными.
func (s *Services) Router(extra ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	e.Use(extra...)
	e.Use(ServerHeader)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit("25M"))
	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
	}))

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")
	AddAuthenticationServices(s.db, apiGroup, []byte(s.cfg.SecretKey), s.captcha)

	authGroup := apiGroup.Group("auth/",
		AuthMiddleware(AuthConfig{
			Secret: []byte(s.cfg.SecretKey),
			DB:     s.db,
		}),
	)
	s.AddFormServices(authGroup)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version":           s.version,
			"captcha":           !s.cfg.CaptchaDisabled,
			"max_participantes": s.cfg.MaxParticipants,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Front handler
	if s.cfg.FrontFilesPath != "" {
		slog.Info("Start front routing", "path", s.cfg.FrontFilesPath)
		e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  s.cfg.FrontFilesPath,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/")
			},
		}))
	}

	return e
}

// Jobs периодические задачи сервиса.
func (s *Services) Jobs() cronmanager.JobRegistry {
	return cronmanager.JobRegistry{
		"temp_clean": cronmanager.Job{
			Func:     maintenance.NewTempCleaner(s.cfg.TempDir, s.cfg.TempMaxAge()).Clean,
			Schedule: "*/15 * * * *", // every 15 minutes
		},
		"captcha_clean": cronmanager.Job{
			Func:     s.captcha.ClearExpired,
			Schedule: "@hourly",
		},
		"daily_summary": cronmanager.Job{
			Func:     maintenance.NewDailySummary(s.db).LogSummary,
			Schedule: "0 20 * * *", // daily at 20:00
		},
	}
}

// Server запускает API, сервер метрик и cron задачи до получения SIGINT/SIGTERM.
func Server(db *gorm.DB, cfg *config.Config, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := NewServices(ctx, db, cfg, version)
	if err != nil {
		return err
	}

	cronManager := cronmanager.NewCronManager(s.Jobs())
	if err := cronManager.LoadJobs(); err != nil {
		return err
	}
	cronManager.Start()
	defer cronManager.Stop()

	e := s.Router(echoprometheus.NewMiddleware("ats"))

	bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ats",
		Name:      "boot_time",
		Help:      "Server startup time",
	})
	bootTimeGauge.Set(float64(time.Now().UnixMilli()))
	if err := prometheus.Register(bootTimeGauge); err != nil {
		slog.Error("Register boot time gauge", "err", err)
	}

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.HidePort = true
	metrics.GET("/metrics", echoprometheus.NewHandler()) // adds route to serve gathered metrics

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("Start metrics server", "addr", cfg.MetricsAddr)
		if err := metrics.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		slog.Info("Start ATS server", "addr", cfg.HTTPAddr, "version", version)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(e.Shutdown(shutdownCtx), metrics.Shutdown(shutdownCtx))
	})

	return eg.Wait()
}
