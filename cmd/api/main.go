package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore-health/clinicore-backend/api/routes"
	"github.com/clinicore-health/clinicore-backend/internal/appointments"
	"github.com/clinicore-health/clinicore-backend/internal/auth"
	"github.com/clinicore-health/clinicore-backend/internal/documents"
	"github.com/clinicore-health/clinicore-backend/internal/medicalrecords"
	"github.com/clinicore-health/clinicore-backend/internal/notifications"
	"github.com/clinicore-health/clinicore-backend/internal/ratings"
	"github.com/clinicore-health/clinicore-backend/internal/users"
	"github.com/clinicore-health/clinicore-backend/pkg/auth/session"
	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/clinicore-health/clinicore-backend/pkg/db"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/mailer"
	"github.com/clinicore-health/clinicore-backend/pkg/metrics"
	"github.com/clinicore-health/clinicore-backend/pkg/migrate"
	"github.com/clinicore-health/clinicore-backend/pkg/redis"
	"github.com/clinicore-health/clinicore-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	challengeStore, err := auth.NewChallengeStore(redisClient, redisClient, cfg.OTP)
	if err != nil {
		logg.Error(context.Background(), "failed to create challenge store", err)
		os.Exit(1)
	}

	var mail mailer.Mailer
	if cfg.FeatureFlags.OTPDryRun {
		mail = mailer.NewLogMailer(logg)
		logg.Warn(context.Background(), "OTP dry run enabled, codes go to the log")
	} else {
		mail, err = mailer.NewSendgrid(cfg.Sendgrid)
		if err != nil {
			logg.Error(context.Background(), "failed to create mailer", err)
			os.Exit(1)
		}
	}

	objectStore, err := gcs.New(context.Background(), cfg.GCP, cfg.GCS)
	if err != nil {
		logg.Error(context.Background(), "failed to create object storage client", err)
		os.Exit(1)
	}
	defer func() {
		if err := objectStore.Close(); err != nil {
			logg.Error(context.Background(), "error closing object storage client", err)
		}
	}()

	usersService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.Params{
		Users:      usersService,
		Challenges: challengeStore,
		Sessions:   sessionManager,
		Mailer:     mail,
		JWT:        cfg.JWT,
		OTP:        cfg.OTP,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	appointmentsService, err := appointments.NewService(appointments.NewRepository(dbClient.DB()), notificationsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointments service", err)
		os.Exit(1)
	}

	medicalRecordsService, err := medicalrecords.NewService(medicalrecords.NewRepository(dbClient.DB()), notificationsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create medical records service", err)
		os.Exit(1)
	}

	documentsService, err := documents.NewService(documents.NewRepository(dbClient.DB()), objectStore, notificationsService, cfg.Documents, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create documents service", err)
		os.Exit(1)
	}

	ratingsService, err := ratings.NewService(ratings.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ratings service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, httpMetrics, routes.Services{
			Auth:           authService,
			Users:          usersService,
			Appointments:   appointmentsService,
			MedicalRecords: medicalRecordsService,
			Documents:      documentsService,
			Notifications:  notificationsService,
			Ratings:        ratingsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
