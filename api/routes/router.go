package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicore-health/clinicore-backend/api/controllers"
	"github.com/clinicore-health/clinicore-backend/api/middleware"
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
	"github.com/clinicore-health/clinicore-backend/pkg/metrics"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/clinicore-health/clinicore-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth           auth.Service
	Users          users.Service
	Appointments   appointments.Service
	MedicalRecords medicalrecords.Service
	Documents      documents.Service
	Notifications  notifications.Service
	Ratings        ratings.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	forgotPolicy := middleware.NewAuthRateLimitPolicy(
		"forgot",
		cfg.AuthRateLimit.ForgotWindow,
		cfg.AuthRateLimit.ForgotIPLimit,
		cfg.AuthRateLimit.ForgotLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbClient, redisClient, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/otp/verify", controllers.AuthVerifyOTP(svcs.Auth, logg))
		r.Post("/otp/resend", controllers.AuthResendOTP(svcs.Auth, logg))
		r.Post("/password/change", controllers.AuthChangePassword(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(forgotPolicy, redisClient, logg)).
			Post("/password/forgot", controllers.AuthForgotPassword(svcs.Auth, logg))
		r.Post("/password/reset", controllers.AuthResetPassword(svcs.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Post("/logout", controllers.AuthLogout(svcs.Auth, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.UsersMe(svcs.Users, logg))
			r.Put("/", controllers.UsersUpdateMe(svcs.Users, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(rbac.RoleAdmin, logg))
			r.Get("/", controllers.UsersList(svcs.Users, logg))
			r.Post("/", controllers.UsersCreate(svcs.Users, logg))
			r.Get("/{id}", controllers.UsersGet(svcs.Users, logg))
			r.Put("/{id}", controllers.UsersAdminUpdate(svcs.Users, logg))
			r.Delete("/{id}", controllers.UsersDeactivate(svcs.Users, logg))
			r.Post("/{id}/recalculate-role", controllers.UsersRecalculateRole(svcs.Users, logg))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", controllers.AppointmentsList(svcs.Appointments, logg))
			r.Post("/", controllers.AppointmentsCreate(svcs.Appointments, logg))
			r.Get("/calendar", controllers.AppointmentsCalendar(svcs.Appointments, logg))
			r.Get("/{id}", controllers.AppointmentsGet(svcs.Appointments, logg))
			r.Put("/{id}", controllers.AppointmentsUpdate(svcs.Appointments, logg))
			r.Patch("/{id}/status", controllers.AppointmentsUpdateStatus(svcs.Appointments, logg))
		})

		r.Route("/medical-records", func(r chi.Router) {
			r.Get("/", controllers.MedicalRecordsList(svcs.MedicalRecords, logg))
			r.Get("/{id}", controllers.MedicalRecordsGet(svcs.MedicalRecords, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(logg, "medical_records.write", "role.doctor", "role.admin"))
				r.Post("/", controllers.MedicalRecordsCreate(svcs.MedicalRecords, logg))
				r.Put("/{id}", controllers.MedicalRecordsUpdate(svcs.MedicalRecords, logg))
			})
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", controllers.DocumentsList(svcs.Documents, logg))
			r.Post("/", controllers.DocumentsInitiateUpload(svcs.Documents, logg))
			r.Post("/{id}/confirm", controllers.DocumentsConfirmUpload(svcs.Documents, logg))
			r.Get("/{id}/download", controllers.DocumentsDownloadURL(svcs.Documents, logg))
			r.Delete("/{id}", controllers.DocumentsDelete(svcs.Documents, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(svcs.Notifications, logg))
			r.Get("/unread-count", controllers.NotificationsUnreadCount(svcs.Notifications, logg))
			r.Post("/{id}/read", controllers.NotificationsMarkRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(svcs.Notifications, logg))
		})

		r.Route("/ratings", func(r chi.Router) {
			r.Post("/", controllers.RatingsRate(svcs.Ratings, logg))
			r.Get("/doctors/{doctorId}", controllers.RatingsSummary(svcs.Ratings, logg))
			r.Get("/doctors/{doctorId}/mine", controllers.RatingsGetOwn(svcs.Ratings, logg))
			r.Delete("/doctors/{doctorId}", controllers.RatingsRemove(svcs.Ratings, logg))
		})
	})

	return r
}
