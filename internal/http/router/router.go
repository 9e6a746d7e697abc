package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/delcom/healthtrack/internal/http/handler"
	"github.com/delcom/healthtrack/internal/http/middleware"
	"github.com/delcom/healthtrack/internal/http/response"
	"github.com/delcom/healthtrack/internal/http/web"
	"github.com/delcom/healthtrack/internal/service"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	UserHandler      *handler.UserHandler
	RecordHandler    *handler.RecordHandler
	AuthWebHandler   *web.AuthWebHandler
	RecordWebHandler *web.RecordWebHandler
	Gate             *service.Gate
	Sessions         *web.SessionManager
	Logger           *slog.Logger
	AuthRateLimitRPM int
	ReadyCheck       func() error
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if dep.Logger != nil {
		r.Use(middleware.RequestLogger(dep.Logger))
	}

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, "ok", nil)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.ReadyCheck != nil {
			if err := dep.ReadyCheck(); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "dependencies are not ready")
				return
			}
		}
		response.Success(w, "ready", nil)
	})
	r.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusInternalServerError, "something went wrong")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(middleware.Authenticate(dep.Gate)).Post("/logout", dep.AuthHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(dep.Gate))
			r.Get("/users/me", dep.UserHandler.Me)
			r.Put("/users/me", dep.UserHandler.UpdateProfile)
			r.Put("/users/me/password", dep.UserHandler.ChangePassword)

			r.Route("/health-records", func(r chi.Router) {
				r.Post("/", dep.RecordHandler.Create)
				r.Get("/", dep.RecordHandler.List)
				r.Get("/{id}", dep.RecordHandler.Get)
				r.Put("/{id}", dep.RecordHandler.Update)
				r.Delete("/{id}", dep.RecordHandler.Delete)
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", dep.AuthWebHandler.LoginPage)
		r.With(authLimiter).Post("/login", dep.AuthWebHandler.Login)
		r.Get("/register", dep.AuthWebHandler.RegisterPage)
		r.With(authLimiter).Post("/register", dep.AuthWebHandler.Register)
		r.Get("/logout", dep.AuthWebHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(web.SessionAuth(dep.Gate, dep.Sessions))
		r.Get("/", dep.RecordWebHandler.Home)
		r.Route("/health-records", func(r chi.Router) {
			r.Post("/add", dep.RecordWebHandler.Add)
			r.Post("/edit", dep.RecordWebHandler.Edit)
			r.Post("/delete", dep.RecordWebHandler.Delete)
			r.Post("/edit-photo", dep.RecordWebHandler.EditPhoto)
			r.Get("/photo/{filename}", dep.RecordWebHandler.Photo)
			r.Get("/{id}", dep.RecordWebHandler.Detail)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
