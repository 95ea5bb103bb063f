// Package httpapi serves the PMScan REST API.
//
// Every route lives under /api. Auth routes are public; user, device and
// record routes require a bearer access token checked by middleware.Guard.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/accounts"
	"github.com/MrEthical07/pmscanauth/internal/fleet"
	"github.com/MrEthical07/pmscanauth/internal/repository"
	pmmiddleware "github.com/MrEthical07/pmscanauth/middleware"
)

// Accounts is the account service the user routes call.
type Accounts interface {
	Register(ctx context.Context, in accounts.RegisterInput) (accounts.Profile, error)
	Profile(ctx context.Context, id int64) (accounts.Profile, error)
	Update(ctx context.Context, id int64, in accounts.UpdateInput) (accounts.Profile, error)
	Delete(ctx context.Context, id int64) (string, error)
}

// Fleet is the device and record service.
type Fleet interface {
	CreateDevice(ctx context.Context, userID int64, in fleet.NewDevice) (repository.Device, error)
	ListDevices(ctx context.Context, userID int64) ([]repository.Device, error)
	GetDevice(ctx context.Context, userID, deviceID int64) (repository.Device, error)
	UpdateDevice(ctx context.Context, userID, deviceID int64, in fleet.DeviceChanges) (repository.Device, error)
	DeleteDevice(ctx context.Context, userID, deviceID int64) (string, error)

	CreateRecord(ctx context.Context, userID, deviceID int64, in fleet.NewRecord) (repository.Record, error)
	GetRecord(ctx context.Context, userID, recordID int64) (repository.Record, error)
	ListRecords(ctx context.Context, userID, deviceID int64, req fleet.PageRequest) (fleet.RecordPage, error)
	RenameRecord(ctx context.Context, userID, recordID int64, name string) (repository.Record, error)
	AppendRecordData(ctx context.Context, userID, recordID int64, data []byte) (repository.Record, error)
	DeleteRecord(ctx context.Context, userID, recordID int64) (string, error)
	ListRecordDates(ctx context.Context, userID int64) ([]time.Time, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options wires the API.
type Options struct {
	Engine   *pmscanauth.Engine
	Accounts Accounts
	Fleet    Fleet
	DB       Pinger
	Redis    redis.Cmdable
	Logger   *slog.Logger

	// Registry receives the HTTP metrics and backs /metrics. A private
	// registry is created when nil.
	Registry *prometheus.Registry

	CORSOrigins  []string
	CookieSecure bool
	// RefreshCookieTTL is the refresh cookie max-age.
	RefreshCookieTTL time.Duration
}

// API holds the handler dependencies.
type API struct {
	engine   *pmscanauth.Engine
	accounts Accounts
	fleet    Fleet
	db       Pinger
	redis    redis.Cmdable
	logger   *slog.Logger
	validate *validator.Validate
	cookies  cookieConfig
}

// NewRouter builds the full handler tree, traced with otelhttp.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	cookieTTL := opts.RefreshCookieTTL
	if cookieTTL <= 0 {
		cookieTTL = defaultRefreshCookieTTL
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	a := &API{
		engine:   opts.Engine,
		accounts: opts.Accounts,
		fleet:    opts.Fleet,
		db:       opts.DB,
		redis:    opts.Redis,
		logger:   logger,
		validate: newValidator(),
		cookies:  cookieConfig{secure: opts.CookieSecure, maxAge: cookieTTL},
	}
	metrics := newHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(a.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.middleware)
	r.Use(a.accessLog)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthchecks", a.healthcheck)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", a.login)
			r.Post("/register", a.register)
			r.Post("/refresh", a.refresh)
			r.Post("/logout", a.logout)
			r.Post("/forgot-password", a.forgotPassword)
			r.Post("/reset-password", a.resetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(pmmiddleware.Guard(a.engine, pmmiddleware.WithReject(a.fail)))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", a.getUser)
				r.Patch("/", a.updateUser)
				r.Delete("/", a.deleteUser)
			})

			r.Route("/pmscan", func(r chi.Router) {
				r.Post("/", a.createDevice)
				r.Get("/", a.listDevices)
				r.Get("/{id}", a.getDevice)
				r.Patch("/{id}", a.updateDevice)
				r.Delete("/{id}", a.deleteDevice)
			})

			// {id} is the device id on POST and GET, and the record id on
			// DELETE.
			r.Route("/records", func(r chi.Router) {
				r.Get("/dates/all", a.listRecordDates)
				r.Get("/single/{id}", a.getRecord)
				r.Patch("/update-record-name/{id}", a.renameRecord)
				r.Patch("/append-data/{id}", a.appendRecordData)
				r.Post("/{id}", a.createRecord)
				r.Get("/{id}", a.listRecords)
				r.Delete("/{id}", a.deleteRecord)
			})
		})
	})

	return otelhttp.NewHandler(r, "pmscan-api")
}
