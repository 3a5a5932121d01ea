package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/whitecross/gateway/internal/api/handlers"
	"github.com/whitecross/gateway/internal/api/middleware"
	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/cache"
	"github.com/whitecross/gateway/internal/config"
	"github.com/whitecross/gateway/internal/domain/appointments"
	"github.com/whitecross/gateway/internal/domain/billing"
	"github.com/whitecross/gateway/internal/domain/healthrecords"
	"github.com/whitecross/gateway/internal/domain/incidents"
	"github.com/whitecross/gateway/internal/domain/medications"
	"github.com/whitecross/gateway/internal/domain/resource"
	"github.com/whitecross/gateway/internal/domain/students"
	"github.com/whitecross/gateway/internal/metrics"
	"github.com/whitecross/gateway/internal/ratelimit"
)

// Deps are the long-lived collaborators built by the serve command.
type Deps struct {
	Client  *apiclient.Client
	Cache   *cache.Cache
	Audit   *audit.Logger
	JWT     *auth.JWTManager
	Limiter *ratelimit.Limiter

	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter builds the gateway handler: probes and metrics at the root, the
// BFF API under /api/v1, all behind the shared middleware chain.
func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	env := cfg.Environment
	secure := cfg.IsProduction()
	maxBody := cfg.Server.MaxBodyBytes
	trusted := middleware.ParseTrustedProxies(cfg.Server.TrustedProxyCIDRs)

	domainDeps := resource.Deps{Client: deps.Client, Cache: deps.Cache, Audit: deps.Audit}
	studentsH := handlers.NewStudentsHandler(students.NewService(domainDeps), env, maxBody)
	appointmentsH := handlers.NewAppointmentsHandler(appointments.NewService(domainDeps), env, maxBody)
	recordsH := handlers.NewHealthRecordsHandler(healthrecords.NewService(domainDeps), env, maxBody)
	medicationsH := handlers.NewMedicationsHandler(medications.NewService(domainDeps), env, maxBody)
	incidentsH := handlers.NewIncidentsHandler(incidents.NewService(domainDeps), env, maxBody)
	invoicesH := handlers.NewInvoicesHandler(billing.NewService(domainDeps), env, maxBody)
	authH := &handlers.AuthHandler{
		Client:      deps.Client,
		JWT:         deps.JWT,
		Audit:       deps.Audit,
		CookieName:  cfg.Auth.CookieName,
		Secure:      secure,
		Env:         env,
		MaxBody:     maxBody,
		CSRFEnabled: cfg.Auth.CSRFKey != "",
	}

	rl := middleware.RateLimit(deps.Limiter, trusted, env)
	limited := func(policy string, h http.Handler) http.Handler {
		return middleware.WithRateLimitPolicyHandler(policy)(rl(h))
	}

	api := http.NewServeMux()

	// guarded registers a route that needs a session allowed to perform the
	// method's action on res.
	guarded := func(method, path string, res auth.Resource, h http.HandlerFunc) {
		action := actionFor(method)
		chain := middleware.RequirePermission(res, action, deps.Audit, env)(h)
		api.Handle(method+" "+path, limited(policyFor(method, res), chain))
	}

	api.Handle("POST /api/v1/auth/login", limited(ratelimit.PolicyLogin, http.HandlerFunc(authH.Login)))
	api.Handle("POST /api/v1/auth/logout", limited(ratelimit.PolicyMutation, http.HandlerFunc(authH.Logout)))
	api.Handle("GET /api/v1/auth/me", limited(ratelimit.PolicyAPI, middleware.RequireAuth(env)(http.HandlerFunc(authH.Me))))
	api.Handle("GET /api/v1/auth/csrf", limited(ratelimit.PolicyAPI, http.HandlerFunc(authH.CSRF)))

	guarded(http.MethodGet, "/api/v1/students", auth.ResourceStudents, studentsH.List)
	guarded(http.MethodPost, "/api/v1/students", auth.ResourceStudents, studentsH.Create)
	guarded(http.MethodGet, "/api/v1/students/{id}", auth.ResourceStudents, studentsH.Get)
	guarded(http.MethodPut, "/api/v1/students/{id}", auth.ResourceStudents, studentsH.Update)
	guarded(http.MethodDelete, "/api/v1/students/{id}", auth.ResourceStudents, studentsH.Delete)
	guarded(http.MethodPost, "/api/v1/students/{id}/deactivate", auth.ResourceStudents, studentsH.Deactivate)
	guarded(http.MethodPost, "/api/v1/students/{id}/reactivate", auth.ResourceStudents, studentsH.Reactivate)
	// The summary carries health records, so both grants are required.
	api.Handle("GET /api/v1/students/{id}/summary", limited(ratelimit.PolicyPHI,
		middleware.RequirePermission(auth.ResourceStudents, auth.ActionRead, deps.Audit, env)(
			middleware.RequirePermission(auth.ResourceHealthRecords, auth.ActionRead, deps.Audit, env)(
				http.HandlerFunc(studentsH.Summary)))))

	guarded(http.MethodGet, "/api/v1/appointments", auth.ResourceAppointments, appointmentsH.List)
	guarded(http.MethodPost, "/api/v1/appointments", auth.ResourceAppointments, appointmentsH.Create)
	guarded(http.MethodGet, "/api/v1/appointments/{id}", auth.ResourceAppointments, appointmentsH.Get)
	guarded(http.MethodPut, "/api/v1/appointments/{id}", auth.ResourceAppointments, appointmentsH.Update)
	guarded(http.MethodDelete, "/api/v1/appointments/{id}", auth.ResourceAppointments, appointmentsH.Delete)
	guarded(http.MethodPost, "/api/v1/appointments/{id}/cancel", auth.ResourceAppointments, appointmentsH.Cancel)
	guarded(http.MethodPost, "/api/v1/appointments/{id}/complete", auth.ResourceAppointments, appointmentsH.Complete)
	guarded(http.MethodPost, "/api/v1/appointments/{id}/no-show", auth.ResourceAppointments, appointmentsH.NoShow)

	guarded(http.MethodGet, "/api/v1/health-records", auth.ResourceHealthRecords, recordsH.List)
	guarded(http.MethodPost, "/api/v1/health-records", auth.ResourceHealthRecords, recordsH.Create)
	guarded(http.MethodGet, "/api/v1/health-records/{id}", auth.ResourceHealthRecords, recordsH.Get)
	guarded(http.MethodPut, "/api/v1/health-records/{id}", auth.ResourceHealthRecords, recordsH.Update)
	guarded(http.MethodDelete, "/api/v1/health-records/{id}", auth.ResourceHealthRecords, recordsH.Delete)

	guarded(http.MethodGet, "/api/v1/medications", auth.ResourceMedications, medicationsH.List)
	guarded(http.MethodPost, "/api/v1/medications", auth.ResourceMedications, medicationsH.Create)
	guarded(http.MethodGet, "/api/v1/medications/{id}", auth.ResourceMedications, medicationsH.Get)
	guarded(http.MethodPut, "/api/v1/medications/{id}", auth.ResourceMedications, medicationsH.Update)
	guarded(http.MethodDelete, "/api/v1/medications/{id}", auth.ResourceMedications, medicationsH.Delete)
	guarded(http.MethodGet, "/api/v1/medications/{id}/administrations", auth.ResourceMedications, medicationsH.ListAdministrations)
	guarded(http.MethodPost, "/api/v1/medications/{id}/administrations", auth.ResourceMedications, medicationsH.RecordAdministration)

	guarded(http.MethodGet, "/api/v1/incidents", auth.ResourceIncidents, incidentsH.List)
	guarded(http.MethodPost, "/api/v1/incidents", auth.ResourceIncidents, incidentsH.Create)
	guarded(http.MethodGet, "/api/v1/incidents/{id}", auth.ResourceIncidents, incidentsH.Get)
	guarded(http.MethodPut, "/api/v1/incidents/{id}", auth.ResourceIncidents, incidentsH.Update)
	guarded(http.MethodDelete, "/api/v1/incidents/{id}", auth.ResourceIncidents, incidentsH.Delete)
	guarded(http.MethodGet, "/api/v1/incidents/{id}/follow-ups", auth.ResourceIncidents, incidentsH.ListFollowUps)
	guarded(http.MethodPost, "/api/v1/incidents/{id}/follow-ups", auth.ResourceIncidents, incidentsH.AddFollowUp)

	guarded(http.MethodGet, "/api/v1/billing/invoices", auth.ResourceBilling, invoicesH.List)
	guarded(http.MethodPost, "/api/v1/billing/invoices", auth.ResourceBilling, invoicesH.Create)
	guarded(http.MethodGet, "/api/v1/billing/invoices/{id}", auth.ResourceBilling, invoicesH.Get)
	guarded(http.MethodPut, "/api/v1/billing/invoices/{id}", auth.ResourceBilling, invoicesH.Update)
	guarded(http.MethodDelete, "/api/v1/billing/invoices/{id}", auth.ResourceBilling, invoicesH.Delete)
	guarded(http.MethodPost, "/api/v1/billing/invoices/{id}/payments", auth.ResourceBilling, invoicesH.RecordPayment)

	var apiHandler http.Handler = api
	if cfg.Auth.CSRFKey != "" {
		apiHandler = middleware.CSRFProtection([]byte(cfg.Auth.CSRFKey), secure, cfg.CORS.AllowedOrigins, env)(apiHandler)
	}

	var pinger handlers.Pinger
	if deps.Client != nil {
		pinger = deps.Client
	}
	health := handlers.NewHealthChecker(pinger, deps.Version, deps.GitCommit)

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /version", VersionHandler(BuildInfo{
		Version:     deps.Version,
		GitCommit:   deps.GitCommit,
		BuildDate:   deps.BuildDate,
		Environment: env,
	}))
	mux.Handle("/api/v1/", apiHandler)

	var h http.Handler = mux
	h = middleware.RequestSize(maxBody, env)(h)
	h = middleware.RequestTimeout(cfg.Backend.RetryBudget())(h)
	h = middleware.Session(deps.JWT, cfg.Auth.CookieName)(h)
	h = middleware.CORS(cfg.CORS, logger)(h)
	h = middleware.SecurityHeaders(secure)(h)
	h = middleware.RequestLogging(logger)(h)
	h = metrics.HTTPMiddleware(h)
	h = middleware.Tracing(h)
	h = middleware.CorrelationID(logger, trusted)(h)
	return h
}

func actionFor(method string) auth.Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return auth.ActionRead
	case http.MethodDelete:
		return auth.ActionDelete
	default:
		return auth.ActionWrite
	}
}

// policyFor picks the rate-limit policy: writes share the mutation budget,
// PHI reads the tighter phi budget, everything else the api budget.
func policyFor(method string, res auth.Resource) string {
	if actionFor(method) != auth.ActionRead {
		return ratelimit.PolicyMutation
	}
	switch res {
	case auth.ResourceHealthRecords, auth.ResourceMedications:
		return ratelimit.PolicyPHI
	default:
		return ratelimit.PolicyAPI
	}
}
