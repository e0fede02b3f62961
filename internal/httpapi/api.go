package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"societyos.org/internal/auth"
	"societyos.org/internal/billing"
	"societyos.org/internal/docs"
	"societyos.org/internal/obs"
	"societyos.org/internal/society"
	"societyos.org/internal/stream"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth      *auth.Service
	societies *society.Service
	billing   *billing.Service
	docs      *docs.Service
	stream    *stream.Stream

	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
}

func New(rp ReadyProbe, version string, authSvc *auth.Service, societies *society.Service, billingSvc *billing.Service, docsSvc *docs.Service, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,

		auth:      authSvc,
		societies: societies,
		billing:   billingSvc,
		docs:      docsSvc,
		stream:    st,

		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 10 << 20,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// identity and sessions
	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/refresh-token", a.handleRefreshToken)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)

	// societies
	a.mux.HandleFunc("/society/create-society", a.handleCreateSociety)
	a.mux.HandleFunc("/society/add-member", a.handleAddMember)

	// billing
	a.mux.HandleFunc("/payment/create", a.handleCreatePayment)
	a.mux.HandleFunc("/payment/manager/", a.handleManagerPayments)
	a.mux.HandleFunc("/payment/member/", a.handleMemberPayments)
	a.mux.HandleFunc("/payment/mark-paid", a.handleMarkPaid)
	a.mux.HandleFunc("/payment/paid/", a.handlePaidMembers)

	// documents
	a.mux.HandleFunc("/document/upload", a.handleDocumentUpload)
	a.mux.HandleFunc("/document/manager/", a.handleManagerDocuments)

	// live billing events (SSE)
	a.mux.HandleFunc("/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает http.Handler для сервера (без доп. аргументов).
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}
