// Package httpapi exposes the REST API consumed by the marketing site and
// the dashboards.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gasamara891-boop/river/internal/domain/profile"
	"github.com/gasamara891-boop/river/internal/domain/wallet"
	"github.com/gasamara891-boop/river/internal/metrics"
	"github.com/gasamara891-boop/river/internal/middleware"
	"github.com/gasamara891-boop/river/internal/services/activity"
	"github.com/gasamara891-boop/river/internal/services/admin"
	"github.com/gasamara891-boop/river/internal/services/auth"
	"github.com/gasamara891-boop/river/internal/services/invest"
	"github.com/gasamara891-boop/river/internal/services/portfolio"
	"github.com/gasamara891-boop/river/internal/services/ticker"
	"github.com/gasamara891-boop/river/internal/services/withdraw"
	"github.com/gasamara891-boop/river/internal/storage"
	"github.com/gasamara891-boop/river/pkg/logger"
)

// Config carries the handler's cross-cutting settings.
type Config struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
	RateLimit      bool
	AuditPath      string
	AuditRingSize  int
}

// Services bundles the domain services the API fronts.
type Services struct {
	Auth      *auth.Service
	Invest    *invest.Service
	Withdraw  *withdraw.Service
	Portfolio *portfolio.Service
	Admin     *admin.Service
	Feed      *admin.Feed
	Activity  *activity.Service
	Ticker    *ticker.Service
}

type handler struct {
	svc   Services
	m     *metrics.Metrics
	audit *auditLog
	log   *logger.Logger
}

// NewHandler builds the full router.
func NewHandler(cfg Config, svc Services, m *metrics.Metrics, log *logger.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	sink, err := newFileAuditSink(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit sink: %w", err)
	}
	var trail auditSink
	if sink != nil {
		trail = sink
	}
	h := &handler{
		svc:   svc,
		m:     m,
		audit: newAuditLog(cfg.AuditRingSize, trail),
		log:   log,
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log))
	if m != nil {
		r.Use(middleware.MetricsMiddleware(m))
	}
	r.Use(middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler)
	if cfg.RateLimit {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
		limiter.StartCleanup(time.Minute)
		r.Use(limiter.Handler)
	}

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/prices", h.prices).Methods(http.MethodGet)
	api.HandleFunc("/assets", h.assets).Methods(http.MethodGet)
	api.HandleFunc("/auth/signup", h.signUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/resend", h.resendConfirmation).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.NewAuthMiddleware(cfg.JWTSecret, log, nil).Handler)
	authed.HandleFunc("/auth/session", h.session).Methods(http.MethodGet)
	authed.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
	authed.HandleFunc("/deposit-address", h.depositAddress).Methods(http.MethodGet)
	authed.HandleFunc("/investments", h.submitInvestment).Methods(http.MethodPost)
	authed.HandleFunc("/investments", h.recentInvestments).Methods(http.MethodGet)
	authed.HandleFunc("/withdrawals", h.submitWithdrawal).Methods(http.MethodPost)
	authed.HandleFunc("/withdrawals", h.withdrawalHistory).Methods(http.MethodGet)
	authed.HandleFunc("/portfolio", h.portfolioSummary).Methods(http.MethodGet)
	authed.HandleFunc("/activity", h.activityHistory).Methods(http.MethodGet)

	adminRouter := authed.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/snapshot", h.requireAdmin(h.adminSnapshot)).Methods(http.MethodGet)
	adminRouter.HandleFunc("/investments/{id}/approve", h.requireAdmin(h.approveInvestment)).Methods(http.MethodPost)
	adminRouter.HandleFunc("/withdrawals/{id}/approve", h.requireAdmin(h.approveWithdrawal)).Methods(http.MethodPost)
	adminRouter.HandleFunc("/users/{id}", h.requireAdmin(h.deleteUser)).Methods(http.MethodDelete)
	adminRouter.HandleFunc("/users/{id}/interest", h.requireAdmin(h.setManualInterest)).Methods(http.MethodPut)
	adminRouter.HandleFunc("/addresses", h.requireAdmin(h.saveAddresses)).Methods(http.MethodPut)
	adminRouter.HandleFunc("/activity", h.requireAdmin(h.adminActivity)).Methods(http.MethodGet)
	adminRouter.HandleFunc("/audit", h.requireAdmin(h.auditTrail)).Methods(http.MethodGet)

	return r, nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) prices(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ticker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"quotes": []any{}})
		return
	}
	quotes, updatedAt := h.svc.Ticker.Quotes()
	writeJSON(w, http.StatusOK, map[string]any{
		"quotes":     quotes,
		"updated_at": updatedAt,
	})
}

func (h *handler) assets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assets": h.svc.Invest.Assets()})
}

// requireAuthService guards the auth routes in deployments that run without
// an identity provider, such as local in-memory mode.
func (h *handler) requireAuthService(w http.ResponseWriter) bool {
	if h.svc.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("authentication not configured"))
		return false
	}
	return true
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	if !h.requireAuthService(w) {
		return
	}
	var payload struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.svc.Auth.SignUp(r.Context(), payload.Name, payload.Email, payload.Password, payload.ConfirmPassword)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResultPayload(res))
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	if !h.requireAuthService(w) {
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.svc.Auth.SignIn(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResultPayload(res))
}

func (h *handler) resendConfirmation(w http.ResponseWriter, r *http.Request) {
	if !h.requireAuthService(w) {
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Auth.ResendConfirmation(r.Context(), payload.Email); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	if !h.requireAuthService(w) {
		return
	}
	claims, _ := middleware.UserClaims(r.Context())
	p, err := h.svc.Auth.Session(r.Context(), claims.Token)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if !h.requireAuthService(w) {
		return
	}
	claims, _ := middleware.UserClaims(r.Context())
	if err := h.svc.Auth.SignOut(r.Context(), claims.Token); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *handler) depositAddress(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("coin")
	network := r.URL.Query().Get("network")
	addr, err := h.svc.Invest.DepositAddress(r.Context(), coin, network)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (h *handler) submitInvestment(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	var payload struct {
		Coin          string  `json:"coin"`
		Network       string  `json:"network"`
		Amount        float64 `json:"amount"`
		AddressCopied bool    `json:"address_copied"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	inv, err := h.svc.Invest.Submit(r.Context(), invest.SubmitRequest{
		UserID:        claims.UserID,
		Coin:          payload.Coin,
		Network:       payload.Network,
		Amount:        payload.Amount,
		AddressCopied: payload.AddressCopied,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if h.m != nil {
		h.m.RecordSubmission("investment")
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) recentInvestments(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	limit := queryInt(r, "limit", 0)
	list, err := h.svc.Invest.Recent(r.Context(), claims.UserID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"investments": list})
}

func (h *handler) submitWithdrawal(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	var payload struct {
		Coin    string  `json:"coin"`
		Network string  `json:"network"`
		Amount  float64 `json:"amount"`
		Address string  `json:"address"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wd, err := h.svc.Withdraw.Submit(r.Context(), withdraw.SubmitRequest{
		UserID:  claims.UserID,
		Coin:    payload.Coin,
		Network: payload.Network,
		Amount:  payload.Amount,
		Address: payload.Address,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if h.m != nil {
		h.m.RecordSubmission("withdrawal")
	}
	// Echo the refreshed history so the dashboard renders the new pending
	// row without a second round trip.
	list, err := h.svc.Withdraw.History(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"withdrawal":  wd,
		"withdrawals": list,
	})
}

func (h *handler) withdrawalHistory(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	list, err := h.svc.Withdraw.History(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawals": list})
}

func (h *handler) portfolioSummary(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	summary, err := h.svc.Portfolio.Summary(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) activityHistory(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.UserClaims(r.Context())
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)
	entries, total, err := h.svc.Activity.List(r.Context(), claims.UserID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

// adminActivity lists activity across all users, or one user's paged
// history when user_id is given.
func (h *handler) adminActivity(w http.ResponseWriter, r *http.Request, _ profile.Profile) {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", 0)
		entries, total, err := h.svc.Activity.List(r.Context(), userID, offset, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entries": entries,
			"total":   total,
		})
		return
	}
	entries, err := h.svc.Activity.Recent(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// adminHandler receives the already-authorized acting profile.
type adminHandler func(w http.ResponseWriter, r *http.Request, actor profile.Profile)

func (h *handler) requireAdmin(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.UserClaims(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
			return
		}
		actor, err := h.svc.Admin.Authorize(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		next(w, r, actor)
	}
}

func (h *handler) adminSnapshot(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	// The feed's copy is only trustworthy while realtime changes reach it;
	// otherwise the snapshot is loaded directly.
	if h.svc.Feed != nil && h.svc.Feed.Live() {
		writeJSON(w, http.StatusOK, h.svc.Feed.Current())
		return
	}
	snap, err := h.svc.Admin.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) approveInvestment(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	id := mux.Vars(r)["id"]
	inv, err := h.svc.Admin.ApproveInvestment(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if h.m != nil {
		h.m.RecordApproval("investment")
	}
	h.record(r, actor.ID, "approve_investment", id, http.StatusOK)
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) approveWithdrawal(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	id := mux.Vars(r)["id"]
	wd, err := h.svc.Admin.ApproveWithdrawal(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if h.m != nil {
		h.m.RecordApproval("withdrawal")
	}
	h.record(r, actor.ID, "approve_withdrawal", id, http.StatusOK)
	writeJSON(w, http.StatusOK, wd)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	id := mux.Vars(r)["id"]
	if id == actor.ID {
		writeError(w, http.StatusBadRequest, errors.New("admins cannot delete their own account"))
		return
	}
	if err := h.svc.Admin.DeleteUser(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.record(r, actor.ID, "delete_user", id, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setManualInterest(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Value *float64 `json:"value"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.svc.Admin.SetManualInterest(r.Context(), id, payload.Value)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.record(r, actor.ID, "set_manual_interest", id, http.StatusOK)
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) saveAddresses(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	var payload struct {
		Addresses []wallet.Address `json:"addresses"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saved, err := h.svc.Admin.SaveAddresses(r.Context(), actor.ID, payload.Addresses)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.record(r, actor.ID, "save_addresses", "", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]any{"addresses": saved})
}

func (h *handler) auditTrail(w http.ResponseWriter, r *http.Request, actor profile.Profile) {
	limit := queryInt(r, "limit", 0)
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.audit.list(limit)})
}

func (h *handler) record(r *http.Request, actorID, action, target string, status int) {
	h.audit.add(AuditEntry{
		Time:   time.Now().UTC(),
		Actor:  actorID,
		Action: action,
		Target: target,
		Path:   r.URL.Path,
		Method: r.Method,
		Status: status,
	})
}

func authResultPayload(res auth.Result) map[string]any {
	return map[string]any{
		"profile":              res.Profile,
		"access_token":         res.AccessToken,
		"refresh_token":        res.RefreshToken,
		"expires_in":           res.ExpiresIn,
		"confirmation_pending": res.ConfirmationPending,
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		status := http.StatusBadRequest
		if authErr.Kind == auth.KindGeneral {
			status = http.StatusUnauthorized
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": authErr.Message,
			"field": string(authErr.Kind),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, admin.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, invest.ErrNoDepositAddress):
		return http.StatusConflict
	case errors.Is(err, withdraw.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
