package http

import (
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	"github.com/AlibekovAA/panel-auth/internal/auth/service"
	commonhttp "github.com/AlibekovAA/panel-auth/internal/common/http"
	"github.com/AlibekovAA/panel-auth/internal/common/jwtverify"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	userdomain "github.com/AlibekovAA/panel-auth/internal/user/domain"
)

const (
	apiPrefix     = "/api/v1/auth"
	loginPath     = apiPrefix + "/login"
	refreshPath   = apiPrefix + "/refresh"
	logoutPath    = apiPrefix + "/logout"
	logoutAllPath = apiPrefix + "/logout-all"
	mePath        = apiPrefix + "/me"
	usersPath     = "/api/v1/users"

	refreshCookieName = "refresh_token"
	deviceNameHeader  = "X-Device-Name"
)

type Config struct {
	RequestTimeout  time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	TrustedProxies  []netip.Prefix
	ReadinessChecks map[string]commonhttp.ReadinessCheck
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createUserRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	OrgUnit  string   `json:"org_unit"`
	Regions  []string `json:"regions"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Role             string `json:"role"`
	Name             string `json:"name"`
}

type logoutResponse struct {
	Revoked bool `json:"revoked"`
}

type logoutAllResponse struct {
	RevokedTokens int64 `json:"revoked_tokens"`
}

type userResponse struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    string   `json:"role"`
	OrgUnit string   `json:"org_unit,omitempty"`
	Regions []string `json:"regions"`
	Active  bool     `json:"active"`
}

type Handler struct {
	auth    *service.AuthService
	log     *logger.Logger
	errors  *commonhttp.ErrorHandler
	limiter *commonhttp.StrictRateLimiter
	ips     *commonhttp.ClientIPResolver
	timeout time.Duration
	handler http.Handler
}

func NewHandler(auth *service.AuthService, cfg Config, log *logger.Logger) *Handler {
	ips := commonhttp.NewClientIPResolver(cfg.TrustedProxies)
	h := &Handler{
		auth:    auth,
		log:     log,
		errors:  commonhttp.NewErrorHandler(log),
		limiter: commonhttp.NewStrictRateLimiter(loginPath, refreshPath, cfg.RateLimitWindow, cfg.RateLimitMax, ips),
		ips:     ips,
		timeout: cfg.RequestTimeout,
	}

	requireAuth := jwtverify.Middleware(auth, log)
	requireAdmin := jwtverify.RequireRole(authdomain.RoleAdmin, log)
	post := commonhttp.RequireMethod(http.MethodPost)
	get := commonhttp.RequireMethod(http.MethodGet)
	withTimeout := commonhttp.WithTimeout(cfg.RequestTimeout)

	api := http.NewServeMux()
	api.HandleFunc(loginPath, post(withTimeout(h.login)))
	api.HandleFunc(refreshPath, post(withTimeout(h.refresh)))
	api.Handle(logoutPath, requireAuth(post(withTimeout(h.logout))))
	api.Handle(logoutAllPath, requireAuth(post(withTimeout(h.logoutAll))))
	api.Handle(mePath, requireAuth(get(withTimeout(h.me))))
	api.Handle(usersPath, requireAuth(requireAdmin(post(withTimeout(h.createUser)))))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log))
	mux.HandleFunc("/ready", commonhttp.ReadyHandler(log, cfg.ReadinessChecks))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", h.limiter.Middleware(api))

	h.handler = commonhttp.BuildBaseHandler(log, mux)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) Close() {
	h.limiter.Stop()
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.invalidJSON(w, r, "login", err)
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   h.deviceInfo(r),
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	setRefreshCookie(w, r, result.RefreshToken, result.RefreshExpiresAt)
	commonhttp.WriteJSON(w, http.StatusOK, toTokenResponse(result))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshTokenFrom(w, r, "refresh")
	if !ok {
		return
	}
	if token == "" {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeMissingRefreshToken,
			"missing refresh token", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	result, err := h.auth.Refresh(r.Context(), token, h.deviceInfo(r))
	if err != nil {
		clearRefreshCookie(w, r)
		h.errors.HandleError(w, r, err)
		return
	}

	setRefreshCookie(w, r, result.RefreshToken, result.RefreshExpiresAt)
	commonhttp.WriteJSON(w, http.StatusOK, toTokenResponse(result))
}

// logout blacklists the presented claim token even when no renewal token
// accompanies it.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshTokenFrom(w, r, "logout")
	if !ok {
		return
	}
	accessToken, _ := jwtverify.TokenFromContext(r.Context())

	result, err := h.auth.Logout(r.Context(), accessToken, token)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	clearRefreshCookie(w, r)
	commonhttp.WriteJSON(w, http.StatusOK, logoutResponse{Revoked: result.Revoked})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())
	accessToken, _ := jwtverify.TokenFromContext(r.Context())

	result, err := h.auth.LogoutAll(r.Context(), accessToken, claims.Subject)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	clearRefreshCookie(w, r)
	commonhttp.WriteJSON(w, http.StatusOK, logoutAllResponse{RevokedTokens: result.RevokedCount})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	user, err := h.auth.Profile(r.Context(), claims.Subject)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.invalidJSON(w, r, "create_user", err)
		return
	}

	user, err := h.auth.CreateUser(r.Context(), service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		OrgUnit:  req.OrgUnit,
		Regions:  req.Regions,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// refreshTokenFrom reads the renewal token from the JSON body, falling back
// to the cookie. An empty body is allowed.
func (h *Handler) refreshTokenFrom(w http.ResponseWriter, r *http.Request, action string) (string, bool) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := commonhttp.DecodeJSON(r, &req); err != nil {
			h.invalidJSON(w, r, action, err)
			return "", false
		}
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}
	return token, true
}

func (h *Handler) invalidJSON(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.log.WithFields(r.Context(), logger.Fields{
		"action": action + "_invalid_json",
	}).Warnf("%s failed: invalid json: %v", action, err)
	commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON,
		"invalid json", nil, commonhttp.TraceIDFromContext(r.Context()))
}

func (h *Handler) deviceInfo(r *http.Request) authdomain.DeviceInfo {
	return authdomain.DeviceInfo{
		UserAgent: r.UserAgent(),
		IP:        h.ips.ClientIP(r),
		Name:      strings.TrimSpace(r.Header.Get(deviceNameHeader)),
	}
}

func toTokenResponse(result service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		TokenType:        result.TokenType,
		ExpiresIn:        int64(result.ExpiresIn / time.Second),
		RefreshExpiresIn: int64(result.RefreshExpiresIn / time.Second),
		Role:             string(result.Role),
		Name:             result.Name,
	}
}

func toUserResponse(user userdomain.User) userResponse {
	regions := user.Regions
	if regions == nil {
		regions = []string{}
	}
	return userResponse{
		ID:      string(user.ID),
		Email:   user.Email,
		Name:    user.Name,
		Role:    user.Role,
		OrgUnit: user.OrgUnit,
		Regions: regions,
		Active:  user.Active,
	}
}

func setRefreshCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	if token == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     apiPrefix,
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})
}

func clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     apiPrefix,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})
}
