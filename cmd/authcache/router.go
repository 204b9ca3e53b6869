package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/metrics/export/prometheus"
	"github.com/MrEthical07/authcache/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

type routerOptions struct {
	// exposeResetToken returns the reset token in the forgot-password
	// response instead of only acknowledging it.
	exposeResetToken bool
}

type handlers struct {
	engine *authcache.Engine
	logger *zap.Logger
	opts   routerOptions
}

func newRouter(engine *authcache.Engine, logger *zap.Logger, opts routerOptions) http.Handler {
	h := &handlers{engine: engine, logger: logger, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Post("/refresh", h.refresh)
		r.Post("/password/forgot", h.forgotPassword)
		r.Post("/password/reset", h.resetPassword)
	})

	r.Route("/users/me", func(r chi.Router) {
		r.Use(middleware.Authenticate(engine, middleware.WithLogger(logger)))
		r.Get("/", h.me)
		r.Post("/otp", h.generateOTP)
		r.Post("/otp/verify", h.verifyOTP)
	})

	r.Method(http.MethodGet, "/metrics", prometheus.NewExporter(engine).Handler())
	r.Get("/healthz", h.healthz)
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	return nil
}

func badRequest(w http.ResponseWriter) {
	middleware.WriteJSON(w, http.StatusBadRequest, middleware.Envelope{Message: "Invalid request body"})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := middleware.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	middleware.WriteError(w, err)
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		badRequest(w)
		return
	}

	res, err := h.engine.Signup(r.Context(), authcache.SignupInput{Name: body.Name, Email: body.Email, Password: body.Password})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, middleware.Envelope{Message: "Signup successful.", Data: res})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		badRequest(w)
		return
	}

	res, err := h.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Message: "Login successful.", Data: res})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	ack, err := h.engine.Logout(r.Context(), middleware.AccessToken(r), middleware.RefreshToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Message: ack.Message})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.engine.Refresh(r.Context(), middleware.RefreshToken(r), middleware.AccessToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Message: "Token refreshed.", Data: pair})
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decode(w, r, &body); err != nil {
		badRequest(w)
		return
	}

	token, err := h.engine.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	env := middleware.Envelope{Message: "Password reset requested."}
	if h.opts.exposeResetToken {
		env.Data = map[string]string{"reset_token": token}
	}
	middleware.WriteJSON(w, http.StatusOK, env)
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		badRequest(w)
		return
	}

	ack, err := h.engine.ResetPassword(r.Context(), body.Token, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Message: ack.Message})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, _ := authcache.PrincipalFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Data: p.View()})
}

func (h *handlers) generateOTP(w http.ResponseWriter, r *http.Request) {
	p, _ := authcache.PrincipalFromContext(r.Context())
	secret, uri, err := h.engine.GenerateOTPSecret(r.Context(), p.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{
		Message: "One-time codes enabled.",
		Data:    map[string]string{"secret": secret, "uri": uri},
	})
}

func (h *handlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(w, r, &body); err != nil {
		badRequest(w)
		return
	}

	p, _ := authcache.PrincipalFromContext(r.Context())
	if err := h.engine.VerifyOTP(r.Context(), p.ID, body.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{Message: "Code accepted."})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	latency, err := h.engine.Ping(r.Context())
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, middleware.Envelope{Message: "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, middleware.Envelope{
		Message: "ok",
		Data:    map[string]int64{"store_latency_us": latency.Microseconds()},
	})
}
