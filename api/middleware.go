package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

type authMiddleware struct {
	responder Responder
	logger    zerolog.Logger
	userRepo  *database.UserRepo
	tokens    *services.TokenIssuer
}

func newAuthMiddleware(userRepo *database.UserRepo, tokens *services.TokenIssuer) authMiddleware {
	logger := log.With().Str("handlerName", "authMiddleware").Logger()
	return authMiddleware{
		responder: NewResponder(logger),
		logger:    logger,
		userRepo:  userRepo,
		tokens:    tokens,
	}
}

// authenticate resolves the bearer token to an active user and stores it in
// the request context.
func (m authMiddleware) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			m.responder.WriteError(w, errs.NewInvalidTokenError())
			return
		}

		userID, err := m.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			m.responder.WriteError(w, err)
			return
		}

		user, err := m.userRepo.FindByID(r.Context(), userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.responder.WriteError(w, errs.NewInvalidCredentialsError())
			return
		}
		if err != nil {
			m.responder.WriteError(w, wrapDatabaseError("find user", "user", err))
			return
		}
		if !user.IsActive {
			m.responder.WriteError(w, errs.NewInvalidCredentialsError())
			return
		}

		next.ServeHTTP(w, r.WithContext(ctxWithUser(r.Context(), user)))
	})
}

// requireRole rejects authenticated users ranked below min. It must run after
// authenticate.
func (m authMiddleware) requireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := ctxGetUser(r.Context())
			if err != nil {
				m.responder.WriteError(w, errs.NewMissingTokenError())
				return
			}
			if !user.Role.AtLeast(min) {
				m.responder.WriteError(w, errs.NewInsufficientRoleError(string(min)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func LogInternalServerErrors(next http.Handler) http.Handler {
	responder := NewResponder(log.With().Str("handlerName", "recoverer").Logger())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srw := &statusResponseWriter{ResponseWriter: w, status: 200}

		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Error().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", err).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic")

				// Write 500 if nothing written yet
				if !srw.wroteHeader {
					responder.WriteError(srw, fmt.Errorf("panic: %v", err))
				}
			}
		}()

		next.ServeHTTP(srw, r)
	})
}

// RequestID tags every request and response with X-Request-Id, reusing the
// caller's value when one was sent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctxWithRequestID(r.Context(), requestID)))
	})
}

type timingResponseWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (w *timingResponseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Set("X-Process-Time", fmt.Sprintf("%.4f s", time.Since(w.start).Seconds()))
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *timingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ProcessTime reports handler time in X-Process-Time. The header is set just
// before the status line goes out, so it covers everything up to the first
// write.
func ProcessTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &timingResponseWriter{ResponseWriter: w, start: time.Now()}
		next.ServeHTTP(tw, r)
		if !tw.wroteHeader {
			tw.WriteHeader(http.StatusOK)
		}
	})
}

// HTTPLoggingMiddleware logs HTTP requests at a level chosen by status code
func HTTPLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, status: 200}

		next.ServeHTTP(srw, r)

		duration := time.Since(start)

		var logEvent *zerolog.Event
		switch {
		case srw.status >= 500:
			logEvent = log.Error()
		case srw.status >= 400:
			logEvent = log.Warn()
		default:
			logEvent = log.Info()
		}

		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", srw.status).
			Dur("duration", duration).
			Str("remote_addr", r.RemoteAddr).
			Str("request_id", ctxGetRequestID(r.Context())).
			Msg("HTTP Request")
	})
}

// trustedRealIP applies middleware.RealIP only when the peer is one of the
// trusted proxies. Any other client keeps its socket address, so forwarding
// headers cannot move it past the blocklist or the rate limiter.
func trustedRealIP(proxies []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer := net.ParseIP(clientIP(r)); peer != nil {
				for _, proxy := range proxies {
					if proxy.Contains(peer) {
						forwarded.ServeHTTP(w, r)
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
