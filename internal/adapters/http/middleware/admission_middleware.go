// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

const (
	rateLimitExceededMessage = "you have reached the maximum number of requests or actions allowed within a certain time frame"
	blockedMessage           = "access temporarily restricted"
)

// Headers de identidade preenchidos pela camada de autenticação a montante.
const (
	headerUserID  = "X-User-ID"
	headerOrgID   = "X-Organization-ID"
	headerAPIKey  = "X-API-Key"
	headerLimit   = "X-RateLimit-Limit"
	headerRemain  = "X-RateLimit-Remaining"
	headerReset   = "X-RateLimit-Reset"
	headerRetryIn = "Retry-After"
)

// NewAdmissionMiddleware consulta a fachada de admissão antes de cada requisição,
// propagando o veredito em headers e status HTTP.
func NewAdmissionMiddleware(admitter ports.Admitter, action string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admitter == nil {
				next.ServeHTTP(w, r)
				return
			}

			reqCtx := domain.RequestContext{
				NetworkAddress: extractIP(r),
				UserID:         strings.TrimSpace(r.Header.Get(headerUserID)),
				OrganizationID: strings.TrimSpace(r.Header.Get(headerOrgID)),
				APICredential:  strings.TrimSpace(r.Header.Get(headerAPIKey)),
				Action:         action,
				Endpoint:       r.URL.Path,
			}

			verdict, err := admitter.Admit(r.Context(), reqCtx)
			if err != nil {
				logger.Error("admission failed", zap.String("action", action), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			writeRateLimitHeaders(w, verdict)

			if !verdict.Allowed {
				writeDenied(w, verdict)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, verdict domain.Verdict) {
	if verdict.Limit > 0 {
		w.Header().Set(headerLimit, strconv.Itoa(verdict.Limit))
		w.Header().Set(headerRemain, strconv.FormatInt(verdict.Remaining, 10))
	}
	if !verdict.ResetTime.IsZero() {
		w.Header().Set(headerReset, strconv.FormatInt(verdict.ResetTime.Unix(), 10))
	}
}

func writeDenied(w http.ResponseWriter, verdict domain.Verdict) {
	if verdict.RetryAfterSeconds > 0 {
		w.Header().Set(headerRetryIn, strconv.Itoa(verdict.RetryAfterSeconds))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	message := rateLimitExceededMessage
	if verdict.HTTPStatus == http.StatusForbidden {
		// The reason stays generic on purpose; thresholds are not disclosed.
		message = blockedMessage
	}
	w.WriteHeader(verdict.HTTPStatus)
	_, _ = w.Write([]byte(message))
}

func extractIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}
