package auth

import (
	"net/http"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator: проверка Bearer-токена агента (BaseValidator).
type TokenValidator interface {
	VerifyToken(tokenStr string) (*AgentClaims, error)
}

// NewMiddleware кладет идентичность агента из Bearer-токена в контекст запроса.
// required=false: запрос без заголовка проходит дальше (идентичность возьмется из аргументов
// или fallback), но невалидный токен всегда отклоняется.
func NewMiddleware(v TokenValidator, required bool, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("auth")

	reject := func(w http.ResponseWriter) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			switch {
			case header == "" && required:
				reject(w)
			case header == "":
				next.ServeHTTP(w, r)
			default:
				claims, err := v.VerifyToken(header)
				if err != nil {
					log.Warn("token rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
					reject(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), claims.Identity())))
			}
		})
	}
}
