package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/opsync/internal/server/handlers"
)

// AuthMiddleware создает middleware для проверки токена устройства.
// device_id из токена кладется в контекст запроса.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				handlers.WriteError(w, logger, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format", "path", r.URL.Path)
				handlers.WriteError(w, logger, http.StatusUnauthorized, "unauthorized", "invalid token format")
				return
			}

			claims, err := handlers.ValidateDeviceToken(jwtConfig, parts[1])
			if err != nil {
				logger.Warn("Invalid device token", "error", err)
				handlers.WriteError(w, logger, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			logger.Debug("Device authenticated", "device_id", claims.DeviceID)

			next.ServeHTTP(w, r.WithContext(handlers.WithDeviceID(r.Context(), claims.DeviceID)))
		})
	}
}
