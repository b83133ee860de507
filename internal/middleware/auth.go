package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type contextKey string

const clinicianKey contextKey = "clinician"

// Auth validates the caller's JWT and resolves the clinician identity. The
// auth service issuing the tokens is an external collaborator; this engine
// only consumes identity and role.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims := &models.JWTClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("Rejected request with invalid token")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			clinician := models.Clinician{
				UserID: claims.UserID,
				Role:   claims.Role,
			}
			ctx := context.WithValue(r.Context(), clinicianKey, clinician)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClinician extracts the resolved clinician from context
func GetClinician(ctx context.Context) (models.Clinician, bool) {
	clinician, ok := ctx.Value(clinicianKey).(models.Clinician)
	return clinician, ok
}
