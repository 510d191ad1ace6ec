package middlew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/pkg/response"

	"github.com/golang-jwt/jwt/v5"
)

const OperatorRole = "operator"

type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireOperator accepts HS256 bearer tokens carrying the operator role.
// An empty secret disables the check.
func RequireOperator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := GetLogger(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.WriteJSONError(w, log, http.StatusUnauthorized, "unauthorized", "Authorization header is required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				log.Warn("invalid authorization header format")
				response.WriteJSONError(w, log, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format")
				return
			}

			claims, err := ValidateOperatorToken(secret, parts[1])
			if err != nil {
				switch {
				case errors.Is(err, custom_err.ErrTokenExpired):
					response.WriteJSONError(w, log, http.StatusUnauthorized, "token_expired", "Token has expired")
				case errors.Is(err, custom_err.ErrUnauthorized):
					log.Warn("token without operator role", slog.String("subject", claims.Subject))
					response.WriteJSONError(w, log, http.StatusForbidden, "forbidden", "Operator role required")
				default:
					response.WriteJSONError(w, log, http.StatusUnauthorized, "invalid_token", "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, claims.Subject)
			ctx = context.WithValue(ctx, loggerKey, log.With(slog.String("operator", claims.Subject)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidateOperatorToken parses the token and checks signature, expiry and role.
// The parsed claims are returned with ErrUnauthorized when only the role is wrong.
func ValidateOperatorToken(secret []byte, tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, custom_err.ErrTokenExpired
		}
		return nil, custom_err.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, custom_err.ErrInvalidToken
	}
	if claims.Role != OperatorRole {
		return claims, custom_err.ErrUnauthorized
	}
	return claims, nil
}

// IssueOperatorToken signs an operator token valid for ttl.
func IssueOperatorToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Role: OperatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GetOperator returns the authenticated operator, empty when auth is disabled.
func GetOperator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}
