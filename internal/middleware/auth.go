package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agenthub-platform/agenthub/internal/config"
	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

type contextKey string

const (
	UserKey   contextKey = "user"
	UserIDKey contextKey = "userID"
)

// Auth resolves the request's user and stores it on the context.
// With auth disabled the fixed development user is attached instead, so
// downstream handlers always see an authenticated identity.
func Auth(s *store.Store, cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled {
				devUser := model.NewDevUser(cfg.DevUserID)
				ctx := context.WithValue(r.Context(), UserKey, devUser)
				ctx = context.WithValue(ctx, UserIDKey, devUser.ID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			user, err := lookupToken(r.Context(), s, token)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "Invalid or expired token")
					return
				}
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Tokens are stored hashed; the raw value never touches the database.
func lookupToken(ctx context.Context, s *store.Store, token string) (*model.User, error) {
	sum := sha256.Sum256([]byte(token))
	return s.GetUserByTokenHash(ctx, hex.EncodeToString(sum[:]))
}

// GetUser extracts the authenticated user from context.
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserKey).(*model.User); ok {
		return user
	}
	return nil
}

// GetUserID extracts the authenticated user's ID from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
