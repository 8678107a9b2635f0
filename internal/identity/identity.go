// Package identity provides anonymous per-device trainee identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

const (
	CookieName      = "callcoach_trainee"
	HeaderName      = "X-Trainee-ID"
	cookieMaxAge    = 90 * 24 * time.Hour
	generatedPrefix = "trn_"
)

type contextKey int

const traineeIDKey contextKey = iota

var traineeIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// TraineeIDFromContext extracts the trainee ID from the request context.
func TraineeIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traineeIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTraineeID returns a context carrying id.
func WithTraineeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traineeIDKey, id)
}

// ValidTraineeID reports whether id is an acceptable trainee identifier.
func ValidTraineeID(id string) bool {
	return traineeIDPattern.MatchString(id)
}

func generateTraineeID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate trainee id: %w", err)
	}
	return generatedPrefix + hex.EncodeToString(buf), nil
}

func setCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// resolve picks the trainee ID from the header, then the cookie, and
// otherwise issues a new one.
func resolve(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if id := r.Header.Get(HeaderName); id != "" {
		if !ValidTraineeID(id) {
			return "", fmt.Errorf("invalid %s header", HeaderName)
		}
		return id, nil
	}

	if c, err := r.Cookie(CookieName); err == nil && ValidTraineeID(c.Value) {
		setCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateTraineeID()
	if err != nil {
		return "", err
	}
	setCookie(w, id, isDev)
	return id, nil
}

// Middleware injects the trainee identity into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolve(w, r, isDev)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_trainee_id"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTraineeID(r.Context(), id)))
		})
	}
}
