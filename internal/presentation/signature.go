package presentation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/presentation/helpers"
)

// SignatureHandler verifies the gateway's x-signature header
// ("ts=<unix>,v1=<hex>") against an HMAC-SHA256 of the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;". An empty secret
// disables the check.
func SignatureHandler(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ts, v1 := parseSignature(r.Header.Get("x-signature"))
			if ts == "" || v1 == "" {
				helpers.HttpError(w, http.StatusUnauthorized, "missing signature")
				return
			}

			recv, err := hex.DecodeString(v1)
			expected := signManifest(secret, signedID(r), r.Header.Get("x-request-id"), ts)
			if err != nil || !hmac.Equal(recv, expected) {
				logger.Warn("webhook signature mismatch", "request_id", r.Header.Get("x-request-id"))
				helpers.HttpError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseSignature(h string) (ts, v1 string) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	return ts, v1
}

// signedID is the data.id query parameter, lowercased as the gateway signs it.
func signedID(r *http.Request) string {
	q := r.URL.Query()
	return strings.ToLower(firstNonEmpty(q.Get("data.id"), q.Get("id")))
}

func signManifest(secret, id, requestID, ts string) []byte {
	var b strings.Builder
	if id != "" {
		b.WriteString("id:" + id + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return mac.Sum(nil)
}
