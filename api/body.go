package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Skryldev/census-api/httputil"
)

const maxBodyBytes = 100 << 10

type payloadKey struct{}

// payloadFromContext returns the decoded JSON body, or nil when the request
// carried none.
func payloadFromContext(ctx context.Context) any {
	return ctx.Value(payloadKey{})
}

// jsonBody decodes JSON request bodies of at most limit bytes into an untyped
// value stored in the request context. Bodies with other content types are
// ignored.
func jsonBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody || !isJSON(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httputil.Error(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				httputil.BadRequest(w, r, "Malformed JSON body")
				return
			}
			if len(bytes.TrimSpace(raw)) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			var payload any
			if err := json.Unmarshal(raw, &payload); err != nil {
				httputil.BadRequest(w, r, "Malformed JSON body")
				return
			}
			ctx := context.WithValue(r.Context(), payloadKey{}, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
