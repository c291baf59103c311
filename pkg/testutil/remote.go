package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Verdict is what a fake verification service answers for one token.
type Verdict struct {
	Status int // defaults to 200
	Valid  bool
	UserID string
	Body   string // raw body; overrides Valid/UserID when set
}

// VerifyServer is a fake remote verify-token endpoint that records every
// token it was asked about.
type VerifyServer struct {
	*httptest.Server

	mu       sync.Mutex
	tokens   []string
	verdicts map[string]Verdict
	fallback Verdict
}

// NewVerifyServer starts a fake verification service that requires the
// merchant secret as a bearer credential. Unknown tokens are invalid.
func NewVerifyServer(t *testing.T, secret string) *VerifyServer {
	t.Helper()
	vs := &VerifyServer{verdicts: map[string]Verdict{}}
	vs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/verify-token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+secret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		vs.mu.Lock()
		vs.tokens = append(vs.tokens, body.Token)
		verdict, ok := vs.verdicts[body.Token]
		if !ok {
			verdict = vs.fallback
		}
		vs.mu.Unlock()

		status := verdict.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if verdict.Body != "" {
			_, _ = w.Write([]byte(verdict.Body))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": verdict.Valid, "userId": verdict.UserID})
	}))
	t.Cleanup(vs.Close)
	return vs
}

// Set configures the verdict for token.
func (vs *VerifyServer) Set(token string, v Verdict) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.verdicts[token] = v
}

// Tokens returns the tokens received so far.
func (vs *VerifyServer) Tokens() []string {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return append([]string(nil), vs.tokens...)
}
