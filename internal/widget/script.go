package widget

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const maxScriptBytes = 4 << 20

// HTTPScriptSource fetches the script resource over HTTP and, once it is
// retrieved, exposes Global as the SDK entry point the script provides.
type HTTPScriptSource struct {
	URL    string
	Client *http.Client
	Global Initializer
}

// Load fetches URL. A non-2xx status, an empty body or a missing Global fails.
func (s HTTPScriptSource) Load(ctx context.Context) (Initializer, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build script request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch script: HTTP %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("fetch script: empty body")
	}
	if s.Global == nil {
		return nil, ErrSDKUnavailable
	}
	return s.Global, nil
}
