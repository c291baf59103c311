package widget

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ScriptSource fetches the widget script and yields its initializer.
type ScriptSource interface {
	Load(ctx context.Context) (Initializer, error)
}

// ScriptSourceFunc adapts a function to ScriptSource.
type ScriptSourceFunc func(ctx context.Context) (Initializer, error)

// Load calls f.
func (f ScriptSourceFunc) Load(ctx context.Context) (Initializer, error) {
	return f(ctx)
}

// Loader loads a script at most once. Concurrent callers share one in-flight
// fetch; a success is kept for the life of the Loader, a failure is not, so a
// later remount can try again.
type Loader struct {
	url   string
	src   ScriptSource
	group singleflight.Group

	mu     sync.Mutex
	loaded Initializer
}

// NewLoader creates a Loader for the script at url.
func NewLoader(url string, src ScriptSource) *Loader {
	return &Loader{url: url, src: src}
}

var shared = struct {
	mu      sync.Mutex
	loaders map[string]*Loader
}{loaders: map[string]*Loader{}}

// SharedLoader returns the process-wide Loader for url, creating it with src
// on first use. Later calls for the same url reuse the first source.
func SharedLoader(url string, src ScriptSource) *Loader {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if l, ok := shared.loaders[url]; ok {
		return l
	}
	l := NewLoader(url, src)
	shared.loaders[url] = l
	return l
}

// Loaded reports whether the script has been loaded successfully.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded != nil
}

// Load returns the initializer, fetching the script if it is not loaded yet.
// Fetch failures are returned as *LoadError. A cancelled ctx only abandons
// this caller's wait; the shared fetch continues for the other waiters.
func (l *Loader) Load(ctx context.Context) (Initializer, error) {
	l.mu.Lock()
	if l.loaded != nil {
		init := l.loaded
		l.mu.Unlock()
		return init, nil
	}
	l.mu.Unlock()

	ch := l.group.DoChan(l.url, func() (any, error) {
		init, err := l.src.Load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, &LoadError{URL: l.url, Err: err}
		}
		if init == nil {
			return nil, &LoadError{URL: l.url, Err: ErrSDKUnavailable}
		}
		l.mu.Lock()
		l.loaded = init
		l.mu.Unlock()
		return init, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Initializer), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
