// Package observability provides hooks for metrics, tracing, and logging.
//
// Library packages emit events through small hook interfaces; the defaults
// are no-ops, so nothing is recorded unless a program registers its own
// implementation at startup. This keeps resolution and build code free of
// any particular metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetResolveHooks(&myResolveHooks{})
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Resolve().OnResolveStart(ctx, name, dep)
//	// ... run the resolver chain ...
//	observability.Resolve().OnResolveComplete(ctx, name, dep, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Resolve Hooks
// =============================================================================

// ResolveHooks receives events from dependency resolution.
// dep is the declaration rendered as text ("path:../ec", "https://github.com/x/y@v1").
type ResolveHooks interface {
	OnResolveStart(ctx context.Context, name, dep string)
	OnResolveComplete(ctx context.Context, name, dep string, duration time.Duration, err error)

	// OnDependencySkipped records a declaration skipped because the name was
	// already resolved.
	OnDependencySkipped(ctx context.Context, name string)

	// OnArchiveFetch records a remote archive download (not a cache reuse).
	OnArchiveFetch(ctx context.Context, url string, size int, duration time.Duration, err error)
}

// =============================================================================
// Compile Hooks
// =============================================================================

// CompileHooks receives events from the compiler orchestrator.
type CompileHooks interface {
	OnCompileStart(ctx context.Context, project, backend string)
	OnCompileComplete(ctx context.Context, project, backend string, artifacts int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopResolveHooks is a no-op implementation of ResolveHooks.
type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolveStart(context.Context, string, string) {}
func (NoopResolveHooks) OnResolveComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopResolveHooks) OnDependencySkipped(context.Context, string) {}
func (NoopResolveHooks) OnArchiveFetch(context.Context, string, int, time.Duration, error) {
}

// NoopCompileHooks is a no-op implementation of CompileHooks.
type NoopCompileHooks struct{}

func (NoopCompileHooks) OnCompileStart(context.Context, string, string) {}
func (NoopCompileHooks) OnCompileComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	resolveHooks ResolveHooks = NoopResolveHooks{}
	compileHooks CompileHooks = NoopCompileHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetResolveHooks registers custom resolution hooks.
// This should be called once at application startup before any resolution.
func SetResolveHooks(h ResolveHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolveHooks = h
	}
}

// SetCompileHooks registers custom compile hooks.
func SetCompileHooks(h CompileHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		compileHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Resolve returns the registered resolution hooks.
func Resolve() ResolveHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolveHooks
}

// Compile returns the registered compile hooks.
func Compile() CompileHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return compileHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	resolveHooks = NoopResolveHooks{}
	compileHooks = NoopCompileHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
