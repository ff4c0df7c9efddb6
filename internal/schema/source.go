package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chrisdreid/autoflow/internal/ctxlog"
)

// Environment fallbacks for source resolution.
const (
	EnvObjectInfoSource = "AUTOFLOW_OBJECT_INFO_SOURCE"
	EnvServerURL        = "AUTOFLOW_COMFYUI_SERVER_URL"
)

// DefaultHTTPTimeout bounds object_info fetches.
const DefaultHTTPTimeout = 30 * time.Second

// Origin records where a resolved library came from, for provenance.
type Origin struct {
	Requested string `json:"requested,omitempty"`
	Resolved  string `json:"resolved,omitempty"`
	ViaEnv    bool   `json:"via_env,omitempty"`
	ServerURL string `json:"server_url,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Resolver turns an object_info source spec into a Library. A source is a
// file path, an http(s) URL, or one of the tokens "server" (fetch from the
// configured server, required) and "fetch" (server if one is configured,
// otherwise an error). An empty source falls back to AUTOFLOW_OBJECT_INFO_SOURCE
// and then to the server URL; with nothing configured it resolves to no
// library at all.
type Resolver struct {
	// ServerURL is the runtime base URL, e.g. "http://127.0.0.1:8188".
	ServerURL string
	// Timeout bounds each HTTP fetch; zero means DefaultHTTPTimeout.
	Timeout time.Duration
	// DisableEnv turns off the environment-variable fallbacks.
	DisableEnv bool
	// RequireSource makes an unresolvable empty source an error instead of
	// an absent library.
	RequireSource bool
	// Cache, when set, is consulted before any network fetch and updated
	// after one. CacheMaxAge <= 0 accepts entries of any age.
	Cache       *Cache
	CacheMaxAge time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Resolve resolves a source spec to a library plus its origin.
func (r *Resolver) Resolve(ctx context.Context, source string) (Library, Origin, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return r.resolveDefault(ctx)
	}
	return r.resolveSpec(ctx, source, false)
}

func (r *Resolver) resolveDefault(ctx context.Context) (Library, Origin, error) {
	if !r.DisableEnv {
		if src := strings.TrimSpace(os.Getenv(EnvObjectInfoSource)); src != "" {
			lib, origin, err := r.resolveSpec(ctx, src, true)
			origin.ViaEnv = true
			return lib, origin, err
		}
	}
	if url := r.effectiveServerURL(); url != "" {
		lib, err := r.fetchServer(ctx, url)
		if err != nil {
			return nil, Origin{}, err
		}
		return lib, Origin{Requested: "server_url", Resolved: "server", ServerURL: url, Note: "server_url fallback"}, nil
	}
	if r.RequireSource {
		return nil, Origin{}, fmt.Errorf(
			"missing object_info source: set %s or pass a source explicitly", EnvObjectInfoSource)
	}
	return nil, Origin{Resolved: "empty"}, nil
}

func (r *Resolver) resolveSpec(ctx context.Context, source string, viaEnv bool) (Library, Origin, error) {
	lower := strings.ToLower(source)
	switch lower {
	case "server", "fetch":
		// A file literally named "server"/"fetch" wins over the token, so an
		// explicit path is never shadowed.
		if _, err := os.Stat(source); err == nil {
			lib, err := LoadLibrary(source)
			if err != nil {
				return nil, Origin{}, err
			}
			return lib, Origin{Requested: source, Resolved: "file"}, nil
		}

		url := r.effectiveServerURL()
		if url == "" {
			if lower == "server" {
				return nil, Origin{}, fmt.Errorf(
					"object_info source %q requires a server URL (flag or %s)", source, EnvServerURL)
			}
			return nil, Origin{}, fmt.Errorf(
				"object_info source %q: no server URL configured to fetch from", source)
		}
		lib, err := r.fetchServer(ctx, url)
		if err != nil {
			return nil, Origin{}, err
		}
		origin := Origin{Requested: source, Resolved: "server", ServerURL: url}
		if lower == "fetch" {
			origin.Note = "fetch->server"
		}
		return lib, origin, nil
	}

	if isHTTPURL(source) {
		lib, err := r.fetchURL(ctx, source)
		if err != nil {
			return nil, Origin{}, err
		}
		return lib, Origin{Requested: source, Resolved: "url"}, nil
	}

	lib, err := LoadLibrary(source)
	if err != nil {
		return nil, Origin{}, err
	}
	return lib, Origin{Requested: source, Resolved: "file"}, nil
}

func (r *Resolver) effectiveServerURL() string {
	if strings.TrimSpace(r.ServerURL) != "" {
		return strings.TrimSpace(r.ServerURL)
	}
	if !r.DisableEnv {
		return strings.TrimSpace(os.Getenv(EnvServerURL))
	}
	return ""
}

func (r *Resolver) fetchServer(ctx context.Context, serverURL string) (Library, error) {
	return r.fetchURL(ctx, strings.TrimRight(serverURL, "/")+"/object_info")
}

func (r *Resolver) fetchURL(ctx context.Context, url string) (Library, error) {
	logger := ctxlog.FromContext(ctx)

	if r.Cache != nil {
		payload, ok, err := r.Cache.Get(url, r.CacheMaxAge)
		if err != nil {
			logger.Warn("Schema cache read failed, falling back to fetch.", "url", url, "error", err)
		} else if ok {
			lib, err := ParseLibrary(payload)
			if err == nil {
				logger.Debug("Schema cache hit.", "url", url, "types", len(lib))
				return lib, nil
			}
			logger.Warn("Schema cache entry is corrupt, refetching.", "url", url, "error", err)
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building object_info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching object_info from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching object_info from %s: HTTP %d", url, resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object_info response: %w", err)
	}

	lib, err := ParseLibrary(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid object_info response from %s: %w", url, err)
	}

	if r.Cache != nil {
		if err := r.Cache.Put(url, payload); err != nil {
			logger.Warn("Schema cache write failed.", "url", url, "error", err)
		}
	}
	logger.Debug("Fetched object_info.", "url", url, "types", len(lib))
	return lib, nil
}

// isHTTPURL deliberately avoids url.Parse scheme checks: Windows paths like
// C:\x.json would parse as a scheme.
func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
