package cli

import (
	"context"

	"github.com/chrisdreid/autoflow/internal/ctxlog"
	"github.com/chrisdreid/autoflow/internal/schema"
)

// loadLibrary resolves the node schema for a command run: the object_info
// source (flag value, falling back to the configured one) merged with any
// local manifest overrides. An empty result is legitimate and means
// schema-free conversion.
func (r *runtime) loadLibrary(ctx context.Context, source string, require bool) (schema.Library, schema.Origin, error) {
	logger := ctxlog.FromContext(ctx)

	if source == "" {
		source = r.cfg.ObjectInfoSource
	}

	var cache *schema.Cache
	if r.cfg.CachePath != "" {
		c, err := schema.OpenCache(r.cfg.CachePath)
		if err != nil {
			logger.Warn("Schema cache unavailable, continuing without it.", "path", r.cfg.CachePath, "error", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	resolver := &schema.Resolver{
		ServerURL:     r.cfg.ServerURL,
		Timeout:       r.cfg.Timeout(),
		RequireSource: require,
		Cache:         cache,
		CacheMaxAge:   r.cfg.CacheMaxAge(),
	}
	lib, origin, err := resolver.Resolve(ctx, source)
	if err != nil {
		return nil, origin, err
	}

	if r.cfg.ManifestDir != "" {
		manifests, err := schema.LoadManifests(ctx, r.cfg.ManifestDir)
		if err != nil {
			return nil, origin, err
		}
		if len(manifests) > 0 {
			logger.Debug("Merged manifest overrides.", "dir", r.cfg.ManifestDir, "types", len(manifests))
			lib = lib.Merge(manifests)
		}
	}
	return lib, origin, nil
}
