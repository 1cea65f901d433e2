// Package fallback implements spec §4.H's mirror proxy: ordered source
// resolution, a TTL-cached existence probe, HuggingFace-vs-kohakuhub
// URL rewriting, a retry-next-source policy, and response header
// decoration. Grounded on common/mredis/redis.go's cache-aside
// connection wrapper, generalized from a plain get/set helper into the
// existence-probe cache this spec describes, plus the other_examples
// HuggingFace client code for the upstream URL shapes a compatible
// client expects back.
package fallback

import (
	"context"
	"sort"
	"strings"

	"github.com/kohakuhub/hub/internal/metadata"
)

// Source is one resolved, de-duplicated mirror candidate for a
// namespace, ordered by priority ascending.
type Source struct {
	Name       string
	URL        string
	Type       metadata.SourceType
	Priority   int
	Token      string // overlaid per-request; may be empty
}

// resolveSources implements spec §4.H's three-tier precedence —
// config globals, DB globals (namespace=""), DB namespace-scoped —
// deduplicated by URL and sorted ascending by priority.
func resolveSources(ctx context.Context, store metadata.Store, configured []Source, namespace string) ([]Source, error) {
	all := append([]Source{}, configured...)

	globalDB, err := store.Fallback().ListEnabled(ctx, "")
	if err != nil {
		return nil, err
	}

	for _, s := range globalDB {
		all = append(all, Source{Name: s.Name, URL: s.URL, Type: s.SourceType, Priority: s.Priority})
	}

	if namespace != "" {
		scoped, err := store.Fallback().ListEnabled(ctx, namespace)
		if err != nil {
			return nil, err
		}

		for _, s := range scoped {
			all = append(all, Source{Name: s.Name, URL: s.URL, Type: s.SourceType, Priority: s.Priority})
		}
	}

	return dedupeAndSort(all), nil
}

func dedupeAndSort(sources []Source) []Source {
	seen := make(map[string]bool, len(sources))

	out := make([]Source, 0, len(sources))

	for _, s := range sources {
		if seen[s.URL] {
			continue
		}

		seen[s.URL] = true

		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })

	return out
}

// overlayUserToken replaces a source's token with the user's own
// override for that URL, if one exists, for this request only — the
// admin-configured token on the Source value itself is never mutated.
func overlayUserToken(ctx context.Context, store metadata.Store, userID int64, sources []Source, decrypt func(string) (string, error)) ([]Source, error) {
	out := make([]Source, len(sources))
	copy(out, sources)

	for i, s := range out {
		tok, err := store.Fallback().FindUserToken(ctx, userID, s.URL)
		if err != nil {
			continue // no override for this URL is the common case, not an error
		}

		plain, err := decrypt(tok.EncryptedToken)
		if err != nil {
			return nil, err
		}

		out[i].Token = plain
	}

	return out, nil
}

// RewriteURL applies spec §4.H's asymmetric path rewrite: a
// "kohakuhub" peer is self-similar and passed through unchanged; a
// "huggingface" upstream strips the "/models/" prefix from resolve
// paths (datasets/spaces already match HF's own shape).
func RewriteURL(sourceType metadata.SourceType, path string) string {
	if sourceType != metadata.SourceHuggingFace {
		return path
	}

	if strings.HasPrefix(path, "/api/") {
		return path
	}

	if strings.HasPrefix(path, "/models/") {
		return "/" + strings.TrimPrefix(path, "/models/")
	}

	return path
}
