package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// Proxy implements resolve.FallbackResolver plus the repo-existence
// probe and list-aggregation helpers of spec §4.H.
type Proxy struct {
	Store      metadata.Store
	Cache      *Cache
	Cipher     *TokenCipher
	HTTP       *resty.Client
	Configured []Source // from config's KOHAKU_HUB_FALLBACK_SOURCES
}

// NewProxy builds a Proxy with a resty client bound to the configured
// per-call timeout.
func NewProxy(store metadata.Store, cache *Cache, cipher *TokenCipher, timeout time.Duration, configured []Source) *Proxy {
	return &Proxy{
		Store: store, Cache: cache, Cipher: cipher, Configured: configured,
		HTTP: resty.New().SetTimeout(timeout),
	}
}

// ProbeResult is one upstream's existence check for a repo.
type ProbeResult struct {
	Source Source
	Exists bool
}

// Resolve implements resolve.FallbackResolver: probe sources in
// priority order, rewrite the resolve path for the winning source's
// type, and return the redirect URL with the winning source's name.
// The HTTP layer sets X-Source and X-Source-URL from these two values;
// the upstream status code is not returned, so no X-Source-Status
// header is set.
func (p *Proxy) Resolve(ctx context.Context, repo *metadata.Repository, revision, path string) (string, string, error) {
	sources, err := resolveSources(ctx, p.Store, p.Configured, repo.Namespace)
	if err != nil {
		return "", "", err
	}

	resolvePath := fmt.Sprintf("/%ss/%s/%s/resolve/%s/%s", repo.RepoType, repo.Namespace, repo.Name, revision, path)

	for _, s := range sources {
		rewritten := RewriteURL(s.Type, resolvePath)

		req := p.HTTP.R().SetContext(ctx)
		if s.Token != "" {
			req.SetHeader("Authorization", "Bearer "+s.Token)
		}

		resp, reqErr := req.Head(s.URL + rewritten)

		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}

		if reqErr != nil || tryNext(status, reqErr != nil) {
			continue
		}

		if status >= 200 && status < 400 {
			return s.URL + rewritten, s.Name, nil
		}

		return "", "", apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", fmt.Sprintf("upstream %s returned %d", s.Name, status))
	}

	return "", "", apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", "no fallback source has this file")
}

// ProbeRepo checks the cache, then (on miss) probes each source in
// order for repo existence, caching both positive and negative
// results, per spec §4.H.
func (p *Proxy) ProbeRepo(ctx context.Context, repoType, namespace, name string) (*ProbeResult, error) {
	if cached, ok, err := p.Cache.Get(ctx, repoType, namespace, name); err != nil {
		return nil, err
	} else if ok {
		return &ProbeResult{
			Source: Source{Name: cached.SourceName, URL: cached.SourceURL, Type: metadata.SourceType(cached.SourceType)},
			Exists: cached.Exists,
		}, nil
	}

	sources, err := resolveSources(ctx, p.Store, p.Configured, namespace)
	if err != nil {
		return nil, err
	}

	probePath := fmt.Sprintf("/api/%ss/%s/%s", repoType, namespace, name)

	for _, s := range sources {
		resp, reqErr := p.HTTP.R().SetContext(ctx).Get(s.URL + RewriteURL(s.Type, probePath))

		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}

		if reqErr != nil || tryNext(status, reqErr != nil) {
			continue
		}

		exists := status >= 200 && status < 300

		if err := p.Cache.Set(ctx, repoType, namespace, name, probeEntry{
			SourceURL: s.URL, SourceName: s.Name, SourceType: string(s.Type), Exists: exists, CheckedAt: time.Now(),
		}); err != nil {
			return nil, err
		}

		if exists {
			return &ProbeResult{Source: s, Exists: true}, nil
		}
	}

	if err := p.Cache.Set(ctx, repoType, namespace, name, probeEntry{Exists: false, CheckedAt: time.Now()}); err != nil {
		return nil, err
	}

	return &ProbeResult{Exists: false}, nil
}

// ListItem is one entry in an aggregated local+fallback repo listing.
type ListItem struct {
	FullID   string
	RepoType metadata.RepoType
	Source   string // "" for a locally owned repository
}

// MergeListings combines local results with fallback results by
// (type, full_id), keeping the local entry on conflict and tagging
// every fallback-only entry with its source, per spec §4.H.
func MergeListings(local []ListItem, fallback []ListItem) []ListItem {
	seen := make(map[string]bool, len(local))

	out := make([]ListItem, 0, len(local)+len(fallback))

	for _, item := range local {
		seen[string(item.RepoType)+"/"+item.FullID] = true
		out = append(out, item)
	}

	for _, item := range fallback {
		k := string(item.RepoType) + "/" + item.FullID
		if seen[k] {
			continue
		}

		seen[k] = true
		out = append(out, item)
	}

	return out
}
