package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fvitu/offliner/internal/models"
	"github.com/fvitu/offliner/internal/shared"
)

// albumPageSize and playlistPageSize are the catalog pagination page sizes
// named in spec.md §4.3.
const (
	albumPageSize    = 50
	playlistPageSize = 100

	cacheTTL          = 10 * time.Minute
	searchCacheSize   = 512
	translateCacheSize = 256
)

// SearchResult is one hit from a catalog's search or listing API, before it
// becomes a models.Target.
type SearchResult struct {
	SourceRef string
	URL       string
	Title     string
	Artist    string
	Uploader  string
	Duration  time.Duration
}

func (r SearchResult) candidate() candidate {
	return candidate{Title: r.Title, Artist: r.Artist}
}

func (r SearchResult) toTarget(platform models.Platform) models.Target {
	return models.Target{
		SourceRef: r.SourceRef,
		URL:       r.URL,
		Title:     r.Title,
		Uploader:  r.Uploader,
		Duration:  r.Duration,
		Platform:  platform,
	}
}

// Searcher issues a free-text query against a catalog and returns ranked
// results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// CatalogClient is the music-license-centric catalog (platform B): it can
// search, and it can paginate a single track's metadata and the contents of
// an album or playlist.
type CatalogClient interface {
	Searcher
	TrackInfo(ctx context.Context, trackID string) (SearchResult, error)
	AlbumPage(ctx context.Context, albumID string, offset, limit int) (items []SearchResult, hasMore bool, err error)
	PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (items []SearchResult, hasMore bool, err error)
}

// FlatLister lists a general-catalog playlist's item URLs without probing
// each item's metadata (spec.md §4.3 "use a flat extractor").
type FlatLister interface {
	ListFlat(ctx context.Context, playlistURL string) ([]SearchResult, error)
}

// Resolver is the Media Resolver: it turns a Request's raw input (or
// pre-selected targets) into an ordered list of models.Target.
type Resolver struct {
	General FlatLister
	Catalog CatalogClient

	searchCache   *ttlCache
	translateCache *ttlCache

	// limiter bounds outbound search QPS against the general catalog during
	// playlist expansion fan-out (spec.md §4.3 "bounded by caller").
	limiter *rate.Limiter

	// Concurrency bounds the number of simultaneous searches issued while
	// expanding a catalog playlist/album. Defaults to 4 if unset.
	Concurrency int
}

// New returns a Resolver wired to the given catalog clients.
func New(general FlatLister, catalog CatalogClient) *Resolver {
	return &Resolver{
		General:        general,
		Catalog:        catalog,
		searchCache:    newTTLCache(searchCacheSize, cacheTTL),
		translateCache: newTTLCache(translateCacheSize, cacheTTL),
		limiter:        rate.NewLimiter(rate.Limit(5), 5),
		Concurrency:    4,
	}
}

// Input bundles the pieces of a job the resolver needs; it mirrors the
// relevant subset of queue.Job without importing it, to keep resolver free
// of a dependency on the broker's wire format.
type Input struct {
	RawInput              string
	PlaylistMode          bool
	SelectedTargets        []models.Target
	PreferAlternateSource bool
	WantAudio             bool
	MaxPlaylistItems      int
}

// Resolve turns in into an ordered list of targets, per spec.md §4.3.
func (r *Resolver) Resolve(ctx context.Context, in Input) ([]models.Target, error) {
	if in.PlaylistMode && len(in.SelectedTargets) > 0 {
		return in.SelectedTargets, nil
	}

	if in.RawInput == "" {
		return nil, shared.ErrEmptyInput
	}

	cls := classify(in.RawInput)

	switch {
	case cls.platform == models.PlatformCatalog && cls.playlist:
		return r.resolveCatalogPlaylist(ctx, in.RawInput, in.MaxPlaylistItems)
	case cls.platform == models.PlatformGeneral && cls.playlist:
		return r.resolveGeneralPlaylist(ctx, in.RawInput, in.MaxPlaylistItems)
	case cls.platform == models.PlatformMusic && cls.playlist:
		return r.resolveGeneralPlaylist(ctx, in.RawInput, in.MaxPlaylistItems)
	case cls.platform == models.PlatformCatalog && !cls.playlist:
		return r.translateSingle(ctx, in.RawInput)
	case cls.freeText:
		return r.searchFreeText(ctx, in.RawInput, in.PreferAlternateSource && in.WantAudio)
	default:
		// A recognized single-item marker on the general catalog (or its
		// music-specialized frontend) is already a downloadable URL; the
		// engine's pre-flight probe fills in title/uploader.
		return []models.Target{{URL: in.RawInput, Platform: cls.platform}}, nil
	}
}

// searchFreeText issues one query, per spec.md §4.3: to the catalog first
// when preferAlternate, falling back to the general catalog, else to the
// general catalog directly.
func (r *Resolver) searchFreeText(ctx context.Context, query string, preferAlternate bool) ([]models.Target, error) {
	cacheKey := shared.NormalizeTrackKey(query, "")
	if cached, ok := r.searchCache.get(cacheKey); ok {
		return cached.([]models.Target), nil
	}

	var results []SearchResult
	var err error
	platform := models.PlatformGeneral

	if preferAlternate && r.Catalog != nil {
		results, err = r.Catalog.Search(ctx, query, 1)
		if err == nil && len(results) > 0 {
			platform = models.PlatformCatalog
		}
	}

	if len(results) == 0 {
		if r.General == nil {
			return nil, fmt.Errorf("%w: no general catalog search client configured", shared.ErrResolutionFailed)
		}
		generalSearcher, ok := r.General.(Searcher)
		if !ok {
			return nil, fmt.Errorf("%w: general catalog cannot search free text", shared.ErrResolutionFailed)
		}
		results, err = generalSearcher.Search(ctx, query, 1)
		platform = models.PlatformGeneral
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", shared.ErrResolutionFailed, query)
	}

	targets := []models.Target{results[0].toTarget(platform)}
	r.searchCache.set(cacheKey, targets)
	return targets, nil
}

// translateSingle resolves a single-item catalog reference to its
// canonical name+artist, then searches the general catalog for a playable
// match, per spec.md §4.3.1.
func (r *Resolver) translateSingle(ctx context.Context, raw string) ([]models.Target, error) {
	id := catalogID(raw)
	if id == "" || r.Catalog == nil {
		return nil, fmt.Errorf("%w: unrecognized catalog reference", shared.ErrResolutionFailed)
	}

	if cached, ok := r.translateCache.get(id); ok {
		return []models.Target{cached.(models.Target)}, nil
	}

	info, err := r.Catalog.TrackInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}

	target, err := r.matchOnGeneral(ctx, info)
	if err != nil {
		return nil, err
	}

	r.translateCache.set(id, target)
	return []models.Target{target}, nil
}

// matchOnGeneral searches the general catalog for query and accepts the
// best fuzzy match against query's combined "title artist" string.
func (r *Resolver) matchOnGeneral(ctx context.Context, query SearchResult) (models.Target, error) {
	generalSearcher, ok := r.General.(Searcher)
	if !ok {
		return models.Target{}, fmt.Errorf("%w: general catalog cannot search", shared.ErrResolutionFailed)
	}

	combinedQuery := query.Title + " " + query.Artist
	results, err := generalSearcher.Search(ctx, combinedQuery, 10)
	if err != nil {
		return models.Target{}, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}
	if len(results) == 0 {
		return models.Target{}, fmt.Errorf("%w: no candidates for %q", shared.ErrResolutionFailed, combinedQuery)
	}

	candidates := make([]candidate, len(results))
	for i, res := range results {
		candidates[i] = res.candidate()
	}

	idx, _, ok := bestMatch(query.candidate(), candidates)
	if !ok {
		return models.Target{}, fmt.Errorf("%w: no fuzzy match above threshold for %q", shared.ErrResolutionFailed, combinedQuery)
	}

	target := results[idx].toTarget(models.PlatformGeneral)
	target.AlbumName = ""
	return target, nil
}

// resolveCatalogPlaylist paginates a catalog playlist or album, then
// resolves each (title, artist) pair on the general catalog with a bounded
// concurrent fan-out, per spec.md §4.3.
func (r *Resolver) resolveCatalogPlaylist(ctx context.Context, raw string, maxItems int) ([]models.Target, error) {
	id := catalogID(raw)
	if id == "" || r.Catalog == nil {
		return nil, fmt.Errorf("%w: unrecognized catalog playlist reference", shared.ErrResolutionFailed)
	}

	pageSize := playlistPageSize
	if isCatalogAlbum(raw) {
		pageSize = albumPageSize
	}

	var items []SearchResult
	offset := 0
	for {
		var page []SearchResult
		var more bool
		var err error
		if isCatalogAlbum(raw) {
			page, more, err = r.Catalog.AlbumPage(ctx, id, offset, pageSize)
		} else {
			page, more, err = r.Catalog.PlaylistPage(ctx, id, offset, pageSize)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
		}
		items = append(items, page...)
		if maxItems > 0 && len(items) >= maxItems {
			items = items[:maxItems]
			break
		}
		if !more {
			break
		}
		offset += pageSize
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty catalog playlist", shared.ErrResolutionFailed)
	}

	return r.resolveConcurrently(ctx, items)
}

// resolveGeneralPlaylist lists a general-catalog playlist's item URLs via
// the flat extractor, without per-item metadata probing.
func (r *Resolver) resolveGeneralPlaylist(ctx context.Context, raw string, maxItems int) ([]models.Target, error) {
	if r.General == nil {
		return nil, fmt.Errorf("%w: no general catalog configured", shared.ErrResolutionFailed)
	}

	items, err := r.General.ListFlat(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty playlist", shared.ErrResolutionFailed)
	}
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	targets := make([]models.Target, len(items))
	for i, item := range items {
		targets[i] = item.toTarget(models.PlatformGeneral)
	}
	return targets, nil
}

// resolveConcurrently matches each catalog item against the general
// catalog using a worker pool of size r.Concurrency, rate-limited, and
// skips items that fail to match rather than failing the whole job.
func (r *Resolver) resolveConcurrently(ctx context.Context, items []SearchResult) ([]models.Target, error) {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}

	type indexed struct {
		idx    int
		target models.Target
		err    error
	}

	in := make(chan int)
	out := make(chan indexed, len(items))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range in {
				if r.limiter != nil {
					_ = r.limiter.Wait(ctx)
				}
				t, err := r.matchOnGeneral(ctx, items[idx])
				out <- indexed{idx: idx, target: t, err: err}
			}
		}()
	}

	go func() {
		for i := range items {
			in <- i
		}
		close(in)
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]*models.Target, len(items))
	for res := range out {
		if res.err != nil {
			continue
		}
		t := res.target
		results[res.idx] = &t
	}

	targets := make([]models.Target, 0, len(items))
	for _, t := range results {
		if t != nil {
			targets = append(targets, *t)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no catalog items matched on the general catalog", shared.ErrResolutionFailed)
	}
	return targets, nil
}
