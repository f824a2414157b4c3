package subgraph

import "context"

// DedupFetcher wraps a Fetcher with in-flight request de-duplication. It is
// transparent when disabled, matching the
// traffic_shaping.inflight_deduplication configuration default of off.
type DedupFetcher struct {
	next    Fetcher
	enabled bool
	inflt   *inflightMap
}

// NewDedupFetcher returns a Fetcher that coalesces identical concurrent
// requests through next when enabled is true.
func NewDedupFetcher(next Fetcher, enabled bool) *DedupFetcher {
	return &DedupFetcher{next: next, enabled: enabled, inflt: newInflightMap()}
}

func (f *DedupFetcher) Fetch(ctx context.Context, req Request) (Response, error) {
	if !f.enabled {
		return f.next.Fetch(ctx, req)
	}
	return f.inflt.do(ctx, req, func(ctx context.Context) (Response, error) {
		return f.next.Fetch(ctx, req)
	})
}
