package events

import "time"

// SubgraphFetchStart is emitted before a subgraph.Fetcher call is issued.
type SubgraphFetchStart struct {
	SubgraphID string
	Method     string
	URL        string
}

// SubgraphFetchFinish is emitted after a subgraph.Fetcher call completes,
// successfully or not.
type SubgraphFetchFinish struct {
	SubgraphID string
	Method     string
	URL        string
	StatusCode int
	Err        error
	Duration   time.Duration
}
