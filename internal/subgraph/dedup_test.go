package subgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterFetcher struct {
	calls int64
	delay time.Duration
	resp  Response
}

func (f *counterFetcher) Fetch(ctx context.Context, req Request) (Response, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return f.resp, nil
}

func TestDedupFetcher_DisabledCallsNextEveryTime(t *testing.T) {
	next := &counterFetcher{resp: Response{StatusCode: 200}}
	f := NewDedupFetcher(next, false)

	req := Request{SubgraphID: "PRODUCTS", Method: "POST", URL: "http://x", Body: []byte("{}")}
	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&next.calls))
}

func TestDedupFetcher_EnabledCoalescesConcurrentIdenticalRequests(t *testing.T) {
	next := &counterFetcher{delay: 30 * time.Millisecond, resp: Response{StatusCode: 200, Body: []byte("ok")}}
	f := NewDedupFetcher(next, true)

	req := Request{SubgraphID: "PRODUCTS", Method: "POST", URL: "http://x", Body: []byte(`{"q":1}`)}

	var wg sync.WaitGroup
	results := make([]Response, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.Fetch(context.Background(), req)
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&next.calls))
	for _, r := range results {
		assert.Equal(t, "ok", string(r.Body))
	}
}

func TestDedupFetcher_DifferentRequestsAreNotCoalesced(t *testing.T) {
	next := &counterFetcher{resp: Response{StatusCode: 200}}
	f := NewDedupFetcher(next, true)

	var wg sync.WaitGroup
	for _, body := range []string{"a", "b"} {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), Request{SubgraphID: "PRODUCTS", Method: "POST", URL: "http://x", Body: []byte(body)})
			assert.NoError(t, err)
		}(body)
	}
	wg.Wait()

	assert.EqualValues(t, 2, atomic.LoadInt64(&next.calls))
}

func TestDedupFetcher_LateFollowerCanceledContextStillGetsOwnerResult(t *testing.T) {
	next := &counterFetcher{delay: 40 * time.Millisecond, resp: Response{StatusCode: 200, Body: []byte("owner-result")}}
	f := NewDedupFetcher(next, true)
	req := Request{SubgraphID: "PRODUCTS", Method: "POST", URL: "http://x", Body: []byte("{}")}

	ownerDone := make(chan struct{})
	var ownerResp Response
	go func() {
		defer close(ownerDone)
		resp, err := f.Fetch(context.Background(), req)
		assert.NoError(t, err)
		ownerResp = resp
	}()

	time.Sleep(5 * time.Millisecond)
	followerCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(followerCtx, req)
	assert.ErrorIs(t, err, context.Canceled)

	<-ownerDone
	assert.Equal(t, "owner-result", string(ownerResp.Body))
	assert.EqualValues(t, 1, atomic.LoadInt64(&next.calls))
}
