package quote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/pkg/types"
)

// fakeFetcher records calls and serves canned responses, optionally
// blocking until released to simulate a slow aggregator.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int32
	fetched []*types.QuoteRequest

	quote *types.Quote
	err   error
	block chan struct{} // when set, GetQuote waits for it (or ctx)
}

func (f *fakeFetcher) GetQuote(ctx context.Context, req *types.QuoteRequest) (*types.Quote, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.fetched = append(f.fetched, req)
	block := f.block
	quote, err := f.quote, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (f *fakeFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testRequest(amount string) *types.QuoteRequest {
	return &types.QuoteRequest{
		FromChain:   1,
		ToChain:     8453,
		FromToken:   "0x0000000000000000000000000000000000000000",
		ToToken:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		FromAmount:  amount,
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "0x2222222222222222222222222222222222222222",
	}
}

func newTestPipeline(f Fetcher) *Pipeline {
	p := NewPipeline(f)
	p.SetDebounce(20 * time.Millisecond)
	p.SetTimeout(time.Second)
	return p
}

func await(t *testing.T, done <-chan Result) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := Await(ctx, done)
	require.NoError(t, err)
	return res
}

func TestPipelineDeliversQuote(t *testing.T) {
	fetcher := &fakeFetcher{quote: &types.Quote{ID: "q1", Tool: "across"}}
	p := newTestPipeline(fetcher)
	defer p.Close()

	res := await(t, p.Submit(testRequest("1000")))
	require.NoError(t, res.Err)
	require.NotNil(t, res.Quote)
	assert.Equal(t, "q1", res.Quote.ID)

	snap := p.Snapshot()
	assert.Equal(t, "q1", snap.Quote.ID)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.ErrMsg)
}

func TestPipelineDebounce(t *testing.T) {
	// Only the last request inside the debounce window may reach the
	// network.
	fetcher := &fakeFetcher{quote: &types.Quote{ID: "final"}}
	p := newTestPipeline(fetcher)
	defer p.Close()

	first := p.Submit(testRequest("1"))
	second := p.Submit(testRequest("2"))
	last := p.Submit(testRequest("3"))

	res := await(t, last)
	require.NoError(t, res.Err)
	assert.Equal(t, "final", res.Quote.ID)

	assert.ErrorIs(t, await(t, first).Err, ErrSuperseded)
	assert.ErrorIs(t, await(t, second).Err, ErrSuperseded)

	assert.Equal(t, 1, fetcher.callCount())
	require.Len(t, fetcher.fetched, 1)
	assert.Equal(t, "3", fetcher.fetched[0].FromAmount)
}

func TestPipelineNoStaleOverwrite(t *testing.T) {
	// An in-flight call superseded by a newer submission must never
	// apply its result to state.
	block := make(chan struct{})
	fetcher := &fakeFetcher{quote: &types.Quote{ID: "stale"}, block: block}
	p := newTestPipeline(fetcher)
	defer p.Close()

	first := p.Submit(testRequest("1"))

	// Let the first request pass the debounce and start its call.
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	fetcher.mu.Lock()
	fetcher.quote = &types.Quote{ID: "fresh"}
	fetcher.block = nil
	fetcher.mu.Unlock()

	second := p.Submit(testRequest("2"))
	close(block) // first call now completes, but it was cancelled

	res := await(t, second)
	require.NoError(t, res.Err)
	assert.Equal(t, "fresh", res.Quote.ID)

	assert.ErrorIs(t, await(t, first).Err, ErrSuperseded)
	assert.Equal(t, "fresh", p.Snapshot().Quote.ID)
}

func TestPipelineNilRequestClearsState(t *testing.T) {
	fetcher := &fakeFetcher{quote: &types.Quote{ID: "q1"}}
	p := newTestPipeline(fetcher)
	defer p.Close()

	await(t, p.Submit(testRequest("1000")))
	require.NotNil(t, p.Snapshot().Quote)

	calls := fetcher.callCount()
	res := await(t, p.Submit(nil))
	require.NoError(t, res.Err)

	snap := p.Snapshot()
	assert.Nil(t, snap.Quote)
	assert.Empty(t, snap.ErrMsg)
	assert.False(t, snap.Loading)
	// A nil request never touches the network.
	assert.Equal(t, calls, fetcher.callCount())
}

func TestPipelineSurfacesAggregatorMessage(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("API error (status 400): amount too low")}
	p := newTestPipeline(fetcher)
	defer p.Close()

	res := await(t, p.Submit(testRequest("1")))
	require.Error(t, res.Err)

	snap := p.Snapshot()
	assert.Nil(t, snap.Quote)
	assert.Equal(t, "API error (status 400): amount too low", snap.ErrMsg)
}

func TestPipelineTimeout(t *testing.T) {
	// A stalled call must settle through the error path, not hang in
	// loading.
	fetcher := &fakeFetcher{block: make(chan struct{})}
	p := newTestPipeline(fetcher)
	defer p.Close()
	p.SetTimeout(30 * time.Millisecond)

	res := await(t, p.Submit(testRequest("1")))
	require.Error(t, res.Err)

	snap := p.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "quote request timed out", snap.ErrMsg)
}

func TestPipelineErrorClearedBySuccess(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	p := newTestPipeline(fetcher)
	defer p.Close()

	await(t, p.Submit(testRequest("1")))
	require.NotEmpty(t, p.Snapshot().ErrMsg)

	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.quote = &types.Quote{ID: "ok"}
	fetcher.mu.Unlock()

	res := await(t, p.Submit(testRequest("2")))
	require.NoError(t, res.Err)

	snap := p.Snapshot()
	assert.Empty(t, snap.ErrMsg)
	assert.Equal(t, "ok", snap.Quote.ID)
}

func TestPipelineClose(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	fetcher := &fakeFetcher{block: block}
	p := newTestPipeline(fetcher)

	inflight := p.Submit(testRequest("1"))
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	p.Close()

	assert.ErrorIs(t, await(t, inflight).Err, ErrSuperseded)
	assert.ErrorIs(t, await(t, p.Submit(testRequest("2"))).Err, ErrClosed)

	snap := p.Snapshot()
	assert.Nil(t, snap.Quote)
	assert.False(t, snap.Loading)
}

func TestPipelineDebounceDiscardsWithoutNetwork(t *testing.T) {
	fetcher := &fakeFetcher{quote: &types.Quote{ID: "q"}}
	p := NewPipeline(fetcher)
	defer p.Close()
	p.SetDebounce(200 * time.Millisecond)

	first := p.Submit(testRequest("1"))
	// Supersede well inside the window.
	time.Sleep(20 * time.Millisecond)
	second := p.Submit(nil)

	assert.ErrorIs(t, await(t, first).Err, ErrSuperseded)
	await(t, second)
	assert.Equal(t, 0, fetcher.callCount())
}
