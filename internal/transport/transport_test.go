package transport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/metrics"
	"github.com/roach88/listsync/internal/store"
	"github.com/roach88/listsync/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	mem    *store.Memory
	srv    *httptest.Server
	client *transport.Client
	reg    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	reg := prometheus.NewRegistry()
	s := transport.NewServer(mem,
		transport.WithServerLogger(quietLogger()),
		transport.WithServerMetrics(metrics.New(reg), reg),
		transport.WithHeartbeat(50*time.Millisecond),
	)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &fixture{
		mem:    mem,
		srv:    srv,
		client: transport.NewClient(srv.URL, transport.WithClientLogger(quietLogger())),
		reg:    reg,
	}
}

func (f *fixture) seed(t *testing.T, listID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		tag := "plain"
		if i%3 == 0 {
			tag = "pinned"
		}
		_, err := f.mem.Create(context.Background(), listID, item.Fields{"n": int64(i), "tag": tag})
		require.NoError(t, err)
	}
}

func receive(t *testing.T, ch <-chan item.Event) item.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return item.Event{}
	}
}

func TestClient_FetchPageMatchesBackend(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "inbox", 20)
	ctx := context.Background()

	reqs := []item.PageRequest{
		{ListID: "inbox", Direction: item.Top, PageSize: 5},
		{ListID: "inbox", Direction: item.Bottom, PageSize: 5, Anchor: item.Ref(8)},
		{ListID: "inbox", Direction: item.Top, PageSize: 4, Anchor: item.Ref(10), HasHash: true},
		{ListID: "inbox", Direction: item.Top, PageSize: 10, Filter: "tag=pinned"},
	}
	for _, req := range reqs {
		want, err := f.mem.FetchPage(ctx, req)
		require.NoError(t, err)
		got, err := f.client.FetchPage(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, item.IDs(want.Items), item.IDs(got.Items), "request %+v", req)
		assert.Equal(t, want.Exhausted, got.Exhausted, "request %+v", req)
	}
}

func TestClient_FieldsKeepIntegers(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "inbox", 1)

	page, err := f.client.FetchPage(context.Background(), item.PageRequest{ListID: "inbox", Direction: item.Top, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].Fields["n"])
	assert.Equal(t, "plain", page.Items[0].Fields["tag"])
}

func TestClient_NumberedAndCounts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "inbox", 12)
	ctx := context.Background()

	res, err := f.client.FetchNumbered(ctx, item.Query{ListID: "inbox", NewestFirst: true, Offset: 5, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Count)
	assert.Equal(t, []item.ID{7, 6, 5, 4, 3}, item.IDs(res.Items))

	n, err := f.client.FetchCount(ctx, item.Query{ListID: "inbox", Filter: "tag=pinned"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	cr, err := f.client.FetchCountFiltered(ctx, item.Query{ListID: "inbox"}, 9)
	require.NoError(t, err)
	want, err := f.mem.FetchCountFiltered(ctx, item.Query{ListID: "inbox"}, 9)
	require.NoError(t, err)
	assert.Equal(t, want, cr)
}

func TestClient_Writes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	it, err := f.client.Create(ctx, "inbox", item.Fields{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, item.ID(1), it.ID)
	assert.Equal(t, "inbox", it.ListID)

	require.NoError(t, f.client.Update(ctx, item.Item{ID: it.ID, Fields: item.Fields{"title": "bye"}}))
	items := f.mem.Items("inbox")
	require.Len(t, items, 1)
	assert.Equal(t, "bye", items[0].Fields["title"])

	require.NoError(t, f.client.Delete(ctx, it.ID))
	assert.Empty(t, f.mem.Items("inbox"))
}

func TestClient_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.client.Delete(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, transport.IsNotFound(err))

	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestServer_BadParameters(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/v1/lists/inbox/items?page_size=abc",
		"/v1/lists/inbox/items?direction=sideways",
		"/v1/lists/inbox/items?filter=nonsense",
		"/v1/lists/inbox/count-before?probe=x",
		"/v1/lists/inbox/events?after=-1",
	} {
		resp, err := http.Get(f.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestClient_SubscribeReceivesWrites(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.client.Subscribe(ctx, "inbox")
	require.NoError(t, err)

	_, err = f.client.Create(ctx, "inbox", item.Fields{"title": "a"})
	require.NoError(t, err)
	_, err = f.client.Create(ctx, "other", item.Fields{"title": "b"})
	require.NoError(t, err)
	require.NoError(t, f.client.Delete(ctx, 1))

	ev := receive(t, ch)
	assert.Equal(t, item.Created, ev.Kind)
	assert.Equal(t, item.ID(1), ev.Item.ID)
	assert.Equal(t, "a", ev.Item.Fields["title"])
	assert.Positive(t, ev.Seq)

	ev2 := receive(t, ch)
	assert.Equal(t, item.Deleted, ev2.Kind)
	assert.Equal(t, item.ID(1), ev2.Item.ID)
	assert.Greater(t, ev2.Seq, ev.Seq)
}

func TestClient_SubscribeFromReplaysMissedEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "inbox", 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.mem.EventsSince(ctx, "inbox", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	ch, err := f.client.SubscribeFrom(ctx, "inbox", events[0].Seq)
	require.NoError(t, err)

	assert.Equal(t, item.ID(2), receive(t, ch).Item.ID)
	assert.Equal(t, item.ID(3), receive(t, ch).Item.ID)

	_, err = f.client.Create(ctx, "inbox", nil)
	require.NoError(t, err)
	assert.Equal(t, item.ID(4), receive(t, ch).Item.ID)
}

func TestClient_SubscribeClosesOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.client.Subscribe(ctx, "inbox")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.FetchCount(context.Background(), item.Query{ListID: "inbox"})
	require.NoError(t, err)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `listsync_http_requests_total{code="200",route="count"} 1`)
}

func TestServer_EventStreamFraming(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "inbox", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/v1/lists/inbox/events?after=0", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = f.mem.Create(ctx, "inbox", nil)
	require.NoError(t, err)

	buf := make([]byte, 0, 512)
	chunk := make([]byte, 256)
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(string(buf), "data: {") && time.Now().Before(deadline) {
		n, err := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	assert.Contains(t, string(buf), "id: 2\nevent: created\ndata: {")
}
