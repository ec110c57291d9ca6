package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/podindex/internal/api"
	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/identity"
	"github.com/jdholdren/podindex/internal/store/storetest"
	"github.com/jdholdren/podindex/internal/sync"
)

var fixedNow = time.Unix(10_000, 0)

type testServer struct {
	handler http.Handler
	dbx     *sqlx.DB
}

func newTestServer(t *testing.T, cacheTTL time.Duration) testServer {
	s, dbx := storetest.New(t)
	var (
		clock    = func() time.Time { return fixedNow }
		repo     = catalog.New(s)
		resolver = identity.New(s, identity.WithClock(clock))
		syncer   = sync.New(s, repo, sync.Config{}, sync.WithClock(clock))
	)

	storetest.MustExec(t, dbx, `INSERT INTO feeds (id, url, original_url, title, language, itunes_id, created_on, newest_item_pubdate) VALUES
		(1, 'https://one.example.com/feed', 'https://one.example.com/feed', 'One', 'en', 111, 100, 9000),
		(2, 'https://two.example.com/feed', 'https://two.example.com/feed', 'Two', 'de', NULL, 200, 8000)`)
	storetest.MustExec(t, dbx, `INSERT INTO feeds (id, url, title, dead, newest_item_pubdate) VALUES (3, 'https://three.example.com/feed', 'Three', 1, 9500)`)
	storetest.MustExec(t, dbx, `INSERT INTO feed_guids (feed_id, guid) VALUES (1, 'guid-one')`)
	storetest.MustExec(t, dbx, `INSERT INTO feed_categories (feed_id, catid1) VALUES (1, 102), (2, 16)`)
	storetest.MustExec(t, dbx, `INSERT INTO items (id, feed_id, guid, title, date_published, time_added) VALUES
		(10, 1, 'a', 'A', 9000, 9990),
		(11, 1, 'b', 'B', 8000, 9990),
		(12, 2, 'c', 'C', 7000, 9995)`)
	storetest.MustExec(t, dbx, `INSERT INTO item_soundbites (item_id, start_time, duration) VALUES (10, 0, 30), (10, 30, 30)`)
	storetest.MustExec(t, dbx, `INSERT INTO item_transcripts (item_id, url, type) VALUES (10, 'https://one.example.com/a.vtt', 3), (10, 'https://one.example.com/a.json', 1)`)

	srv := api.NewServer(api.ServerConfig{
		CorsOrigin: "*",
		CacheTTL:   cacheTTL,
		Now:        clock,
	}, repo, resolver, syncer)

	return testServer{handler: srv.Handler, dbx: dbx}
}

func (ts testServer) do(t *testing.T, method, target string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if method == http.MethodPost && strings.HasPrefix(target, "/admin/feeds/") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func ids(t *testing.T, list any) []float64 {
	t.Helper()

	out := []float64{}
	for _, v := range list.([]any) {
		out = append(out, v.(map[string]any)["id"].(float64))
	}
	return out
}

func TestRecentFeeds(t *testing.T) {
	ts := newTestServer(t, 0)

	tests := []struct {
		name     string
		query    string
		wantIDs  []float64
		wantDesc string
		wantMax  any
		wantSinc any
	}{
		{name: "defaults", query: "", wantIDs: []float64{1, 2}, wantDesc: "Found matching feeds."},
		{name: "max echoed", query: "max=1", wantIDs: []float64{1}, wantDesc: "Found matching feeds.", wantMax: float64(1)},
		{name: "relative since", query: "since=-1500", wantIDs: []float64{1}, wantDesc: "Found matching feeds.", wantSinc: float64(8500)},
		{name: "garbage numbers ignored", query: "max=lots&since=soon", wantIDs: []float64{1, 2}, wantDesc: "Found matching feeds."},
		{name: "language", query: "lang=DE", wantIDs: []float64{2}, wantDesc: "Found matching feeds."},
		{name: "category by name", query: "cat=technology", wantIDs: []float64{1}, wantDesc: "Found matching feeds."},
		{name: "excluded category by id", query: "notcat=102", wantIDs: []float64{2}, wantDesc: "Found matching feeds."},
		{name: "unknown category", query: "cat=nope", wantIDs: []float64{}, wantDesc: "No recent feeds found."},
		{name: "discovery", query: "sort=Discovery", wantIDs: []float64{2, 1}, wantDesc: "Found matching feeds."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodGet, "/api/1.0/recent/feeds?"+tt.query, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "true", body["status"])
			assert.Equal(t, tt.wantIDs, ids(t, body["feeds"]))
			assert.Equal(t, float64(len(tt.wantIDs)), body["count"])
			assert.Equal(t, tt.wantDesc, body["description"])
			assert.Equal(t, tt.wantMax, body["max"])
			assert.Equal(t, tt.wantSinc, body["since"])
		})
	}
}

func TestRecentFeeds_Cached(t *testing.T) {
	ts := newTestServer(t, time.Minute)

	_, first := ts.do(t, http.MethodGet, "/api/1.0/recent/feeds?lang=de", "")
	storetest.MustExec(t, ts.dbx, `UPDATE feeds SET dead = 1 WHERE id = 2`)
	_, second := ts.do(t, http.MethodGet, "/api/1.0/recent/feeds?lang=de", "")
	assert.Equal(t, first, second)

	_, uncached := ts.do(t, http.MethodGet, "/api/1.0/recent/feeds?lang=de&pretty", "")
	assert.Equal(t, "No recent feeds found.", uncached["description"])
}

func TestPodcastLookups(t *testing.T) {
	ts := newTestServer(t, 0)

	for _, target := range []string{
		"/api/1.0/podcasts/byfeedid?id=1",
		"/api/1.0/podcasts/byfeedurl?url=" + url.QueryEscape("http://one.example.com/feed/"),
		"/api/1.0/podcasts/byguid?guid=guid-one",
		"/api/1.0/podcasts/byitunesid?id=111",
	} {
		rec, body := ts.do(t, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		feed := body["feed"].(map[string]any)
		assert.Equal(t, float64(1), feed["id"], target)
		assert.Equal(t, map[string]any{"102": "Technology"}, feed["categories"], target)
	}

	rec, body := ts.do(t, http.MethodGet, "/api/1.0/podcasts/byfeedid?id=3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "dead feeds are hidden")
	assert.Equal(t, "false", body["status"])

	rec, _ = ts.do(t, http.MethodGet, "/api/1.0/podcasts/byfeedid?id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/1.0/podcasts/byfeedurl?url=ftp://one.example.com/feed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEpisodes(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.do(t, http.MethodGet, "/api/1.0/episodes/byfeedid?id=1&max=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{10}, ids(t, body["items"]))
	item := body["items"].([]any)[0].(map[string]any)
	assert.Len(t, item["soundbites"], 2)
	assert.Len(t, item["transcripts"], 2)

	rec, body = ts.do(t, http.MethodGet, "/api/1.0/episodes/byfeedid?id=2&since=9999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No items found.", body["description"])

	rec, _ = ts.do(t, http.MethodGet, "/api/1.0/episodes/byfeedid?id=404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/1.0/episodes/byid?id=11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B", body["episode"].(map[string]any)["title"])
}

func TestSync(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.do(t, http.MethodGet, "/api/1.0/recent/sync?max=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{10, 11}, ids(t, body["items"]))
	assert.Equal(t, []float64{1}, ids(t, body["feeds"]))
	assert.Equal(t, float64(9990), body["nextSince"])
	assert.Equal(t, float64(11), body["position"])

	_, body = ts.do(t, http.MethodGet, "/api/1.0/recent/sync?max=2&since=9990&position=11", "")
	assert.Equal(t, []float64{12}, ids(t, body["items"]))
	assert.Equal(t, []float64{2}, ids(t, body["feeds"]))

	rec, _ = ts.do(t, http.MethodGet, "/api/1.0/recent/sync?position=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_AddFeed(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.do(t, http.MethodPost, "/admin/feeds", `{"url":"https://new.example.com/rss","title":"New"}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	id := body["feedId"]

	_, again := ts.do(t, http.MethodPost, "/admin/feeds", `{"url":"http://new.example.com/rss/"}`)
	assert.Equal(t, id, again["feedId"])

	rec, _ = ts.do(t, http.MethodPost, "/admin/feeds", `{"title":"no url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_ChangeURL(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.do(t, http.MethodPost, "/admin/feeds/changeurl", url.Values{"id": {"1"}, "url": {"https://one.example.com/feed"}}.Encode())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The url entered is not different.", body["description"])

	rec, body = ts.do(t, http.MethodPost, "/admin/feeds/changeurl", url.Values{"id": {"1"}, "url": {"http://two.example.com/feed/"}}.Encode())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This url already exists as podcast id: [2].", body["description"])

	rec, _ = ts.do(t, http.MethodPost, "/admin/feeds/changeurl", url.Values{"id": {"1"}, "url": {"https://moved.example.com/feed"}}.Encode())
	assert.Equal(t, http.StatusOK, rec.Code)

	var pullNow bool
	require.NoError(t, ts.dbx.Get(&pullNow, `SELECT pull_now FROM feeds WHERE id = 1`))
	assert.True(t, pullNow)
}

func TestAdmin_DeadAliveITunes(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, _ := ts.do(t, http.MethodPost, "/admin/feeds/2/dead", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/api/1.0/podcasts/byfeedid?id=2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/admin/feeds/2/alive", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := ts.do(t, http.MethodPost, "/admin/feeds/2/itunes", "itunesId=222")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "iTunes id linked.", body["description"])

	_, body = ts.do(t, http.MethodPost, "/admin/feeds/2/itunes", "itunesId=333")
	assert.Equal(t, "Feed already has an iTunes id; nothing changed.", body["description"])

	rec, _ = ts.do(t, http.MethodPost, "/admin/feeds/999/dead", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_DeleteEpisodes(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.do(t, http.MethodDelete, "/admin/feeds/1/episodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["deleted"])

	var left int
	require.NoError(t, ts.dbx.Get(&left, `SELECT COUNT(*) FROM items WHERE feed_id = 1`))
	assert.Zero(t, left)
}
