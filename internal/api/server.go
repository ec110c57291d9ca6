// Package api is the HTTP surface of the directory: public lookups, the recent
// and sync listings, and the admin operations on feeds.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	feedsv1 "github.com/jdholdren/podindex/api/feeds/v1"
	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/identity"
	"github.com/jdholdren/podindex/internal/serverutil"
	"github.com/jdholdren/podindex/internal/sync"
)

type (
	// Server answers directory requests.
	Server struct {
		*http.Server

		catalog  catalog.Repo
		identity identity.Resolver
		syncer   *sync.Engine

		recentCache *expirable.LRU[string, feedsv1.RecentFeedsResponse]

		maxResults     int
		defaultResults int
		now            func() time.Time
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string

		// MaxResults caps every max parameter.
		MaxResults     int
		DefaultResults int

		// Recent feed responses are cached per raw query. Zero turns the
		// cache off.
		CacheTTL  time.Duration
		CacheSize int

		Now func() time.Time
	}
)

func NewServer(config ServerConfig, repo catalog.Repo, ids identity.Resolver, syncer *sync.Engine) *Server {
	if config.MaxResults <= 0 {
		config.MaxResults = 1000
	}
	if config.DefaultResults <= 0 || config.DefaultResults > config.MaxResults {
		config.DefaultResults = min(40, config.MaxResults)
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 512
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	r := serverutil.ErrRouter{Router: mux.NewRouter()}
	srvr := Server{
		catalog:        repo,
		identity:       ids,
		syncer:         syncer,
		maxResults:     config.MaxResults,
		defaultResults: config.DefaultResults,
		now:            config.Now,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	if config.CacheTTL > 0 {
		srvr.recentCache = expirable.NewLRU[string, feedsv1.RecentFeedsResponse](config.CacheSize, nil, config.CacheTTL)
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything

	// Public reads
	r.HandleFuncE("/api/1.0/recent/feeds", srvr.getRecentFeeds).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/recent/sync", srvr.getSync).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/podcasts/byfeedid", srvr.getPodcastByFeedID).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/podcasts/byfeedurl", srvr.getPodcastByFeedURL).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/podcasts/byguid", srvr.getPodcastByGUID).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/podcasts/byitunesid", srvr.getPodcastByITunesID).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/episodes/byfeedid", srvr.getEpisodesByFeedID).Methods(http.MethodGet)
	r.HandleFuncE("/api/1.0/episodes/byid", srvr.getEpisodeByID).Methods(http.MethodGet)

	// Admin
	r.HandleFuncE("/admin/feeds", srvr.postFeed).Methods(http.MethodPost)
	r.HandleFuncE("/admin/feeds/changeurl", srvr.postChangeURL).Methods(http.MethodPost)
	r.HandleFuncE("/admin/feeds/{id:[0-9]+}/dead", srvr.postMarkDead).Methods(http.MethodPost)
	r.HandleFuncE("/admin/feeds/{id:[0-9]+}/alive", srvr.postMarkAlive).Methods(http.MethodPost)
	r.HandleFuncE("/admin/feeds/{id:[0-9]+}/itunes", srvr.postITunesID).Methods(http.MethodPost)
	r.HandleFuncE("/admin/feeds/{id:[0-9]+}/episodes", srvr.deleteEpisodes).Methods(http.MethodDelete)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

// write sends a successful response, indented when the client asked for it.
func write(w http.ResponseWriter, r *http.Request, data any) error {
	if pretty(r) {
		return serverutil.WriteJSONPretty(w, http.StatusOK, data)
	}
	return serverutil.WriteJSON(w, http.StatusOK, data)
}
