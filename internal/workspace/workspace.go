// Package workspace bundles the components serving one browser session.
package workspace

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/debounce"
	"movie-recommender-web/internal/dispatch"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/nav"
	"movie-recommender-web/internal/pages"
	"movie-recommender-web/internal/rating"
	"movie-recommender-web/internal/recs"
	"movie-recommender-web/internal/session"
)

// Session storage keys owned by the workspace.
const (
	rateReturnKey  = "rateReturn"
	loginStatusKey = "loginStatus"
	loginErrorKey  = "loginError"
)

// Workspace is one browser session: its own backend cookies, caches, history
// and page controllers.
type Workspace struct {
	ID string

	Backend    *backend.Client
	Bus        *events.Bus
	Storage    *localstore.SessionStorage
	Session    *session.Client
	Dispatcher *dispatch.Dispatcher
	Recs       *recs.Cache
	Rating     *rating.Coordinator
	History    *nav.History

	Home    *pages.Home
	Browse  *pages.Browse
	Profile *pages.Profile
	Search  *pages.Search

	lastSeen    atomic.Int64
	unsubscribe []func()
}

// Options configures new workspaces.
type Options struct {
	BackendURL     string
	BackendTimeout time.Duration
	UI             config.UIConfig
	Lists          *localstore.Lists
}

// New wires a fresh workspace with an empty cookie jar.
func New(id string, opts Options) (*Workspace, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := backend.NewClient(opts.BackendURL, jar, opts.BackendTimeout)
	bus := events.NewBus()
	storage := localstore.NewSessionStorage()
	sess := session.NewClient(client, bus, storage)
	k := opts.UI.RecommendationsK
	cache := recs.New(func(ctx context.Context) ([]models.MovieRecord, error) {
		return client.ContentRecommendations(ctx, k)
	})
	history := nav.NewHistory()
	d := dispatch.New(client, sess, storage)

	w := &Workspace{
		ID:         id,
		Backend:    client,
		Bus:        bus,
		Storage:    storage,
		Session:    sess,
		Dispatcher: d,
		Recs:       cache,
		Rating:     rating.NewCoordinator(client, sess, cache, opts.Lists, bus),
		History:    history,
	}

	// registered before the controllers so a new user's recommendations are
	// dropped before anything preloads them
	w.unsubscribe = []func(){
		bus.UserLoggedIn.Subscribe(func(events.UserLoggedIn) { cache.Invalidate() }),
		bus.UserLoggedOut.Subscribe(func(events.UserLoggedOut) {
			cache.Invalidate()
			w.Rating.Close()
			storage.Delete(rateReturnKey)
		}),
	}

	w.Home = pages.NewHome(d, sess, cache, bus)
	w.Browse = pages.NewBrowse(client, sess, cache, history, bus, opts.UI)
	w.Profile = pages.NewProfile(client, sess, opts.Lists, bus)
	w.Search = pages.NewSearch(client, debounce.New(opts.UI.SearchDebounce), history, opts.UI)

	w.Touch()
	return w, nil
}

// Touch marks the workspace as used now.
func (w *Workspace) Touch() {
	w.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the workspace was last used.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// Close detaches every controller from the bus.
func (w *Workspace) Close() {
	w.Home.Close()
	w.Browse.Close()
	w.Profile.Close()
	for _, fn := range w.unsubscribe {
		fn()
	}
}

// SetRateReturn remembers the page the rating modal was opened from.
func (w *Workspace) SetRateReturn(path string) {
	w.Storage.Set(rateReturnKey, path)
}

// RateReturn returns the page to go back to once the modal closes.
func (w *Workspace) RateReturn() string {
	if p := w.Storage.Get(rateReturnKey); p != "" {
		return p
	}
	return pages.HomePath
}

// SetLoginStatus records the status line shown next to the login form.
func (w *Workspace) SetLoginStatus(msg string, failed bool) {
	w.Storage.Set(loginStatusKey, msg)
	if failed {
		w.Storage.Set(loginErrorKey, "1")
	} else {
		w.Storage.Delete(loginErrorKey)
	}
}

// LoginStatus returns the last login status line.
func (w *Workspace) LoginStatus() (string, bool) {
	return w.Storage.Get(loginStatusKey), w.Storage.Get(loginErrorKey) != ""
}
