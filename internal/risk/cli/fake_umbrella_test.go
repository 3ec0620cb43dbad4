package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/haukened/risklists/internal/risk/domain"
)

// fakeUmbrella is an in-memory stand-in for the auth, App Discovery and
// Policies APIs.
type fakeUmbrella struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	apps         []map[string]any
	lists        []map[string]any
	members      map[int64][]domain.DestinationEntry
	nextID       int64
	hits         int
	tokenCalls   int
	createCalls  int
	addCalls     int
	added        [][]domain.DestinationEntry
	rejectTokens bool
	inBandReject bool
}

func newFakeUmbrella(t *testing.T) *fakeUmbrella {
	f := &fakeUmbrella{t: t, members: map[int64][]domain.DestinationEntry{}, nextID: 1000}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v2/token", f.token)
	mux.HandleFunc("GET /reports/v2/appDiscovery/applications", f.applications)
	mux.HandleFunc("GET /policies/v2/destinationlists", f.getLists)
	mux.HandleFunc("POST /policies/v2/destinationlists", f.createList)
	mux.HandleFunc("GET /policies/v2/destinationlists/{id}/destinations", f.getMembers)
	mux.HandleFunc("POST /policies/v2/destinationlists/{id}/destinations", f.addMembers)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits++
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// env points the configuration at the fake server.
func (f *fakeUmbrella) env(t *testing.T, outDir string) {
	t.Setenv("UMBRELLA_ENV", "prod")
	t.Setenv("UMBRELLA_LOG_LEVEL", "error")
	t.Setenv("UMBRELLA_BASE_URL", f.srv.URL)
	t.Setenv("UMBRELLA_AUTH_URL", f.srv.URL+"/auth/v2/token")
	t.Setenv("UMBRELLA_APP_DISCOVERY_API_KEY", "ad-key")
	t.Setenv("UMBRELLA_APP_DISCOVERY_API_SECRET", "ad-secret")
	t.Setenv("UMBRELLA_POLICIES_API_KEY", "pol-key")
	t.Setenv("UMBRELLA_POLICIES_API_SECRET", "pol-secret")
	t.Setenv("UMBRELLA_OUTPUT_DIR", outDir)
}

func (f *fakeUmbrella) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func (f *fakeUmbrella) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode: %v", err)
	}
}

func (f *fakeUmbrella) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenCalls++
	reject := f.rejectTokens
	f.mu.Unlock()
	if _, _, ok := r.BasicAuth(); !ok || reject {
		f.reply(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	f.reply(w, http.StatusOK, map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 3600})
}

func (f *fakeUmbrella) applications(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply(w, http.StatusOK, map[string]any{"items": f.apps, "totalPages": 1})
}

func (f *fakeUmbrella) getLists(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply(w, http.StatusOK, map[string]any{"data": f.lists})
}

func (f *fakeUmbrella) createList(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		f.reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	l := map[string]any{"id": f.nextID, "name": body["name"], "access": body["access"], "isGlobal": body["isGlobal"]}
	f.lists = append(f.lists, l)
	f.reply(w, http.StatusOK, map[string]any{"data": l})
}

func (f *fakeUmbrella) getMembers(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply(w, http.StatusOK, map[string]any{"data": f.members[id]})
}

func (f *fakeUmbrella) addMembers(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var batch []domain.DestinationEntry
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		f.reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.inBandReject {
		f.reply(w, http.StatusOK, map[string]any{"statusCode": 400, "message": "destinations are high volume"})
		return
	}
	f.added = append(f.added, batch)
	f.members[id] = append(f.members[id], batch...)
	f.reply(w, http.StatusOK, map[string]any{"status": map[string]any{"code": 200}, "data": map[string]any{"id": id}})
}

func (f *fakeUmbrella) writes() (creates, adds int, added [][]domain.DestinationEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.addCalls, append([][]domain.DestinationEntry(nil), f.added...)
}
