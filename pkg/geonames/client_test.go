package geonames

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type fakeResponse struct {
	body   string
	status int
	err    error
}

// fakeFetcher answers by endpoint path and records every request.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []fakeCall
}

type fakeCall struct {
	rawURL string
	query  url.Values
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string, query url.Values) ([]byte, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{rawURL: rawURL, query: query})
	f.mu.Unlock()
	for suffix, resp := range f.responses {
		if strings.HasSuffix(rawURL, "/"+suffix) {
			return []byte(resp.body), resp.status, resp.err
		}
	}
	return nil, 404, fmt.Errorf("no fake response for %s", rawURL)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newFakeClient(responses map[string]fakeResponse) (*Client, *fakeFetcher) {
	fetcher := &fakeFetcher{responses: responses}
	return NewClient(Config{Username: "alice", BaseURL: "http://geonames.test"}, fetcher, nil), fetcher
}

// TestNewClientDefaults verifies new client defaults behavior.
func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]fakeResponse{
		pathSearch: {status: 200, body: `{"totalResultsCount": 0, "geonames": []}`},
	}}
	client := NewClient(Config{Username: "  "}, fetcher, nil)
	if client.Username() != DefaultUsername {
		t.Fatalf("username = %q, want %q", client.Username(), DefaultUsername)
	}
	if _, err := client.Search(context.Background(), SearchOptions{Q: "Kiruna"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	call := fetcher.lastCall()
	if call.rawURL != DefaultBaseURL+pathSearch {
		t.Fatalf("unexpected url %q", call.rawURL)
	}
	if call.query.Get("username") != DefaultUsername {
		t.Fatalf("expected the demo account to be sent, got %v", call.query)
	}
}

// TestFindNearbyPlaceCoercesDistance verifies find nearby place coerces distance behavior.
func TestFindNearbyPlaceCoercesDistance(t *testing.T) {
	t.Parallel()

	client, fetcher := newFakeClient(map[string]fakeResponse{
		pathNearbyPlace: {status: 200, body: `{"geonames": [
			{"name": "Stockholm", "geonameId": 2673730, "distance": "0.48424", "population": "1515017"}
		]}`},
	})
	records, err := client.FindNearbyPlace(context.Background(), LatLng{Lat: 59.33, Lng: 18.06}, NearbyOptions{MaxRows: intPtr(1)})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if d, ok := records[0]["distance"].(float64); !ok || d != 0.48424 {
		t.Fatalf("distance not converted: %#v", records[0]["distance"])
	}
	call := fetcher.lastCall()
	if !strings.HasSuffix(call.rawURL, "/"+pathNearbyPlace) {
		t.Fatalf("unexpected url %q", call.rawURL)
	}
	if call.query.Get("maxRows") != "1" || call.query.Get("lat") != "59.33" {
		t.Fatalf("unexpected query %v", call.query)
	}
}

// TestFindNearbyToponymRejectsBadDistance verifies find nearby toponym rejects bad distance behavior.
func TestFindNearbyToponymRejectsBadDistance(t *testing.T) {
	t.Parallel()

	client, _ := newFakeClient(map[string]fakeResponse{
		pathNearbyToponym: {status: 200, body: `{"geonames": [{"name": "Skansen", "distance": "near"}]}`},
	})
	_, err := client.FindNearbyToponym(context.Background(), LatLng{Lat: 59.32, Lng: 18.1}, NearbyOptions{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}

	client, _ = newFakeClient(map[string]fakeResponse{
		pathNearbyWikipedia: {status: 200, body: `{"geonames": [
			{"title": "A", "rank": 1, "distance": "1"},
			{"title": "B", "rank": 2, "distance": "NaN"}
		]}`},
	})
	_, err = client.FindNearbyWikipedia(context.Background(), LatLng{}, WikipediaOptions{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected a NaN distance to be a malformed response, got %v", err)
	}
}

// TestFindNearbyWikipediaRanks verifies find nearby wikipedia ranks behavior.
func TestFindNearbyWikipediaRanks(t *testing.T) {
	t.Parallel()

	body := `{"geonames": [
		{"title": "A", "rank": 50, "distance": "10"},
		{"title": "B", "rank": 90, "distance": "2"},
		{"title": "C", "rank": 10, "distance": "7"}
	]}`
	client, fetcher := newFakeClient(map[string]fakeResponse{
		pathNearbyWikipedia: {status: 200, body: body},
	})
	ranked, err := client.FindNearbyWikipedia(context.Background(), LatLng{Lat: 1, Lng: 2}, WikipediaOptions{
		RankWeight:     floatPtr(0),
		DistanceWeight: floatPtr(1),
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got, want := titles(ranked), []string{"B", "C", "A"}; !equalStrings(got, want) {
		t.Fatalf("got order %v, want %v", got, want)
	}
	if fetcher.lastCall().query.Has("rankWeight") {
		t.Fatalf("weights must not be sent to the service")
	}

	client, _ = newFakeClient(map[string]fakeResponse{
		pathNearbyWikipedia: {status: 200, body: `{"geonames": [{"title": "A", "distance": "1"}]}`},
	})
	_, err = client.FindNearbyWikipedia(context.Background(), LatLng{}, WikipediaOptions{})
	if !errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected a missing rank to be a malformed response, got %v", err)
	}
}

// TestHierarchyOf verifies hierarchy of behavior.
func TestHierarchyOf(t *testing.T) {
	t.Parallel()

	client, fetcher := newFakeClient(map[string]fakeResponse{
		pathHierarchy: {status: 200, body: `{"geonames": [
			{"name": "Earth", "geonameId": 6295630},
			{"name": "Europe", "geonameId": 6255148},
			{"name": "Sweden", "geonameId": 2661886},
			{"name": "Uppsala", "geonameId": 2666199}
		]}`},
	})
	chain, err := client.HierarchyOf(context.Background(), Record{"name": "Uppsala", "geonameId": 2666199.0})
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if len(chain) != 4 || chain[0].Name() != "Earth" || chain[3].Name() != "Uppsala" {
		t.Fatalf("unexpected chain %v", chain)
	}
	if got := fetcher.lastCall().query.Get("geonameId"); got != "2666199" {
		t.Fatalf("geonameId = %q", got)
	}

	calls := fetcher.callCount()
	if _, err := client.HierarchyOf(context.Background(), Record{"name": "nowhere"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if fetcher.callCount() != calls {
		t.Fatalf("a record without an id must not reach the network")
	}
}

// TestSearchPageTotal verifies search page total behavior.
func TestSearchPageTotal(t *testing.T) {
	t.Parallel()

	client, fetcher := newFakeClient(map[string]fakeResponse{
		pathSearch: {status: 200, body: `{"totalResultsCount": 412, "geonames": [{"name": "Göteborg"}, {"name": "Gothenburg"}]}`},
	})
	page, err := client.SearchPage(context.Background(), SearchOptions{Q: "Göteborg", MaxRows: intPtr(2), StartRow: intPtr(10)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalResultsCount != 412 || len(page.Geonames) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if q := fetcher.lastCall().query; q.Get("startRow") != "10" || q.Get("q") != "Göteborg" {
		t.Fatalf("unexpected query %v", q)
	}

	for _, total := range []string{`12.5`, `-1`, `"many"`, `true`} {
		client, _ := newFakeClient(map[string]fakeResponse{
			pathSearch: {status: 200, body: `{"totalResultsCount": ` + total + `, "geonames": []}`},
		})
		if _, err := client.SearchPage(context.Background(), SearchOptions{Q: "x"}); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("totalResultsCount %s: expected malformed response, got %v", total, err)
		}
	}
	client, _ = newFakeClient(map[string]fakeResponse{
		pathSearch: {status: 200, body: `{"totalResultsCount": "7", "geonames": []}`},
	})
	if page, err := client.SearchPage(context.Background(), SearchOptions{Q: "x"}); err != nil || page.TotalResultsCount != 7 {
		t.Fatalf("string total: got %+v, %v", page, err)
	}
}

// TestSearchWithoutQueryMakesNoRequest verifies search without query makes no request behavior.
func TestSearchWithoutQueryMakesNoRequest(t *testing.T) {
	t.Parallel()

	client, fetcher := newFakeClient(nil)
	_, err := client.Search(context.Background(), SearchOptions{Country: "SE"})
	var argErr *InvalidArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected InvalidArgumentError, got %v", err)
	}
	if fetcher.callCount() != 0 {
		t.Fatalf("expected no request, got %d", fetcher.callCount())
	}
}

// TestFetcherErrorPassesThrough verifies fetcher error passes through behavior.
func TestFetcherErrorPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	client, _ := newFakeClient(map[string]fakeResponse{
		pathSearch: {err: boom},
	})
	_, err := client.Search(context.Background(), SearchOptions{Q: "x"})
	if err != boom {
		t.Fatalf("expected the fetcher error unchanged, got %v", err)
	}
	if errors.Is(err, ErrClient) {
		t.Fatalf("a fetcher error must not be wrapped into ErrClient")
	}
}

// TestClientOverHTTP verifies client over h t t p behavior.
func TestClientOverHTTP(t *testing.T) {
	t.Parallel()

	username := "user-" + uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Query().Get("username") != username:
			fmt.Fprint(w, `{"status": {"value": 10, "message": "user does not exist."}}`)
		case r.URL.Path == "/"+pathSearch:
			fmt.Fprint(w, `{"totalResultsCount": 1, "geonames": [{"name": "Malmö", "geonameId": 2692969}]}`)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "maintenance")
		}
	}))
	defer srv.Close()

	client := NewClient(Config{Username: username, BaseURL: srv.URL}, nil, nil)
	records, err := client.Search(context.Background(), SearchOptions{NameEquals: "Malmö"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if id, _ := records[0].GeonameID(); id != 2692969 {
		t.Fatalf("unexpected record %v", records[0])
	}

	_, err = client.Hierarchy(context.Background(), 2692969)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected a 503 transport error, got %v", err)
	}
	if transportErr.Body != "maintenance" {
		t.Fatalf("unexpected body %q", transportErr.Body)
	}

	stranger := NewClient(Config{Username: uuid.NewString(), BaseURL: srv.URL + "/"}, nil, nil)
	_, err = stranger.Search(context.Background(), SearchOptions{Q: "Malmö"})
	if !errors.Is(err, ErrAuthorizationFailure) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
}

// TestClientHonorsCancellation verifies client honors cancellation behavior.
func TestClientHonorsCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	_, err := client.FindNearbyPlace(ctx, LatLng{Lat: 1, Lng: 1}, NearbyOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
