package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepscout/deepscout/pkg/config"
	"github.com/deepscout/deepscout/pkg/domain"
)

const liteHTML = `
<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href="https://example.com/one">First &amp; Best Result</a></td></tr>
<tr><td class='result-snippet'>Snippet for the first result.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href="https://example.org/two">Second Result</a></td></tr>
<tr><td class='result-snippet'>Snippet for the <b>second</b> result.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href="https://example.net/three">Third Result</a></td></tr>
<tr><td class='result-snippet'>Third snippet.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results := parseLiteResults(liteHTML, 5)

	if len(results) != 3 {
		t.Fatalf("parsed %d results, want 3", len(results))
	}
	if results[0].Title != "First & Best Result" {
		t.Errorf("title = %q, want decoded entity", results[0].Title)
	}
	if results[0].URL != "https://example.com/one" {
		t.Errorf("url = %q", results[0].URL)
	}
	if results[0].Snippet != "Snippet for the first result." {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestParseLiteResults_MaxResults(t *testing.T) {
	results := parseLiteResults(liteHTML, 2)
	if len(results) != 2 {
		t.Errorf("parsed %d results, want 2", len(results))
	}
}

func TestParseLiteResults_FallbackOnUnexpectedMarkup(t *testing.T) {
	html := `
<html><body>
<a href="/internal">Navigation</a>
<a href="https://example.com/page">A Real External Page</a>
<a href="https://duckduckgo.com/about">About</a>
</body></html>`

	results := parseLiteResults(html, 5)

	if len(results) != 1 {
		t.Fatalf("parsed %d results, want 1 via fallback", len(results))
	}
	if results[0].URL != "https://example.com/page" {
		t.Errorf("url = %q", results[0].URL)
	}
}

func TestCleanHTML(t *testing.T) {
	got := cleanHTML(`  Hello <b>world</b> &amp; &quot;friends&quot;&nbsp; `)
	want := `Hello world & "friends"`
	if got != want {
		t.Errorf("cleanHTML = %q, want %q", got, want)
	}
}

func TestDuckDuckGo_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if q := r.PostForm.Get("q"); q != "go concurrency" {
			t.Errorf("query = %q, want go concurrency", q)
		}
		w.Write([]byte(liteHTML))
	}))
	defer server.Close()

	d := NewDuckDuckGoWithClient(server.Client())
	d.endpoint = server.URL

	results, err := d.Search(context.Background(), "go concurrency", domain.SearchOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestDuckDuckGo_Search_EmptyQuery(t *testing.T) {
	d := NewDuckDuckGo()
	if _, err := d.Search(context.Background(), "  ", domain.SearchOptions{}); err == nil {
		t.Error("expected error for empty query, got nil")
	}
}

func TestBrave_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get("X-Subscription-Token"); token != "test-key" {
			t.Errorf("token = %q, want test-key", token)
		}
		if q := r.URL.Query().Get("q"); q != "go concurrency" {
			t.Errorf("query = %q, want go concurrency", q)
		}

		w.Header().Set("X-RateLimit-Remaining", "1, 1000")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"web": map[string]interface{}{
				"results": []map[string]interface{}{
					{"title": "Result One", "url": "https://example.com/1", "description": "first"},
					{"title": "Result Two", "url": "https://example.com/2", "description": "second"},
				},
			},
		})
	}))
	defer server.Close()

	b := NewBraveWithClient("test-key", server.Client())
	b.endpoint = server.URL

	results, err := b.Search(context.Background(), "go concurrency", domain.SearchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Result One" || results[0].Snippet != "first" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestBrave_Search_MissingKey(t *testing.T) {
	b := NewBrave("")
	if _, err := b.Search(context.Background(), "anything", domain.SearchOptions{}); err == nil {
		t.Error("expected error for missing api key, got nil")
	}
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RetrievalConfig
		wantErr bool
	}{
		{
			name: "duckduckgo",
			cfg:  config.RetrievalConfig{Provider: "duckduckgo", Timeout: "30s"},
		},
		{
			name: "brave with key",
			cfg:  config.RetrievalConfig{Provider: "brave", APIKey: "key", Timeout: "30s"},
		},
		{
			name:    "brave without key",
			cfg:     config.RetrievalConfig{Provider: "brave", Timeout: "30s"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.RetrievalConfig{Provider: "altavista", Timeout: "30s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSearcher(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSearcher failed: %v", err)
			}
			if s == nil {
				t.Error("NewSearcher returned nil searcher")
			}
		})
	}
}
