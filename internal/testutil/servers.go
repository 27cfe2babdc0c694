package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// AuthorityResult is one entry the mock metrics API returns for a target
type AuthorityResult struct {
	Target                 string `json:"target"`
	DomainAuthority        int    `json:"domain_authority,omitempty"`
	PageAuthority          int    `json:"page_authority,omitempty"`
	SpamScore              int    `json:"spam_score,omitempty"`
	ExternalLinks          int    `json:"external_links,omitempty"`
	ExternalLinkingDomains int    `json:"external_linking_domains,omitempty"`
	Error                  string `json:"error,omitempty"`
}

// MockAuthorityServer fakes the bulk URL-metrics API
type MockAuthorityServer struct {
	Server *httptest.Server

	mu         sync.Mutex
	Metrics    map[string]AuthorityResult // keyed by requested target
	Errors     map[string]string
	StatusCode int
	Requests   int
	Targets    []string
}

func NewMockAuthorityServer() *MockAuthorityServer {
	mock := &MockAuthorityServer{
		Metrics: make(map[string]AuthorityResult),
		Errors:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/url-metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Scope   string   `json:"scope"`
			Targets []string `json:"targets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.Requests++
		mock.Targets = append(mock.Targets, req.Targets...)
		status := mock.StatusCode
		var results []AuthorityResult
		for _, target := range req.Targets {
			if msg, ok := mock.Errors[target]; ok {
				results = append(results, AuthorityResult{Target: target, Error: msg})
				continue
			}
			if m, ok := mock.Metrics[target]; ok {
				m.Target = target
				results = append(results, m)
			}
		}
		mock.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			http.Error(w, "upstream failure", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	})

	mock.Server = httptest.NewServer(mux)
	return mock
}

// RequestCount returns how many bulk requests were served
func (m *MockAuthorityServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests
}

// SetStatus forces every following response to status
func (m *MockAuthorityServer) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCode = status
}

func (m *MockAuthorityServer) Close() {
	m.Server.Close()
}

// MockScrapeServer fakes the Firecrawl v1 scrape endpoint
type MockScrapeServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	Pages     map[string]string // url -> markdown
	Statuses  map[string]int    // url -> forced HTTP status
	Malformed map[string]bool
	Calls     []string
}

func NewMockScrapeServer() *MockScrapeServer {
	mock := &MockScrapeServer{
		Pages:     make(map[string]string),
		Statuses:  make(map[string]int),
		Malformed: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.Calls = append(mock.Calls, req.URL)
		status, forced := mock.Statuses[req.URL]
		malformed := mock.Malformed[req.URL]
		markdown, found := mock.Pages[req.URL]
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case forced:
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": http.StatusText(status)})
		case malformed:
			w.Write([]byte(`{"success": true, "data": `))
		case !found:
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "page not found"})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"markdown": markdown,
					"metadata": map[string]interface{}{"sourceURL": req.URL, "statusCode": 200},
				},
			})
		}
	})

	mock.Server = httptest.NewServer(mux)
	return mock
}

// CallCount returns how many scrapes were requested
func (m *MockScrapeServer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockScrapeServer) Close() {
	m.Server.Close()
}
