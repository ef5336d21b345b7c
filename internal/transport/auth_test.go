package transport

import (
	"net/http"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Should not have any authentication headers
	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestBearerAuth tests Bearer token authentication.
func TestBearerAuth(t *testing.T) {
	auth := &BearerAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	authHeader := req.Header.Get("Authorization")
	expected := "Bearer test-api-key"
	if authHeader != expected {
		t.Errorf("Expected Authorization header '%s', got '%s'", expected, authHeader)
	}
}

// TestHeaderAuth tests custom header authentication.
func TestHeaderAuth(t *testing.T) {
	auth := &HeaderAuth{Header: "x-api-key"}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	headerValue := req.Header.Get("x-api-key")
	if headerValue != "test-api-key" {
		t.Errorf("Expected x-api-key header 'test-api-key', got '%s'", headerValue)
	}

	// Should not have Authorization header
	if req.Header.Get("Authorization") != "" {
		t.Error("Should not have Authorization header")
	}
}

// TestQueryAuth tests query parameter authentication.
func TestQueryAuth(t *testing.T) {
	auth := &QueryAuth{Param: "key"}

	// Test with valid URL
	reqURL, _ := url.Parse("https://example.com/api/models")
	req := &http.Request{
		URL:    reqURL,
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Check that the query parameter was added
	if req.URL.Query().Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", req.URL.RawQuery)
	}

	// Test with existing query parameters
	reqURL2, _ := url.Parse("https://example.com/api/models?existing=value")
	req2 := &http.Request{
		URL:    reqURL2,
		Header: make(http.Header),
	}

	auth.Apply(req2, "test-api-key")

	query := req2.URL.Query()
	if query.Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", query.Get("key"))
	}
	if query.Get("existing") != "value" {
		t.Errorf("Expected existing param to be preserved, got '%s'", query.Get("existing"))
	}

	// Test with nil URL (should not panic)
	req3 := &http.Request{
		URL:    nil,
		Header: make(http.Header),
	}

	auth.Apply(req3, "test-api-key")
	// Should not panic and should do nothing
}

// TestKeyAuth tests key authentication driven by endpoint configuration.
func TestKeyAuth(t *testing.T) {
	tests := []struct {
		name           string
		config         KeyConfig
		expectedHeader string
		expectedValue  string
		queryParam     string
	}{
		{
			name:           "Bearer Auth",
			config:         KeyConfig{Header: "Authorization", Scheme: SchemeBearer},
			expectedHeader: "Authorization",
			expectedValue:  "Bearer test-api-key",
		},
		{
			name:           "Direct Header Auth",
			config:         KeyConfig{Header: "x-api-key"},
			expectedHeader: "x-api-key",
			expectedValue:  "test-api-key",
		},
		{
			name:           "Basic Auth Default Header",
			config:         KeyConfig{Scheme: SchemeBasic},
			expectedHeader: "Authorization",
			expectedValue:  "Basic test-api-key",
		},
		{
			name:       "Query Param Auth",
			config:     KeyConfig{QueryParam: "api_key", Header: "ignored"},
			queryParam: "api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqURL, _ := url.Parse("https://example.com/nodes")
			req := &http.Request{URL: reqURL, Header: make(http.Header)}

			auth := &KeyAuth{Config: tt.config}
			auth.Apply(req, "test-api-key")

			if tt.queryParam != "" {
				if got := req.URL.Query().Get(tt.queryParam); got != "test-api-key" {
					t.Errorf("Expected query param '%s=test-api-key', got '%s'", tt.queryParam, got)
				}
				if len(req.Header) != 0 {
					t.Errorf("Expected no headers for query auth, got %d", len(req.Header))
				}
				return
			}

			if got := req.Header.Get(tt.expectedHeader); got != tt.expectedValue {
				t.Errorf("Expected %s header '%s', got '%s'", tt.expectedHeader, tt.expectedValue, got)
			}
		})
	}
}
