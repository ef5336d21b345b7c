package transport

import (
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {
	// No authentication applied
}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set(a.Header, apiKey)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, apiKey string) {
	if req.URL == nil {
		return
	}

	query := req.URL.Query()
	query.Set(a.Param, apiKey)
	req.URL.RawQuery = query.Encode()
}

// Scheme is the prefix placed before an API key in a header.
type Scheme string

// Supported header schemes.
const (
	SchemeDirect Scheme = ""
	SchemeBearer Scheme = "Bearer"
	SchemeBasic  Scheme = "Basic"
)

// KeyConfig describes how an endpoint expects its API key.
type KeyConfig struct {
	Header     string `json:"header,omitempty" yaml:"header,omitempty" mapstructure:"header"`                // Defaults to Authorization
	QueryParam string `json:"query_param,omitempty" yaml:"query_param,omitempty" mapstructure:"query_param"` // Wins over Header when set
	Scheme     Scheme `json:"scheme,omitempty" yaml:"scheme,omitempty" mapstructure:"scheme"`
}

// KeyAuth applies an API key the way a KeyConfig describes.
type KeyAuth struct {
	Config KeyConfig
}

// Apply implements the Authenticator interface for KeyAuth.
func (a *KeyAuth) Apply(req *http.Request, apiKey string) {
	if a.Config.QueryParam != "" {
		(&QueryAuth{Param: a.Config.QueryParam}).Apply(req, apiKey)
		return
	}

	header := a.Config.Header
	if header == "" {
		header = "Authorization"
	}

	value := apiKey
	switch a.Config.Scheme {
	case SchemeBearer, SchemeBasic:
		value = string(a.Config.Scheme) + " " + apiKey
	default:
		// Unknown scheme - treat as direct
	}
	req.Header.Set(header, value)
}
