package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/pkg/catalog"
)

// Mock is an Application whose methods delegate to optional function fields.
// Unset fields return zero values, a no-op logger or "table".
type Mock struct {
	PlacemapFunc     func(ctx context.Context) (placemap.Client, error)
	CatalogFunc      func(ctx context.Context) (catalog.Store, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
}

var _ Application = (*Mock)(nil)

// Placemap calls PlacemapFunc.
func (m *Mock) Placemap(ctx context.Context) (placemap.Client, error) {
	if m.PlacemapFunc != nil {
		return m.PlacemapFunc(ctx)
	}
	return nil, nil
}

// Catalog calls CatalogFunc.
func (m *Mock) Catalog(ctx context.Context) (catalog.Store, error) {
	if m.CatalogFunc != nil {
		return m.CatalogFunc(ctx)
	}
	return nil, nil
}

// Logger calls LoggerFunc or returns a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat calls OutputFormatFunc or returns "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version calls VersionFunc or returns "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }
