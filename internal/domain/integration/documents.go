package integration

import (
	"context"
	"time"
)

// DocumentStore stores generated and uploaded PDF documents
type DocumentStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a time limited download link
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// HostingAgreement is the data rendered into a hosting agreement
type HostingAgreement struct {
	OrderReference string
	Name           string
	Address        string
	Email          string
	Socket         string
	Date           time.Time
}

// AgreementRenderer renders agreement documents to PDF
type AgreementRenderer interface {
	RenderHostingAgreement(ctx context.Context, data HostingAgreement) ([]byte, error)
}
