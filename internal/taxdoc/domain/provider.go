// Package domain defines the tax document contract. Stamping against a real
// fiscal authority lives behind Provider; the service ships with stamping
// disabled and callers opt in by supplying an implementation.
package domain

import (
	"context"
	"errors"
	"time"

	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
)

// Receptor identifies the party a tax document is issued to.
type Receptor struct {
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Document is the stamped artifact returned by a provider.
type Document struct {
	ID        string    `json:"id"`
	XML       []byte    `json:"-"`
	PDF       []byte    `json:"-"`
	StampedAt time.Time `json:"stamped_at"`
}

var ErrProviderDisabled = errors.New("taxdoc_provider_disabled")

// Provider stamps an invoice into a fiscal document.
type Provider interface {
	Stamp(ctx context.Context, invoice ledgerdomain.Invoice, receptor Receptor) (Document, error)
}

// DisabledProvider rejects every stamp request. Default wiring.
type DisabledProvider struct{}

func (DisabledProvider) Stamp(ctx context.Context, invoice ledgerdomain.Invoice, receptor Receptor) (Document, error) {
	return Document{}, ErrProviderDisabled
}
