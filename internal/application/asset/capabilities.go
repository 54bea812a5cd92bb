package asset

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-api-assets/internal/domain"
	"github.com/go-api-assets/internal/pkg/validate"
)

const defaultTTL = 5 * time.Minute

// Capability is everything the ledger needs to know about one asset type.
type Capability struct {
	KeyPrefix string
	TTL       time.Duration
	// Identifier extracts the value the key is built from.
	Identifier func(domain.AssetData) string
	// Normalize validates and canonicalizes the submitted payload.
	Normalize func(domain.AssetData) (domain.AssetData, error)
	// Recipient is where the secret is delivered; empty skips delivery.
	Recipient func(domain.AssetData) string
	// Tagged types carry an operation tag checked by the requirement rules.
	Tagged bool
}

// Key composes the dedupe key shared by every record of the same identifier.
func (c Capability) Key(data domain.AssetData) string {
	return c.KeyPrefix + "-" + c.Identifier(data)
}

// Capabilities maps each supported type to its capability.
type Capabilities map[domain.AssetType]Capability

// DefaultCapabilities registers the email type. A zero emailTTL falls back to five minutes.
func DefaultCapabilities(emailTTL time.Duration) Capabilities {
	if emailTTL <= 0 {
		emailTTL = defaultTTL
	}
	return Capabilities{
		domain.AssetTypeEmail: {
			KeyPrefix:  "email",
			TTL:        emailTTL,
			Identifier: func(d domain.AssetData) string { return d.Email },
			Normalize:  normalizeEmail,
			Recipient:  func(d domain.AssetData) string { return d.Email },
			Tagged:     true,
		},
	}
}

func normalizeEmail(d domain.AssetData) (domain.AssetData, error) {
	email := strings.ToLower(strings.TrimSpace(d.Email))
	if !validate.Email(email) {
		return domain.AssetData{}, fmt.Errorf("data.email must be a valid email: %w", domain.ErrBadRequest)
	}
	switch d.Operation {
	case domain.OperationRegistration, domain.OperationLogin:
	default:
		return domain.AssetData{}, fmt.Errorf("data.operation must be one of registration, login: %w", domain.ErrBadRequest)
	}
	return domain.AssetData{Email: email, Operation: d.Operation}, nil
}

// TaggedTypes lists the types whose records carry an operation tag.
func (c Capabilities) TaggedTypes() []domain.AssetType {
	var out []domain.AssetType
	for t, capability := range c {
		if capability.Tagged {
			out = append(out, t)
		}
	}
	return out
}
