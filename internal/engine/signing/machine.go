// Package signing enforces sequential multi-party signing of a document.
//
// A document moves draft -> partially_signed -> completed, or to declined
// from any non-terminal state. A signer may sign only after every signer
// with a lower signing order has signed.
package signing

import (
	"errors"
	"time"

	"hookline/internal/platform/models"
)

var (
	ErrOutOfOrder    = errors.New("an earlier signer has not signed yet")
	ErrTerminal      = errors.New("document is already completed or declined")
	ErrTokenExpired  = errors.New("signer access token has expired")
	ErrInvalidToken  = errors.New("signer access token is invalid")
	ErrNotFound      = errors.New("signing resource not found")
	ErrInvalidSigner = errors.New("invalid signer set")
	ErrAlreadySigned = errors.New("signer has already signed")
)

const (
	RoleSeller    = "seller"
	RolePurchaser = "purchaser"
	RoleAgent     = "agent"
)

// IsCurrentSignerAllowed reports whether every signer ordered before current
// has signed. It fails closed: a nil current signer, or one that is not part
// of signers, is never allowed.
func IsCurrentSignerAllowed(signers []*models.Signer, current *models.Signer) bool {
	if current == nil {
		return false
	}

	found := false
	for _, s := range signers {
		if s == nil {
			return false
		}
		if s.ID == current.ID {
			found = true
			continue
		}
		if s.SigningOrder < current.SigningOrder && s.Status != models.SignerSigned {
			return false
		}
	}
	return found
}

func Terminal(status models.DocStatus) bool {
	return status == models.DocCompleted || status == models.DocDeclined
}

// MarkViewed moves a pending signer to viewed. It reports whether anything
// changed.
func MarkViewed(signer *models.Signer, now time.Time) bool {
	if signer.Status != models.SignerPending {
		return false
	}
	signer.Status = models.SignerViewed
	signer.ViewedAt = &now
	return true
}

// ApplySigned records current's signature on doc and returns the signers
// that changed. Signing twice is a no-op. The document never completes here,
// even when every signer has signed.
func ApplySigned(doc *models.DocInstance, signers []*models.Signer, current *models.Signer, now time.Time) ([]*models.Signer, error) {
	if current.Status == models.SignerSigned {
		return nil, nil
	}
	if Terminal(doc.Status) || current.Status == models.SignerDeclined {
		return nil, ErrTerminal
	}
	if !IsCurrentSignerAllowed(signers, current) {
		return nil, ErrOutOfOrder
	}

	if current.ViewedAt == nil {
		current.ViewedAt = &now
	}
	current.Status = models.SignerSigned
	current.SignedAt = &now
	setRoleSignedAt(doc, current.SigningOrder, now)

	// Completion waits for the provider's all-parties-signed event.
	doc.Status = models.DocPartiallySigned
	return []*models.Signer{current}, nil
}

// ApplyDeclined declines the document. signer may be nil when the provider
// does not say who declined. A signer who has already signed cannot decline.
func ApplyDeclined(doc *models.DocInstance, signer *models.Signer, now time.Time) ([]*models.Signer, error) {
	if Terminal(doc.Status) {
		return nil, ErrTerminal
	}
	if signer != nil && signer.Status == models.SignerSigned {
		return nil, ErrAlreadySigned
	}

	doc.Status = models.DocDeclined
	doc.DeclinedAt = &now
	if signer == nil {
		return nil, nil
	}
	signer.Status = models.SignerDeclined
	signer.DeclinedAt = &now
	return []*models.Signer{signer}, nil
}

// ApplyCompleted is driven by the provider's all-parties-signed event, which
// is authoritative: any signer not yet recorded as signed is marked signed.
func ApplyCompleted(doc *models.DocInstance, signers []*models.Signer, signedPDFURL string, now time.Time) ([]*models.Signer, error) {
	if doc.Status == models.DocDeclined {
		return nil, ErrTerminal
	}

	var changed []*models.Signer
	for _, s := range signers {
		if s.Status == models.SignerSigned {
			continue
		}
		s.Status = models.SignerSigned
		s.SignedAt = &now
		s.DeclinedAt = nil
		setRoleSignedAt(doc, s.SigningOrder, now)
		changed = append(changed, s)
	}

	if doc.Status != models.DocCompleted {
		doc.Status = models.DocCompleted
		doc.CompletedAt = &now
	}
	if signedPDFURL != "" {
		doc.SignedPDFURL = signedPDFURL
	}
	return changed, nil
}

// RoleForOrder is the party that signs at the given position.
func RoleForOrder(order int) string {
	switch order {
	case 1:
		return RoleSeller
	case 2:
		return RolePurchaser
	case 3:
		return RoleAgent
	}
	return ""
}

func setRoleSignedAt(doc *models.DocInstance, order int, at time.Time) {
	switch RoleForOrder(order) {
	case RoleSeller:
		doc.SellerSignedAt = &at
	case RolePurchaser:
		doc.PurchaserSignedAt = &at
	case RoleAgent:
		doc.AgentSignedAt = &at
	}
}
