package inbound

import "hookline/internal/platform/models"

const (
	SignWellDocumentViewed    = "document_viewed"
	SignWellDocumentSigned    = "document_signed"
	SignWellDocumentCompleted = "document_completed"
	SignWellDocumentDeclined  = "document_declined"
)

// SignWellEvent is an e-signature lifecycle notification. The document
// metadata carries the instance id we attached when the document was sent.
type SignWellEvent struct {
	EventType string       `json:"event_type" validate:"required"`
	Data      SignWellData `json:"data"`
}

type SignWellData struct {
	Document SignWellDocument `json:"document"`
	Signer   *SignWellSigner  `json:"signer,omitempty"`
}

type SignWellDocument struct {
	ID       string `json:"id"`
	Metadata struct {
		InstanceID      string `json:"instanceId"`
		InstanceIDSnake string `json:"instance_id"`
	} `json:"metadata"`
	Files []struct {
		URL string `json:"url" validate:"omitempty,url"`
	} `json:"files" validate:"dive"`
}

type SignWellSigner struct {
	Email        string `json:"email" validate:"omitempty,email"`
	SigningOrder int    `json:"signing_order" validate:"gte=0"`
}

func (e *SignWellEvent) Source() models.Source { return models.SourceSignWell }
func (e *SignWellEvent) Kind() string          { return e.EventType }
func (e *SignWellEvent) sealed()               {}

func (e *SignWellEvent) CorrelationID() string {
	if id := e.Data.Document.Metadata.InstanceID; id != "" {
		return id
	}
	return e.Data.Document.Metadata.InstanceIDSnake
}

// FileURL returns the first attached file URL, the signed artifact on
// completion events.
func (e *SignWellEvent) FileURL() string {
	for _, f := range e.Data.Document.Files {
		if f.URL != "" {
			return f.URL
		}
	}
	return ""
}
