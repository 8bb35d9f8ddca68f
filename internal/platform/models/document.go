package models

import (
	"encoding/json"
	"time"
)

type DocStatus string

const (
	DocDraft           DocStatus = "draft"
	DocPartiallySigned DocStatus = "partially_signed"
	DocCompleted       DocStatus = "completed"
	DocDeclined        DocStatus = "declined"
)

type SignerStatus string

const (
	SignerPending  SignerStatus = "pending"
	SignerViewed   SignerStatus = "viewed"
	SignerSigned   SignerStatus = "signed"
	SignerDeclined SignerStatus = "declined"
)

type DocInstance struct {
	ID                 string          `json:"id"`
	Status             DocStatus       `json:"status"`
	ProviderDocumentID string          `json:"provider_document_id,omitempty"`
	SubmissionData     json.RawMessage `json:"submission_data,omitempty"`
	SignedPDFURL       string          `json:"signed_pdf_url,omitempty"`
	SellerSignedAt     *time.Time      `json:"seller_signed_at,omitempty"`
	PurchaserSignedAt  *time.Time      `json:"purchaser_signed_at,omitempty"`
	AgentSignedAt      *time.Time      `json:"agent_signed_at,omitempty"`
	DeclinedAt         *time.Time      `json:"declined_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type Signer struct {
	ID              string       `json:"id"`
	DocInstanceID   string       `json:"doc_instance_id"`
	Role            string       `json:"role"`
	Email           string       `json:"email"`
	SigningOrder    int          `json:"signing_order"`
	Status          SignerStatus `json:"status"`
	AccessTokenHash string       `json:"-"`
	TokenExpiresAt  time.Time    `json:"token_expires_at"`
	ViewedAt        *time.Time   `json:"viewed_at,omitempty"`
	SignedAt        *time.Time   `json:"signed_at,omitempty"`
	DeclinedAt      *time.Time   `json:"declined_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
