package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"hookline/internal/engine/signing"
	"hookline/internal/pkg/errors"
	"hookline/internal/platform/models"
)

type SigningService interface {
	GetContext(ctx context.Context, signerID, token string) (*signing.SigningContext, error)
	Decline(ctx context.Context, signerID, token, reason string) (*models.DocInstance, error)
	CreateDocument(ctx context.Context, input signing.CreateDocumentInput) (*signing.CreatedDocument, error)
	Document(ctx context.Context, id string) (*models.DocInstance, []*models.Signer, error)
	SignerLink(ctx context.Context, signerID, token string) (string, error)
}

type SigningHandler struct {
	service SigningService
}

func NewSigningHandler(service SigningService) *SigningHandler {
	return &SigningHandler{service: service}
}

// GetContext serves the signing page data for the signer's link.
func (h *SigningHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	sc, err := h.service.GetContext(r.Context(), param(r, "signer_id"), r.URL.Query().Get("token"))
	if err != nil {
		writeSigningError(w, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, sc)
}

// QRCode renders the signer's link as a PNG for in-person signing.
func (h *SigningHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil && q.Get("size") != "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid size", nil)
		return
	}

	link, err := h.service.SignerLink(r.Context(), param(r, "signer_id"), q.Get("token"))
	if err != nil {
		writeSigningError(w, err)
		return
	}

	png, err := signing.QRCode(link, size)
	if err != nil {
		writeSigningError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *SigningHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}

	doc, err := h.service.Decline(r.Context(), param(r, "signer_id"), req.Token, req.Reason)
	if err != nil {
		writeSigningError(w, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{"document": doc})
}

func (h *SigningHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var input signing.CreateDocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	created, err := h.service.CreateDocument(r.Context(), input)
	if err != nil {
		writeSigningError(w, err)
		return
	}
	errors.WriteJSON(w, http.StatusCreated, created)
}

func (h *SigningHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, signers, err := h.service.Document(r.Context(), param(r, "id"))
	if err != nil {
		writeSigningError(w, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"signers":  signers,
	})
}

func writeSigningError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, signing.ErrNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Signer or document not found", nil)
	case stderrors.Is(err, signing.ErrTokenExpired):
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeTokenExpired, "Signing link has expired", nil)
	case stderrors.Is(err, signing.ErrInvalidToken):
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Invalid signing token", nil)
	case stderrors.Is(err, signing.ErrTerminal), stderrors.Is(err, signing.ErrOutOfOrder), stderrors.Is(err, signing.ErrAlreadySigned):
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, err.Error(), nil)
	case stderrors.Is(err, signing.ErrInvalidSigner), stderrors.Is(err, signing.ErrInvalidQRSize):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
	default:
		log.Error().Err(err).Msg("signing request failed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
	}
}
