package signing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hookline/internal/engine/inbound"
	"hookline/internal/engine/webhooks"
	"hookline/internal/platform/models"
)

// ProviderHandler processes SignWell webhook events.
type ProviderHandler struct {
	service *Service
}

func NewProviderHandler(service *Service) *ProviderHandler {
	return &ProviderHandler{service: service}
}

func (h *ProviderHandler) Handle(ctx context.Context, _ models.WebhookEvent, payload inbound.Payload) (webhooks.Result, error) {
	evt, ok := payload.(*inbound.SignWellEvent)
	if !ok {
		return webhooks.Result{}, fmt.Errorf("signing: unexpected payload %T", payload)
	}

	doc, err := h.service.ApplyProviderEvent(ctx, evt)
	if err != nil {
		return webhooks.Result{}, err
	}

	var discriminator string
	if evt.Data.Signer != nil {
		if evt.Data.Signer.SigningOrder > 0 {
			discriminator = strconv.Itoa(evt.Data.Signer.SigningOrder)
		} else {
			discriminator = strings.ToLower(evt.Data.Signer.Email)
		}
	}

	return webhooks.Result{
		LinkedResourceID: doc.ID,
		Discriminator:    discriminator,
		Attributes: map[string]interface{}{
			"instance_id":    doc.ID,
			"status":         string(doc.Status),
			"signed_pdf_url": doc.SignedPDFURL,
		},
	}, nil
}
