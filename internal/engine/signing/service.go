package signing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hookline/internal/engine/inbound"
	"hookline/internal/pkg/validator"
	"hookline/internal/platform/audit"
	"hookline/internal/platform/auth"
	"hookline/internal/platform/models"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.DocInstance, signers []*models.Signer) error
	GetInstance(ctx context.Context, id string) (*models.DocInstance, error)
	GetSigner(ctx context.Context, id string) (*models.Signer, error)
	ListSigners(ctx context.Context, docInstanceID string) ([]*models.Signer, error)
	SaveTransition(ctx context.Context, doc *models.DocInstance, signers ...*models.Signer) error
}

type SignerInput struct {
	Role         string `json:"role" validate:"required,max=50"`
	Email        string `json:"email" validate:"required,email"`
	SigningOrder int    `json:"signing_order" validate:"required,gte=1"`
}

type CreateDocumentInput struct {
	ProviderDocumentID string          `json:"provider_document_id"`
	SubmissionData     json.RawMessage `json:"submission_data,omitempty"`
	Signers            []SignerInput   `json:"signers" validate:"required,min=1,dive"`
}

// CreatedDocument carries the raw access tokens, keyed by signer id. They
// are returned once and only their hashes are stored.
type CreatedDocument struct {
	Document     *models.DocInstance `json:"document"`
	Signers      []*models.Signer    `json:"signers"`
	AccessTokens map[string]string   `json:"access_tokens"`
	Links        map[string]string   `json:"links,omitempty"`
}

type SigningContext struct {
	Document *models.DocInstance `json:"document"`
	Signer   *models.Signer      `json:"signer"`
	Signers  []*models.Signer    `json:"signers"`
	CanSign  bool                `json:"can_sign"`
}

type Service struct {
	store    DocumentStore
	sink     audit.Sink
	tokenTTL time.Duration

	// LinkBaseURL enables signing links in CreateDocument and SignerLink.
	LinkBaseURL string
	Now         func() time.Time
}

func NewService(store DocumentStore, sink audit.Sink, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:    store,
		sink:     sink,
		tokenTTL: tokenTTL,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput) (*CreatedDocument, error) {
	if err := validator.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigner, err)
	}

	seen := make(map[int]bool, len(input.Signers))
	for _, in := range input.Signers {
		if seen[in.SigningOrder] {
			return nil, fmt.Errorf("%w: duplicate signing order %d", ErrInvalidSigner, in.SigningOrder)
		}
		seen[in.SigningOrder] = true
	}

	now := s.now()
	doc := &models.DocInstance{
		ID:                 "doc_" + uuid.New().String(),
		Status:             models.DocDraft,
		ProviderDocumentID: input.ProviderDocumentID,
		SubmissionData:     input.SubmissionData,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	signers := make([]*models.Signer, 0, len(input.Signers))
	tokens := make(map[string]string, len(input.Signers))
	for _, in := range input.Signers {
		raw, hash, err := auth.NewAccessToken()
		if err != nil {
			return nil, fmt.Errorf("issue access token: %w", err)
		}
		signer := &models.Signer{
			ID:              "sgn_" + uuid.New().String(),
			DocInstanceID:   doc.ID,
			Role:            strings.ToLower(strings.TrimSpace(in.Role)),
			Email:           strings.ToLower(strings.TrimSpace(in.Email)),
			SigningOrder:    in.SigningOrder,
			Status:          models.SignerPending,
			AccessTokenHash: hash,
			TokenExpiresAt:  now.Add(s.tokenTTL),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		signers = append(signers, signer)
		tokens[signer.ID] = raw
	}

	if err := s.store.Create(ctx, doc, signers); err != nil {
		return nil, err
	}

	s.record(ctx, "signing.document_created", map[string]interface{}{
		"instance_id":  doc.ID,
		"signer_count": len(signers),
	})

	sorted, err := s.store.ListSigners(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	created := &CreatedDocument{Document: doc, Signers: sorted, AccessTokens: tokens}
	if s.LinkBaseURL != "" {
		created.Links = make(map[string]string, len(tokens))
		for id, raw := range tokens {
			link, err := Link(s.LinkBaseURL, id, raw)
			if err != nil {
				return nil, fmt.Errorf("build signing link: %w", err)
			}
			created.Links[id] = link
		}
	}
	return created, nil
}

// SignerLink authenticates the signer and rebuilds their signing link.
func (s *Service) SignerLink(ctx context.Context, signerID, token string) (string, error) {
	if _, err := s.authenticate(ctx, signerID, token); err != nil {
		return "", err
	}
	if s.LinkBaseURL == "" {
		return "", fmt.Errorf("signing links are not configured")
	}
	return Link(s.LinkBaseURL, signerID, token)
}

// Document returns the instance with its signers in signing order.
func (s *Service) Document(ctx context.Context, id string) (*models.DocInstance, []*models.Signer, error) {
	doc, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrNotFound
	}
	signers, err := s.store.ListSigners(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, signers, nil
}

// GetContext authenticates the signer and returns what the signing page
// needs. The first read moves the signer from pending to viewed.
func (s *Service) GetContext(ctx context.Context, signerID, token string) (*SigningContext, error) {
	signer, err := s.authenticate(ctx, signerID, token)
	if err != nil {
		return nil, err
	}

	doc, signers, err := s.Document(ctx, signer.DocInstanceID)
	if err != nil {
		return nil, err
	}
	current := find(signers, signer.ID)
	if current == nil {
		return nil, ErrNotFound
	}

	if !Terminal(doc.Status) && MarkViewed(current, s.now()) {
		if err := s.store.SaveTransition(ctx, doc, current); err != nil {
			return nil, err
		}
		log.Info().Str("instance_id", doc.ID).Str("signer_id", current.ID).Msg("signer viewed document")
		s.record(ctx, "signing.viewed", map[string]interface{}{"instance_id": doc.ID, "signer_id": current.ID})
	}

	canSign := !Terminal(doc.Status) &&
		current.Status != models.SignerSigned &&
		current.Status != models.SignerDeclined &&
		IsCurrentSignerAllowed(signers, current)

	return &SigningContext{Document: doc, Signer: current, Signers: signers, CanSign: canSign}, nil
}

// Decline records a declination made through the signing link.
func (s *Service) Decline(ctx context.Context, signerID, token, reason string) (*models.DocInstance, error) {
	signer, err := s.authenticate(ctx, signerID, token)
	if err != nil {
		return nil, err
	}

	doc, signers, err := s.Document(ctx, signer.DocInstanceID)
	if err != nil {
		return nil, err
	}
	current := find(signers, signer.ID)

	changed, err := ApplyDeclined(doc, current, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveTransition(ctx, doc, changed...); err != nil {
		return nil, err
	}

	log.Info().Str("instance_id", doc.ID).Str("signer_id", signerID).Msg("document declined by signer")
	s.record(ctx, "signing.declined", map[string]interface{}{
		"instance_id": doc.ID,
		"signer_id":   signerID,
		"reason":      reason,
	})
	return doc, nil
}

// ApplyProviderEvent applies a SignWell notification to the instance named
// in its metadata. Late events for a declined or completed instance are
// accepted and ignored, except a repeated completion on a completed one.
func (s *Service) ApplyProviderEvent(ctx context.Context, evt *inbound.SignWellEvent) (*models.DocInstance, error) {
	doc, signers, err := s.Document(ctx, evt.CorrelationID())
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", evt.CorrelationID(), err)
	}

	logger := log.With().Str("instance_id", doc.ID).Str("kind", evt.Kind()).Logger()
	if Terminal(doc.Status) && !(doc.Status == models.DocCompleted && evt.Kind() == inbound.SignWellDocumentCompleted) {
		logger.Info().Str("status", string(doc.Status)).Msg("ignoring event for terminal document")
		return doc, nil
	}

	if doc.ProviderDocumentID == "" {
		doc.ProviderDocumentID = evt.Data.Document.ID
	}

	now := s.now()
	var changed []*models.Signer

	switch evt.Kind() {
	case inbound.SignWellDocumentViewed:
		signer := matchSigner(signers, evt.Data.Signer)
		if signer == nil {
			return nil, fmt.Errorf("viewed: %w", ErrNotFound)
		}
		if MarkViewed(signer, now) {
			changed = append(changed, signer)
		}
	case inbound.SignWellDocumentSigned:
		signer := matchSigner(signers, evt.Data.Signer)
		if signer == nil {
			return nil, fmt.Errorf("signed: %w", ErrNotFound)
		}
		changed, err = ApplySigned(doc, signers, signer, now)
	case inbound.SignWellDocumentCompleted:
		changed, err = ApplyCompleted(doc, signers, evt.FileURL(), now)
	case inbound.SignWellDocumentDeclined:
		changed, err = ApplyDeclined(doc, matchSigner(signers, evt.Data.Signer), now)
		if errors.Is(err, ErrAlreadySigned) {
			logger.Warn().Msg("ignoring decline from a signer who already signed")
			return doc, nil
		}
	default:
		logger.Debug().Msg("unhandled signwell event")
		return doc, nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("signing transition rejected")
		return nil, err
	}

	if err := s.store.SaveTransition(ctx, doc, changed...); err != nil {
		return nil, err
	}

	logger.Info().Str("status", string(doc.Status)).Int("signers_changed", len(changed)).Msg("signing event applied")
	s.record(ctx, "signing."+strings.TrimPrefix(evt.Kind(), "document_"), map[string]interface{}{
		"instance_id": doc.ID,
		"status":      string(doc.Status),
	})
	return doc, nil
}

func (s *Service) authenticate(ctx context.Context, signerID, token string) (*models.Signer, error) {
	signer, err := s.store.GetSigner(ctx, signerID)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, ErrNotFound
	}
	if !auth.CheckAccessToken(signer.AccessTokenHash, token) {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(signer.TokenExpiresAt) {
		return nil, ErrTokenExpired
	}
	return signer, nil
}

func (s *Service) record(ctx context.Context, name string, attrs map[string]interface{}) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Append(ctx, audit.Event{Name: name, Attributes: attrs}); err != nil {
		log.Warn().Err(err).Str("event", name).Msg("failed to append audit event")
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func find(signers []*models.Signer, id string) *models.Signer {
	for _, s := range signers {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// matchSigner prefers the signing order and falls back to the email.
func matchSigner(signers []*models.Signer, ref *inbound.SignWellSigner) *models.Signer {
	if ref == nil {
		return nil
	}
	if ref.SigningOrder > 0 {
		for _, s := range signers {
			if s.SigningOrder == ref.SigningOrder {
				return s
			}
		}
	}
	email := strings.ToLower(strings.TrimSpace(ref.Email))
	if email == "" {
		return nil
	}
	for _, s := range signers {
		if s.Email == email {
			return s
		}
	}
	return nil
}
