package signing

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookline/internal/engine/inbound"
	"hookline/internal/platform/audit"
	"hookline/internal/platform/database"
	"hookline/internal/platform/models"
	"hookline/internal/platform/repositories"
)

func newTestService(t *testing.T) (*Service, *audit.MemorySink) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink := audit.NewMemorySink()
	return NewService(repositories.NewDocumentRepository(db), sink, time.Hour), sink
}

func createThreeParty(t *testing.T, svc *Service) *CreatedDocument {
	t.Helper()
	created, err := svc.CreateDocument(context.Background(), CreateDocumentInput{
		SubmissionData: json.RawMessage(`{"property":"12 High St"}`),
		Signers: []SignerInput{
			{Role: "agent", Email: "agent@example.com", SigningOrder: 3},
			{Role: "seller", Email: "Seller@Example.com", SigningOrder: 1},
			{Role: "purchaser", Email: "buyer@example.com", SigningOrder: 2},
		},
	})
	require.NoError(t, err)
	return created
}

func signwell(t *testing.T, raw string) *inbound.SignWellEvent {
	t.Helper()
	p, err := inbound.Parse(models.SourceSignWell, []byte(raw))
	require.NoError(t, err)
	return p.(*inbound.SignWellEvent)
}

func TestService_CreateDocument(t *testing.T) {
	svc, sink := newTestService(t)
	created := createThreeParty(t, svc)

	assert.Equal(t, models.DocDraft, created.Document.Status)
	require.Len(t, created.Signers, 3)
	assert.Equal(t, 1, created.Signers[0].SigningOrder)
	assert.Equal(t, "seller@example.com", created.Signers[0].Email)
	assert.Len(t, created.AccessTokens, 3)
	for _, s := range created.Signers {
		assert.NotEqual(t, created.AccessTokens[s.ID], s.AccessTokenHash)
	}
	assert.Equal(t, []string{"signing.document_created"}, sink.Names())

	_, err := svc.CreateDocument(context.Background(), CreateDocumentInput{
		Signers: []SignerInput{
			{Role: "seller", Email: "a@example.com", SigningOrder: 1},
			{Role: "agent", Email: "b@example.com", SigningOrder: 1},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidSigner)

	_, err = svc.CreateDocument(context.Background(), CreateDocumentInput{})
	assert.ErrorIs(t, err, ErrInvalidSigner)
}

func TestService_GetContext(t *testing.T) {
	svc, _ := newTestService(t)
	created := createThreeParty(t, svc)
	ctx := context.Background()
	first, third := created.Signers[0], created.Signers[2]

	sc, err := svc.GetContext(ctx, first.ID, created.AccessTokens[first.ID])
	require.NoError(t, err)
	assert.True(t, sc.CanSign)
	assert.Equal(t, models.SignerViewed, sc.Signer.Status)

	sc, err = svc.GetContext(ctx, third.ID, created.AccessTokens[third.ID])
	require.NoError(t, err)
	assert.False(t, sc.CanSign)

	_, err = svc.GetContext(ctx, third.ID, created.AccessTokens[first.ID])
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.GetContext(ctx, "sgn_missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	svc.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.GetContext(ctx, first.ID, created.AccessTokens[first.ID])
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestService_ProviderEventsHappyPath(t *testing.T) {
	svc, sink := newTestService(t)
	created := createThreeParty(t, svc)
	ctx := context.Background()
	id := created.Document.ID

	for order := 1; order <= 3; order++ {
		raw := `{"event_type":"document_signed","data":{"document":{"id":"sw_1","metadata":{"instanceId":"` + id + `"}},"signer":{"signing_order":` + strconv.Itoa(order) + `}}}`
		doc, err := svc.ApplyProviderEvent(ctx, signwell(t, raw))
		require.NoError(t, err)
		assert.Equal(t, models.DocPartiallySigned, doc.Status)
	}

	doc, err := svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_completed","data":{"document":{"id":"sw_1","metadata":{"instanceId":"`+id+`"},"files":[{"url":"https://files.example.com/signed.pdf"}]}}}`))
	require.NoError(t, err)

	stored, signers, err := svc.Document(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DocCompleted, stored.Status)
	assert.Equal(t, "https://files.example.com/signed.pdf", stored.SignedPDFURL)
	assert.Equal(t, "sw_1", stored.ProviderDocumentID)
	assert.NotNil(t, stored.SellerSignedAt)
	assert.NotNil(t, stored.PurchaserSignedAt)
	assert.NotNil(t, stored.AgentSignedAt)
	assert.Equal(t, doc.Status, stored.Status)
	for _, s := range signers {
		assert.Equal(t, models.SignerSigned, s.Status)
	}
	assert.Contains(t, sink.Names(), "signing.completed")
}

func TestService_ProviderOutOfOrderAndDeclined(t *testing.T) {
	svc, _ := newTestService(t)
	created := createThreeParty(t, svc)
	ctx := context.Background()
	id := created.Document.ID

	_, err := svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_signed","data":{"document":{"metadata":{"instanceId":"`+id+`"}},"signer":{"email":"agent@example.com"}}}`))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	doc, err := svc.Decline(ctx, created.Signers[1].ID, created.AccessTokens[created.Signers[1].ID], "price changed")
	require.NoError(t, err)
	assert.Equal(t, models.DocDeclined, doc.Status)

	doc, err = svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_completed","data":{"document":{"metadata":{"instanceId":"`+id+`"}}}}`))
	require.NoError(t, err, "events for a declined document are accepted")
	assert.Equal(t, models.DocDeclined, doc.Status)

	stored, _, err := svc.Document(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DocDeclined, stored.Status)
	assert.Nil(t, stored.CompletedAt)

	_, err = svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_signed","data":{"document":{"metadata":{"instanceId":"doc_missing"}},"signer":{"signing_order":1}}}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_LateEventsAfterCompletion(t *testing.T) {
	svc, sink := newTestService(t)
	created := createThreeParty(t, svc)
	ctx := context.Background()
	id := created.Document.ID

	_, err := svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_completed","data":{"document":{"metadata":{"instanceId":"`+id+`"}}}}`))
	require.NoError(t, err)

	doc, err := svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_declined","data":{"document":{"metadata":{"instanceId":"`+id+`"}},"signer":{"signing_order":2}}}`))
	require.NoError(t, err, "a late decline is not a processing failure")
	assert.Equal(t, models.DocCompleted, doc.Status)

	doc, err = svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_completed","data":{"document":{"metadata":{"instanceId":"`+id+`"},"files":[{"url":"https://files.example.com/late.pdf"}]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/late.pdf", doc.SignedPDFURL)

	stored, signers, err := svc.Document(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DocCompleted, stored.Status)
	assert.Nil(t, stored.DeclinedAt)
	for _, s := range signers {
		assert.Equal(t, models.SignerSigned, s.Status)
	}
	assert.NotContains(t, sink.Names(), "signing.declined")
}

func TestService_DeclineRules(t *testing.T) {
	svc, sink := newTestService(t)
	created := createThreeParty(t, svc)
	ctx := context.Background()
	id := created.Document.ID
	seller, purchaser := created.Signers[0], created.Signers[1]

	_, err := svc.ApplyProviderEvent(ctx, signwell(t, `{"event_type":"document_signed","data":{"document":{"metadata":{"instanceId":"`+id+`"}},"signer":{"signing_order":1}}}`))
	require.NoError(t, err)

	_, err = svc.Decline(ctx, seller.ID, created.AccessTokens[seller.ID], "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadySigned)

	stored, _, err := svc.Document(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DocPartiallySigned, stored.Status)
	assert.NotContains(t, sink.Names(), "signing.declined")

	_, err = svc.Decline(ctx, purchaser.ID, created.AccessTokens[purchaser.ID], "")
	require.NoError(t, err)

	agent := created.Signers[2]
	_, err = svc.Decline(ctx, agent.ID, created.AccessTokens[agent.ID], "")
	assert.ErrorIs(t, err, ErrTerminal, "a declined document cannot be declined again")

	_, signers, err := svc.Document(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SignerSigned, signers[0].Status)
	assert.Equal(t, models.SignerDeclined, signers[1].Status)
	assert.Equal(t, models.SignerPending, signers[2].Status)
}
