package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hookline/internal/platform/models"
)

const signerColumns = `id, doc_instance_id, role, email, signing_order, status, access_token_hash,
	token_expires_at, viewed_at, signed_at, declined_at, created_at, updated_at`

const docInstanceColumns = `id, status, provider_document_id, submission_data, signed_pdf_url,
	seller_signed_at, purchaser_signed_at, agent_signed_at, declined_at, completed_at, created_at, updated_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores a document instance together with its signers.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.DocInstance, signers []*models.Signer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO doc_instances (id, status, provider_document_id, submission_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.ID, string(doc.Status), nullString(doc.ProviderDocumentID), nullString(string(doc.SubmissionData)), toMillis(doc.CreatedAt), toMillis(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert document instance: %w", err)
	}

	for _, s := range signers {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO doc_signers (id, doc_instance_id, role, email, signing_order, status, access_token_hash, token_expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.DocInstanceID, s.Role, s.Email, s.SigningOrder, string(s.Status), s.AccessTokenHash, toMillis(s.TokenExpiresAt), toMillis(s.CreatedAt), toMillis(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert signer %d: %w", s.SigningOrder, err)
		}
	}

	return tx.Commit()
}

// GetInstance returns nil, nil when the instance does not exist.
func (r *DocumentRepository) GetInstance(ctx context.Context, id string) (*models.DocInstance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+docInstanceColumns+` FROM doc_instances WHERE id = ?`, id)
	doc, err := scanDocInstance(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// ListSigners returns the instance's signers in signing order.
func (r *DocumentRepository) ListSigners(ctx context.Context, docInstanceID string) ([]*models.Signer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+signerColumns+` FROM doc_signers WHERE doc_instance_id = ? ORDER BY signing_order ASC`, docInstanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signers []*models.Signer
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}
	return signers, rows.Err()
}

// GetSigner returns nil, nil when the signer does not exist.
func (r *DocumentRepository) GetSigner(ctx context.Context, id string) (*models.Signer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+signerColumns+` FROM doc_signers WHERE id = ?`, id)
	s, err := scanSigner(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// SaveTransition persists the document row and the given signers in one
// transaction.
func (r *DocumentRepository) SaveTransition(ctx context.Context, doc *models.DocInstance, signers ...*models.Signer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE doc_instances SET
			status = ?, provider_document_id = ?, signed_pdf_url = ?,
			seller_signed_at = ?, purchaser_signed_at = ?, agent_signed_at = ?,
			declined_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		string(doc.Status),
		nullString(doc.ProviderDocumentID),
		nullString(doc.SignedPDFURL),
		nullMillis(doc.SellerSignedAt),
		nullMillis(doc.PurchaserSignedAt),
		nullMillis(doc.AgentSignedAt),
		nullMillis(doc.DeclinedAt),
		nullMillis(doc.CompletedAt),
		toMillis(doc.UpdatedAt),
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document instance: %w", err)
	}

	for _, s := range signers {
		s.UpdatedAt = doc.UpdatedAt
		_, err = tx.ExecContext(ctx, `
			UPDATE doc_signers SET status = ?, viewed_at = ?, signed_at = ?, declined_at = ?, updated_at = ?
			WHERE id = ?
		`, string(s.Status), nullMillis(s.ViewedAt), nullMillis(s.SignedAt), nullMillis(s.DeclinedAt), toMillis(s.UpdatedAt), s.ID)
		if err != nil {
			return fmt.Errorf("update signer %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

func scanDocInstance(s scanner) (*models.DocInstance, error) {
	var d models.DocInstance
	var status string
	var providerID, submission, pdfURL sql.NullString
	var seller, purchaser, agent, declined, completed sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(&d.ID, &status, &providerID, &submission, &pdfURL, &seller, &purchaser, &agent, &declined, &completed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Status = models.DocStatus(status)
	d.ProviderDocumentID = providerID.String
	if submission.Valid {
		d.SubmissionData = []byte(submission.String)
	}
	d.SignedPDFURL = pdfURL.String
	d.SellerSignedAt = timePtr(seller)
	d.PurchaserSignedAt = timePtr(purchaser)
	d.AgentSignedAt = timePtr(agent)
	d.DeclinedAt = timePtr(declined)
	d.CompletedAt = timePtr(completed)
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}

func scanSigner(s scanner) (*models.Signer, error) {
	var sg models.Signer
	var status string
	var expiresAt, createdAt, updatedAt int64
	var viewed, signed, declined sql.NullInt64

	err := s.Scan(&sg.ID, &sg.DocInstanceID, &sg.Role, &sg.Email, &sg.SigningOrder, &status, &sg.AccessTokenHash,
		&expiresAt, &viewed, &signed, &declined, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sg.Status = models.SignerStatus(status)
	sg.TokenExpiresAt = fromMillis(expiresAt)
	sg.ViewedAt = timePtr(viewed)
	sg.SignedAt = timePtr(signed)
	sg.DeclinedAt = timePtr(declined)
	sg.CreatedAt = fromMillis(createdAt)
	sg.UpdatedAt = fromMillis(updatedAt)
	return &sg, nil
}
