package services

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/fundbridge/backend/internal/models"
)

// FundingService manages funding records. Cancellation is logical only:
// is_deleted flips to true and the row stays queryable for audit.
type FundingService struct {
	db *sql.DB
}

func NewFundingService(db *sql.DB) *FundingService {
	return &FundingService{db: db}
}

// CreateTx inserts a funding row for a sponsor within the caller's
// transaction. The sponsor is resolved by username; the funding gets the
// highest reward tier whose threshold the amount meets, if any.
func (s *FundingService) CreateTx(tx *sql.Tx, projectID int, sponsorUsername string, amount int64) (*models.Funding, error) {
	var sponsorID int
	err := tx.QueryRow(`SELECT id FROM users WHERE name = $1`, sponsorUsername).Scan(&sponsorID)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var rewardID *int
	var candidate int
	err = tx.QueryRow(`
		SELECT id FROM rewards
		WHERE project_id = $1 AND amount <= $2
		ORDER BY amount DESC
		LIMIT 1`, projectID, amount).Scan(&candidate)
	if err == nil {
		rewardID = &candidate
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	funding := &models.Funding{
		ProjectID: projectID,
		SponsorID: sponsorID,
		RewardID:  rewardID,
		Amount:    amount,
		FundedAt:  time.Now(),
	}

	err = tx.QueryRow(`
		INSERT INTO fundings (project_id, sponsor_id, reward_id, amount, funded_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id`,
		funding.ProjectID, funding.SponsorID, funding.RewardID, funding.Amount, funding.FundedAt).Scan(&funding.ID)
	if err != nil {
		return nil, err
	}

	return funding, nil
}

// CancelTx soft-deletes a funding within the caller's transaction.
// Cancelling an already-cancelled funding fails, which is what blocks a
// second refund of the same payment.
func (s *FundingService) CancelTx(tx *sql.Tx, fundingID int) (*models.Funding, error) {
	var funding models.Funding
	err := tx.QueryRow(`
		SELECT id, project_id, sponsor_id, reward_id, amount, funded_at, is_deleted
		FROM fundings
		WHERE id = $1
		FOR UPDATE`, fundingID).Scan(
		&funding.ID, &funding.ProjectID, &funding.SponsorID, &funding.RewardID,
		&funding.Amount, &funding.FundedAt, &funding.IsDeleted)
	if err == sql.ErrNoRows {
		return nil, ErrFundingNotFound
	}
	if err != nil {
		return nil, err
	}

	if funding.IsDeleted {
		return nil, ErrFundingAlreadyCancelled
	}

	if _, err := tx.Exec(`UPDATE fundings SET is_deleted = true WHERE id = $1`, fundingID); err != nil {
		return nil, err
	}

	funding.IsDeleted = true
	return &funding, nil
}

// ListActiveByProjectID returns the non-deleted fundings of a project,
// oldest first. The cascade iterates this; because each refund
// soft-deletes its funding, a rerun only sees what is still pending.
func (s *FundingService) ListActiveByProjectID(projectID int) ([]models.Funding, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, sponsor_id, reward_id, amount, funded_at, is_deleted
		FROM fundings
		WHERE project_id = $1 AND is_deleted = false
		ORDER BY funded_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFundings(rows)
}

// ListBySponsorID returns all of a sponsor's fundings, deleted included.
func (s *FundingService) ListBySponsorID(sponsorID int) ([]models.Funding, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, sponsor_id, reward_id, amount, funded_at, is_deleted
		FROM fundings
		WHERE sponsor_id = $1
		ORDER BY funded_at DESC`, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFundings(rows)
}

// BulkCancelByProjectIDTx soft-deletes every active funding of a project
// in one pass. Used by the SUCCESS/REJECTED cascades, which close
// fundings out without refunding.
func (s *FundingService) BulkCancelByProjectIDTx(tx *sql.Tx, projectID int) (int64, error) {
	result, err := tx.Exec(`
		UPDATE fundings SET is_deleted = true
		WHERE project_id = $1 AND is_deleted = false`, projectID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListMyFundings returns the authenticated sponsor's funding history
// @Summary List own fundings
// @Tags fundings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Funding
// @Router /fundings [get]
func (s *FundingService) ListMyFundings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	fundings, err := s.ListBySponsorID(userID)
	if err != nil {
		log.Printf("[FUNDING] Failed to list fundings for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch fundings", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Fundings retrieved", fundings)
}

func scanFundings(rows *sql.Rows) ([]models.Funding, error) {
	fundings := []models.Funding{}
	for rows.Next() {
		var funding models.Funding
		err := rows.Scan(&funding.ID, &funding.ProjectID, &funding.SponsorID, &funding.RewardID,
			&funding.Amount, &funding.FundedAt, &funding.IsDeleted)
		if err != nil {
			return nil, err
		}
		fundings = append(fundings, funding)
	}
	return fundings, rows.Err()
}
