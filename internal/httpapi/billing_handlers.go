package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"societyos.org/internal/auth"
	"societyos.org/internal/billing"
)

type createPaymentRequest struct {
	Title       string `json:"title"`
	IssueDate   string `json:"issueDate"`
	DueDate     string `json:"dueDate"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

type createPaymentResponse struct {
	Payment *billing.Charge `json:"payment"`
	// Fanout reports "complete" or "reconciling" when the charge was
	// persisted but some obligations still need a reconcile pass.
	Fanout string `json:"fanout"`
}

type paymentsResponse struct {
	Payments any `json:"payments"`
}

type markPaidRequest struct {
	ID          string `json:"id"`
	AmountPaid  int64  `json:"amountPaid"`
	ExternalRef string `json:"externalRef"`
}

func (a *API) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermChargeCreate); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req createPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "issueDate: "+err.Error())
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "dueDate: "+err.Error())
		return
	}

	charge, err := a.billing.CreateCharge(r.Context(), billing.ChargeRequest{
		Title:       req.Title,
		IssueDate:   issueDate,
		DueDate:     dueDate,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil && !errors.Is(err, billing.ErrFanoutIncomplete) {
		handleBillingError(w, r, err)
		return
	}

	// An incomplete fan-out still created the charge; obligations are
	// filled in by the reconcile path, so the client gets its resource.
	fanout := "complete"
	if err != nil {
		fanout = "reconciling"
	}
	w.Header().Set("Location", "/payment/paid/"+charge.ID)
	writeJSON(w, http.StatusCreated, createPaymentResponse{Payment: charge, Fanout: fanout})
}

func (a *API) handleManagerPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermChargeList); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	managerID, ok := pathSuffix(r.URL.Path, "/payment/manager/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	charges, err := a.billing.ListChargesForManager(r.Context(), managerID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	if len(charges) == 0 {
		writeError(w, r, http.StatusNotFound, "no payments found")
		return
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: charges})
}

func (a *API) handleMemberPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermSettlementView); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	memberID, ok := pathSuffix(r.URL.Path, "/payment/member/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	// Members see their own ledger only; charge issuers may inspect any
	// member of their society.
	if err := a.requireSelfOrPermission(r.Context(), memberID, auth.PermChargeCreate); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}

	settlements, err := a.billing.ObligationsForMember(r.Context(), memberID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	// Empty is a valid answer here: a member with nothing due sees an
	// empty list, not an error.
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: settlements})
}

func (a *API) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermSettlementPay); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req markPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := a.billing.Obligation(r.Context(), req.ID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	// Only the obligated member settles their own dues; charge issuers may
	// record an offline payment on a member's behalf.
	if err := a.requireSelfOrPermission(r.Context(), existing.MemberID, auth.PermChargeCreate); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}

	obligation, err := a.billing.MarkPaid(r.Context(), req.ID, req.AmountPaid, req.ExternalRef)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obligation)
}

func (a *API) handlePaidMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermChargeList); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	chargeID, ok := pathSuffix(r.URL.Path, "/payment/paid/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	paid, err := a.billing.PaidMembers(r.Context(), chargeID)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: paid})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", raw)
	}
	return t, nil
}

func handleBillingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidAmount), errors.Is(err, billing.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrAlreadyPaid):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
