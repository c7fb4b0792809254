package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/propia/deal-gateway/internal/model"
	xhttp "github.com/propia/deal-gateway/pkg/http"
)

type TransactionService interface {
	Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error)
	Get(ctx context.Context, txID, actorID int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Validate(ctx context.Context, txID, actorID int64) (*model.Transaction, error)
	Pay(ctx context.Context, txID, actorID int64, p model.PayRequest) (*model.Transaction, error)
	Release(ctx context.Context, txID, actorID int64) (*model.Transaction, error)
	Cancel(ctx context.Context, txID, actorID int64, reason string) (*model.Transaction, error)
	Appeal(ctx context.Context, txID, actorID int64, reason string) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.CreateTransaction)
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.POST("/transactions/{id}/validate", h.ValidateTransaction)
	e.POST("/transactions/{id}/pay", h.PayTransaction)
	e.POST("/transactions/{id}/release", h.ReleaseTransaction)
	e.POST("/transactions/{id}/cancel", h.CancelTransaction)
	e.POST("/transactions/{id}/appeal", h.AppealTransaction)
}

func NewTransactionHandler(transactionService TransactionService) *TransactionHandler {
	return &TransactionHandler{
		svc: transactionService,
	}
}

type createTransactionRequest struct {
	ListingID   int64  `json:"listing_id"`
	ListingKind string `json:"listing_kind"`
	OfferAmount int64  `json:"offer_amount"`
	Currency    string `json:"currency"`
}

type payTransactionRequest struct {
	Method      string `json:"method"`
	ExternalRef string `json:"external_ref"`
	ReceiptRef  string `json:"receipt_ref"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	var req createTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.TransactionCreateRequest{
		BuyerID:     userID,
		ListingID:   req.ListingID,
		ListingKind: model.ListingKind(req.ListingKind),
		OfferAmount: req.OfferAmount,
		Currency:    req.Currency,
	}
	t, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, t)
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}

	f := model.TransactionFilter{UserID: userID}
	if v := query(ctx, "status"); v != "" {
		status := model.TransactionStatus(v)
		f.Status = &status
	}
	if v := query(ctx, "kind"); v != "" {
		kind := model.DealKind(v)
		f.DealKind = &kind
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, transactionListResponse{Items: items, Total: total})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(ctx, txID, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}

func (h *TransactionHandler) ValidateTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	t, err := h.svc.Validate(ctx, txID, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}

func (h *TransactionHandler) PayTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req payTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := h.svc.Pay(ctx, txID, userID, model.PayRequest{
		Method:      req.Method,
		ExternalRef: req.ExternalRef,
		ReceiptRef:  req.ReceiptRef,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}

func (h *TransactionHandler) ReleaseTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	t, err := h.svc.Release(ctx, txID, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}

func (h *TransactionHandler) CancelTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}
	t, err := h.svc.Cancel(ctx, txID, userID, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}

func (h *TransactionHandler) AppealTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	txID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := h.svc.Appeal(ctx, txID, userID, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}
