package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"linkpay/internal/content"
	"linkpay/internal/links"
	"linkpay/internal/logging"
	"linkpay/internal/payments"
	"linkpay/internal/store"
	"linkpay/internal/x402"
)

var validFileIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Handler handles HTTP requests.
type Handler struct {
	links         *links.Service
	payments      *payments.Service
	content       *content.Registry
	createLimiter *CreateLimiter
	baseURL       string
	mux           *http.ServeMux
}

// NewHandler creates a new HTTP handler.
// If createLimiter is nil, no per-IP link creation limit is enforced.
func NewHandler(linksSvc *links.Service, paymentsSvc *payments.Service, registry *content.Registry, createLimiter *CreateLimiter, baseURL string) *Handler {
	h := &Handler{
		links:         linksSvc,
		payments:      paymentsSvc,
		content:       registry,
		createLimiter: createLimiter,
		baseURL:       baseURL,
		mux:           http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/payment-links", h.handleListLinks)
	h.mux.HandleFunc("POST /api/payment-links", h.handleCreateLink)
	h.mux.HandleFunc("GET /api/payment-links/{slug}", h.handleGetLink)
	h.mux.HandleFunc("POST /api/payment-links/{slug}", h.handlePayLink)
	h.mux.HandleFunc("DELETE /api/payment-links/{slug}", h.handleDeactivateLink)
	h.mux.HandleFunc("GET /api/download/{fileId}", h.handleGetFile)
	h.mux.HandleFunc("POST /api/download/{fileId}", h.handleConfirmFile)
	h.mux.HandleFunc("GET /api/download/{fileId}/content", h.handleFileContent)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func isValidFileID(id string) bool {
	return id != "" && len(id) <= 64 && validFileIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.HTTP.Printf("failed to encode response: %v", err)
	}
}

// The payment-link routes use a {success, error} envelope; the download
// routes use a bare {error} object. Both shapes come from the surface this
// server implements.
func linkError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func fileError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// CreateLinkRequest is the request body for creating a payment link.
type CreateLinkRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Amount           string `json:"amount"`
	RecipientAddress string `json:"recipientAddress"`
	CreatedBy        string `json:"createdBy,omitempty"`
}

func (h *Handler) handleListLinks(w http.ResponseWriter, r *http.Request) {
	all, err := h.links.List(r.Context())
	if err != nil {
		logging.HTTP.Printf("failed to list payment links: %v", err)
		linkError(w, http.StatusInternalServerError, "Failed to get payment links")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"paymentLinks": all,
	})
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if h.createLimiter != nil && !h.createLimiter.CanCreate(ip) {
		count := h.createLimiter.UnpaidCount(ip)
		max := h.createLimiter.MaxUnpaid()
		msg := fmt.Sprintf("unpaid link limit reached: you have %d link(s) with no payments (max %d)", count, max)
		linkError(w, http.StatusTooManyRequests, msg)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		linkError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.links.Create(r.Context(), links.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Amount:           req.Amount,
		RecipientAddress: req.RecipientAddress,
		CreatedBy:        req.CreatedBy,
	})
	switch {
	case errors.Is(err, links.ErrMissingFields),
		errors.Is(err, links.ErrInvalidAmount),
		errors.Is(err, links.ErrInvalidAddress):
		linkError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.HTTP.Printf("failed to create payment link: %v", err)
		linkError(w, http.StatusInternalServerError, "Failed to create payment link")
		return
	}

	if h.createLimiter != nil && ip != "" {
		h.createLimiter.TrackLink(ip, link.Slug)
	}

	logging.HTTP.Printf("created payment link %q (%s USDC)", link.Slug, link.Amount)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"paymentLink": link,
		"url":         h.baseURL + "/project/" + link.Slug,
	})
}

func (h *Handler) handleGetLink(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	link, totals, err := h.links.Get(r.Context(), slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		linkError(w, http.StatusNotFound, "Payment link not found")
		return
	case errors.Is(err, links.ErrInactive):
		linkError(w, http.StatusGone, "Payment link is no longer active")
		return
	case err != nil:
		logging.HTTP.Printf("failed to get payment link %q: %v", slug, err)
		linkError(w, http.StatusInternalServerError, "Failed to get payment link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"paymentLink": link,
		"stats":       totals,
	})
}

// PayLinkRequest is the request body for reporting a link payment.
type PayLinkRequest struct {
	TransactionHash    string `json:"transactionHash,omitempty"`
	UserOpHash         string `json:"userOpHash,omitempty"`
	PayerAddress       string `json:"payerAddress"`
	Amount             string `json:"amount"`
	GaslessTransaction bool   `json:"gaslessTransaction,omitempty"`
}

func (h *Handler) handlePayLink(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	link, _, err := h.links.Get(r.Context(), slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		linkError(w, http.StatusNotFound, "Payment link not found")
		return
	case errors.Is(err, links.ErrInactive):
		linkError(w, http.StatusGone, "Payment link is no longer active")
		return
	case err != nil:
		logging.HTTP.Printf("failed to get payment link %q: %v", slug, err)
		linkError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	var req PayLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		linkError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.payments.ConfirmLink(r.Context(), link, payments.LinkConfirmation{
		TransactionHash:    req.TransactionHash,
		UserOpHash:         req.UserOpHash,
		PayerAddress:       req.PayerAddress,
		Amount:             req.Amount,
		GaslessTransaction: req.GaslessTransaction,
	})
	var mismatch *payments.AmountMismatchError
	switch {
	case errors.Is(err, payments.ErrMissingPayment):
		linkError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &mismatch):
		linkError(w, http.StatusBadRequest, mismatch.Error())
		return
	case err != nil:
		logging.HTTP.Printf("failed to record payment for %q: %v", slug, err)
		linkError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payment": payment,
		"message": "Payment recorded successfully",
	})
}

func (h *Handler) handleDeactivateLink(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	ok, err := h.links.Deactivate(r.Context(), slug)
	if err != nil {
		logging.HTTP.Printf("failed to deactivate %q: %v", slug, err)
		linkError(w, http.StatusInternalServerError, "Failed to deactivate payment link")
		return
	}
	if !ok {
		linkError(w, http.StatusNotFound, "Payment link not found")
		return
	}

	logging.HTTP.Printf("deactivated payment link %q", slug)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) fileResponse(item *content.Item) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"name":        item.Name,
		"downloadUrl": "/api/download/" + item.ID + "/content",
	}
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	if !isValidFileID(fileID) {
		fileError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	item, ok := h.content.Get(fileID)
	if !ok {
		fileError(w, http.StatusNotFound, "File not found")
		return
	}

	if item.RequiresPayment() && !h.payments.FileConfirmed(fileID) {
		if err := x402.WriteChallenge(w, x402.PaymentRequest{
			Amount:      item.Price,
			Currency:    item.Currency,
			Address:     item.Address,
			Description: item.Description,
		}); err != nil {
			logging.HTTP.Printf("failed to write challenge for %s: %v", fileID, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file":    h.fileResponse(item),
	})
}

// ConfirmFileRequest is the request body for reporting a file payment.
type ConfirmFileRequest struct {
	PaymentConfirmed   bool   `json:"paymentConfirmed"`
	TransactionHash    string `json:"transactionHash,omitempty"`
	UserOpHash         string `json:"userOpHash,omitempty"`
	GaslessTransaction bool   `json:"gaslessTransaction,omitempty"`
}

func (h *Handler) handleConfirmFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	if !isValidFileID(fileID) {
		fileError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	item, ok := h.content.Get(fileID)
	if !ok {
		fileError(w, http.StatusNotFound, "File not found")
		return
	}

	var req ConfirmFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fileError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txID, err := h.payments.ConfirmFile(fileID, payments.FileConfirmation{
		PaymentConfirmed:   req.PaymentConfirmed,
		TransactionHash:    req.TransactionHash,
		UserOpHash:         req.UserOpHash,
		GaslessTransaction: req.GaslessTransaction,
	})
	if err != nil {
		fileError(w, http.StatusBadRequest, err.Error())
		return
	}

	paymentType := "regular"
	if req.GaslessTransaction {
		paymentType = "gasless"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"paymentType":   paymentType,
		"transactionId": txID,
		"file":          h.fileResponse(item),
	})
}

// handleFileContent streams the file bytes. Payment status is not
// re-checked here; the unlock decision happens on the metadata route.
// Known gap carried over from the surface this implements.
func (h *Handler) handleFileContent(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	if !isValidFileID(fileID) {
		fileError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	item, ok := h.content.Get(fileID)
	if !ok {
		fileError(w, http.StatusNotFound, "File not found")
		return
	}

	rc, err := h.content.Open(r.Context(), fileID)
	if errors.Is(err, content.ErrNotFound) {
		fileError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		logging.HTTP.Printf("failed to open content %s: %v", fileID, err)
		fileError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", item.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Name))
	if _, err := io.Copy(w, rc); err != nil {
		logging.HTTP.Printf("failed to stream %s: %v", fileID, err)
	}
}
