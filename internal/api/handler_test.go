package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"linkpay/internal/content"
	"linkpay/internal/links"
	"linkpay/internal/payments"
	"linkpay/internal/store"
	"linkpay/internal/x402"
)

const testBaseURL = "http://localhost:8080"

func setupTestHandler(limiter *CreateLimiter) (*Handler, *links.Service) {
	st := store.NewMemoryStore()
	linksSvc := links.NewService(st)
	paymentsSvc := payments.NewService(st)

	registry := content.NewRegistry(nil)
	content.SeedSampleContent(registry)

	if limiter != nil {
		paymentsSvc.SetConfirmedCallback(limiter.OnPaymentReceived)
	}

	return NewHandler(linksSvc, paymentsSvc, registry, limiter, testBaseURL), linksSvc
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func validCreateRequest() CreateLinkRequest {
	return CreateLinkRequest{
		Title:            "Coffee",
		Amount:           "5",
		RecipientAddress: "0x" + strings.Repeat("a", 40),
	}
}

func TestCreateAndGetLink(t *testing.T) {
	h, _ := setupTestHandler(nil)

	rec := doJSON(t, h, "POST", "/api/payment-links", validCreateRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body)
	}

	body := decodeBody(t, rec)
	link := body["paymentLink"].(map[string]any)
	if link["amount"] != "5.00" {
		t.Errorf("expected amount 5.00, got %v", link["amount"])
	}
	slug := link["slug"].(string)
	if !strings.HasPrefix(slug, "coffee-") {
		t.Errorf("unexpected slug %q", slug)
	}
	if url := body["url"].(string); url != testBaseURL+"/project/"+slug {
		t.Errorf("unexpected url %q", url)
	}

	rec = doJSON(t, h, "GET", "/api/payment-links/"+slug, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	body = decodeBody(t, rec)
	stats := body["stats"].(map[string]any)
	if stats["count"].(float64) != 0 {
		t.Errorf("expected 0 payments, got %v", stats["count"])
	}
	if got := body["paymentLink"].(map[string]any)["slug"]; got != slug {
		t.Errorf("got slug %v", got)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	h, _ := setupTestHandler(nil)

	cases := []struct {
		name string
		req  CreateLinkRequest
	}{
		{"MissingTitle", CreateLinkRequest{Amount: "5", RecipientAddress: "0x" + strings.Repeat("a", 40)}},
		{"MissingAmount", CreateLinkRequest{Title: "x", RecipientAddress: "0x" + strings.Repeat("a", 40)}},
		{"NonPositiveAmount", CreateLinkRequest{Title: "x", Amount: "0", RecipientAddress: "0x" + strings.Repeat("a", 40)}},
		{"BadAddress", CreateLinkRequest{Title: "x", Amount: "5", RecipientAddress: "0x1234"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/payment-links", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, body %s", rec.Code, rec.Body)
			}
			body := decodeBody(t, rec)
			if body["success"] != false || body["error"] == "" {
				t.Errorf("bad error envelope: %v", body)
			}
		})
	}
}

func TestListLinks(t *testing.T) {
	h, svc := setupTestHandler(nil)
	if err := svc.SeedSampleData(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, h, "GET", "/api/payment-links", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	all := body["paymentLinks"].([]any)
	if len(all) != 3 {
		t.Errorf("expected 3 seeded links, got %d", len(all))
	}
	first := all[0].(map[string]any)
	if first["slug"] != "coffee-fund" {
		t.Errorf("expected insertion order, got first slug %v", first["slug"])
	}
}

func TestPayLink(t *testing.T) {
	payBody := func(amount string) PayLinkRequest {
		return PayLinkRequest{
			TransactionHash: "0xabc",
			PayerAddress:    "0x" + strings.Repeat("b", 40),
			Amount:          amount,
		}
	}

	setup := func(t *testing.T) (*Handler, string) {
		h, svc := setupTestHandler(nil)
		link, err := svc.Create(context.Background(), links.CreateInput{
			Title:            "Fund",
			Amount:           "10.00",
			RecipientAddress: "0x" + strings.Repeat("a", 40),
		})
		if err != nil {
			t.Fatal(err)
		}
		return h, link.Slug
	}

	t.Run("RecordsPayment", func(t *testing.T) {
		h, slug := setup(t)
		rec := doJSON(t, h, "POST", "/api/payment-links/"+slug, payBody("10.00"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rec.Code, rec.Body)
		}
		body := decodeBody(t, rec)
		if body["message"] != "Payment recorded successfully" {
			t.Errorf("message %v", body["message"])
		}
		payment := body["payment"].(map[string]any)
		if payment["status"] != "confirmed" || payment["amount"] != "10.00" {
			t.Errorf("payment %v", payment)
		}

		rec = doJSON(t, h, "GET", "/api/payment-links/"+slug, nil)
		stats := decodeBody(t, rec)["stats"].(map[string]any)
		if stats["count"].(float64) != 1 || stats["total"] != "10.00" {
			t.Errorf("stats %v", stats)
		}
	})

	t.Run("WithinTolerance", func(t *testing.T) {
		h, slug := setup(t)
		rec := doJSON(t, h, "POST", "/api/payment-links/"+slug, payBody("10.009"))
		if rec.Code != http.StatusOK {
			t.Errorf("10.009 against 10.00 should be accepted: %d %s", rec.Code, rec.Body)
		}
	})

	t.Run("OutsideTolerance", func(t *testing.T) {
		h, slug := setup(t)
		rec := doJSON(t, h, "POST", "/api/payment-links/"+slug, payBody("10.02"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("10.02 against 10.00 should be rejected: %d", rec.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		h, slug := setup(t)
		rec := doJSON(t, h, "POST", "/api/payment-links/"+slug, PayLinkRequest{Amount: "10.00"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status %d", rec.Code)
		}
	})

	t.Run("UnknownSlug", func(t *testing.T) {
		h, _ := setup(t)
		rec := doJSON(t, h, "POST", "/api/payment-links/nope", payBody("10.00"))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status %d", rec.Code)
		}
	})

	t.Run("DeactivatedRejectsValidPayload", func(t *testing.T) {
		h, slug := setup(t)
		if rec := doJSON(t, h, "DELETE", "/api/payment-links/"+slug, nil); rec.Code != http.StatusOK {
			t.Fatalf("deactivate: %d", rec.Code)
		}
		rec := doJSON(t, h, "POST", "/api/payment-links/"+slug, payBody("10.00"))
		if rec.Code != http.StatusGone {
			t.Errorf("expected 410, got %d", rec.Code)
		}
	})
}

func TestDeactivateLink(t *testing.T) {
	h, svc := setupTestHandler(nil)
	link, _ := svc.Create(context.Background(), links.CreateInput{
		Title:            "Old",
		Amount:           "1",
		RecipientAddress: "0x" + strings.Repeat("a", 40),
	})

	rec := doJSON(t, h, "DELETE", "/api/payment-links/"+link.Slug, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/api/payment-links/"+link.Slug, nil)
	if rec.Code != http.StatusGone {
		t.Errorf("expected 410 after deactivation, got %d", rec.Code)
	}

	rec = doJSON(t, h, "DELETE", "/api/payment-links/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDownloadChallengeFlow(t *testing.T) {
	h, _ := setupTestHandler(nil)

	// Unpaid: challenge with the X-402 headers.
	rec := doJSON(t, h, "GET", "/api/download/bitcoin-whitepaper", nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	for _, header := range []string{x402.HeaderAmount, x402.HeaderCurrency, x402.HeaderAddress} {
		if rec.Header().Get(header) == "" {
			t.Errorf("missing header %s", header)
		}
	}
	if rec.Header().Get(x402.HeaderAmount) != "0.05" {
		t.Errorf("amount header %q", rec.Header().Get(x402.HeaderAmount))
	}

	// Confirm.
	rec = doJSON(t, h, "POST", "/api/download/bitcoin-whitepaper", ConfirmFileRequest{
		PaymentConfirmed: true,
		TransactionHash:  "0xabc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["paymentType"] != "regular" || body["transactionId"] != "0xabc" {
		t.Errorf("confirm body %v", body)
	}

	// Paid: unlocked pointer.
	rec = doJSON(t, h, "GET", "/api/download/bitcoin-whitepaper", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after payment, got %d", rec.Code)
	}
	file := decodeBody(t, rec)["file"].(map[string]any)
	if file["downloadUrl"] != "/api/download/bitcoin-whitepaper/content" {
		t.Errorf("downloadUrl %v", file["downloadUrl"])
	}

	// Content streams with an attachment disposition.
	rec = doJSON(t, h, "GET", "/api/download/bitcoin-whitepaper/content", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("content: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty content body")
	}
}

func TestDownloadGaslessConfirmation(t *testing.T) {
	h, _ := setupTestHandler(nil)

	rec := doJSON(t, h, "POST", "/api/download/bitcoin-whitepaper", ConfirmFileRequest{
		PaymentConfirmed:   true,
		UserOpHash:         "0xuserop",
		GaslessTransaction: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["paymentType"] != "gasless" || body["transactionId"] != "0xuserop" {
		t.Errorf("confirm body %v", body)
	}
}

func TestDownloadFreeFile(t *testing.T) {
	h, _ := setupTestHandler(nil)

	rec := doJSON(t, h, "GET", "/api/download/sample-file", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("free file should not be challenged: %d", rec.Code)
	}
}

func TestDownloadErrors(t *testing.T) {
	h, _ := setupTestHandler(nil)

	if rec := doJSON(t, h, "GET", "/api/download/unknown-file", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: %d", rec.Code)
	}

	rec := doJSON(t, h, "POST", "/api/download/bitcoin-whitepaper", ConfirmFileRequest{
		TransactionHash: "0xabc", // paymentConfirmed missing
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing paymentConfirmed: %d", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/api/download/bitcoin-whitepaper", ConfirmFileRequest{
		PaymentConfirmed: true, // identifier missing
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing identifier: %d", rec.Code)
	}

	// Both rejections must leave the file unpaid.
	if rec := doJSON(t, h, "GET", "/api/download/bitcoin-whitepaper", nil); rec.Code != http.StatusPaymentRequired {
		t.Errorf("file unlocked by rejected confirmation: %d", rec.Code)
	}
}

func TestCreateLimitEnforced(t *testing.T) {
	limiter := NewCreateLimiter(1)
	h, _ := setupTestHandler(limiter)

	first := validCreateRequest()
	first.Title = "First"
	rec := doJSON(t, h, "POST", "/api/payment-links", first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first create: %d %s", rec.Code, rec.Body)
	}
	slug := decodeBody(t, rec)["paymentLink"].(map[string]any)["slug"].(string)

	second := validCreateRequest()
	second.Title = "Second"
	if rec := doJSON(t, h, "POST", "/api/payment-links", second); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second create should hit the limit: %d", rec.Code)
	}

	// Paying the first link frees the budget.
	rec = doJSON(t, h, "POST", "/api/payment-links/"+slug, PayLinkRequest{
		TransactionHash: "0x1",
		PayerAddress:    "0x" + strings.Repeat("b", 40),
		Amount:          "5.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: %d %s", rec.Code, rec.Body)
	}

	if rec := doJSON(t, h, "POST", "/api/payment-links", second); rec.Code != http.StatusOK {
		t.Errorf("create after payment should succeed: %d %s", rec.Code, rec.Body)
	}
}
