package client

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"linkpay/internal/api"
	"linkpay/internal/content"
	"linkpay/internal/links"
	"linkpay/internal/payments"
	"linkpay/internal/store"
	"linkpay/internal/wallet"
)

const payerAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

func startServer(t *testing.T) (*httptest.Server, *links.Service) {
	t.Helper()

	st := store.NewMemoryStore()
	linksSvc := links.NewService(st)
	paymentsSvc := payments.NewService(st)

	registry := content.NewRegistry(nil)
	content.SeedSampleContent(registry)

	handler := api.NewHandler(linksSvc, paymentsSvc, registry, nil, "http://localhost:8080")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, linksSvc
}

func newWallet(t *testing.T) *wallet.SimulatedWallet {
	t.Helper()
	w, err := wallet.NewSimulatedWallet(payerAddress)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestFetchFilePaysChallenge(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.Client(), newWallet(t), srv.URL)

	result, err := c.FetchFile(context.Background(), "bitcoin-whitepaper")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Paid {
		t.Error("gated file should have required a payment")
	}
	if result.TxID == nil || result.TxID.TransactionHash == "" {
		t.Errorf("missing transaction identifier: %+v", result.TxID)
	}
	if result.TxID.Gasless {
		t.Error("regular wallet must not report a gasless transaction")
	}
	if result.File.DownloadURL == "" {
		t.Error("missing download URL")
	}

	rc, err := c.DownloadContent(context.Background(), result.File)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("empty file content")
	}

	// Second fetch does not pay again.
	result, err = c.FetchFile(context.Background(), "bitcoin-whitepaper")
	if err != nil {
		t.Fatal(err)
	}
	if result.Paid {
		t.Error("already-paid file should not be paid again")
	}
}

func TestFetchFileGasless(t *testing.T) {
	srv, _ := startServer(t)
	w, err := wallet.NewPaymasterWallet(payerAddress)
	if err != nil {
		t.Fatal(err)
	}
	c := New(srv.Client(), w, srv.URL)

	result, err := c.FetchFile(context.Background(), "bitcoin-whitepaper")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Paid || result.TxID == nil {
		t.Fatalf("expected a payment, got %+v", result)
	}
	if !result.TxID.Gasless || result.TxID.UserOpHash == "" {
		t.Errorf("expected a gasless user operation, got %+v", result.TxID)
	}
}

func TestFetchFileFree(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.Client(), nil, srv.URL) // no wallet needed for free files

	result, err := c.FetchFile(context.Background(), "sample-file")
	if err != nil {
		t.Fatal(err)
	}
	if result.Paid {
		t.Error("free file must not trigger a payment")
	}
}

func TestFetchFileNoWallet(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.Client(), nil, srv.URL)

	if _, err := c.FetchFile(context.Background(), "bitcoin-whitepaper"); err != ErrNoWallet {
		t.Errorf("expected ErrNoWallet, got %v", err)
	}
}

func TestFetchFileUnknown(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.Client(), newWallet(t), srv.URL)

	_, err := c.FetchFile(context.Background(), "no-such-file")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected a 404 error, got %v", err)
	}
}

func TestPayLink(t *testing.T) {
	srv, linksSvc := startServer(t)
	link, err := linksSvc.Create(context.Background(), links.CreateInput{
		Title:            "Tip Jar",
		Amount:           "2.50",
		RecipientAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
	})
	if err != nil {
		t.Fatal(err)
	}

	c := New(srv.Client(), newWallet(t), srv.URL)
	payment, err := c.PayLink(context.Background(), link.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if payment == nil {
		t.Fatal("nil payment")
	}
	if payment.Amount != "2.50" || payment.Status != store.StatusConfirmed {
		t.Errorf("payment %+v", payment)
	}
	if payment.PayerAddress != payerAddress {
		t.Errorf("payer %q", payment.PayerAddress)
	}

	// The server now reports the payment in the link's stats.
	_, totals, err := linksSvc.Get(context.Background(), link.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Count != 1 || totals.Total != "2.50" {
		t.Errorf("totals %+v", totals)
	}
}

func TestPayLinkDeactivated(t *testing.T) {
	srv, linksSvc := startServer(t)
	link, err := linksSvc.Create(context.Background(), links.CreateInput{
		Title:            "Closed",
		Amount:           "1.00",
		RecipientAddress: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := linksSvc.Deactivate(context.Background(), link.Slug); err != nil {
		t.Fatal(err)
	}

	c := New(srv.Client(), newWallet(t), srv.URL)
	_, err = c.PayLink(context.Background(), link.Slug)
	if err == nil || !strings.Contains(err.Error(), "410") {
		t.Errorf("expected a 410 error, got %v", err)
	}
}

func TestPayLinkNoWallet(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.Client(), nil, srv.URL)

	if _, err := c.PayLink(context.Background(), "anything"); err != ErrNoWallet {
		t.Errorf("expected ErrNoWallet, got %v", err)
	}
}
