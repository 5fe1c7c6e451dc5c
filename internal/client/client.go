// Package client drives the x402 flow from the payer's side: request the
// resource, pay the challenge through a wallet broadcaster, report the
// identifier, and request again. Every step is a single attempt; any
// failure is surfaced to the caller, never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"linkpay/internal/logging"
	"linkpay/internal/store"
	"linkpay/internal/wallet"
	"linkpay/internal/x402"
)

var ErrNoWallet = errors.New("no wallet connected")

// Client performs paid requests against a linkpay server.
type Client struct {
	http    *http.Client
	wallet  wallet.Broadcaster
	baseURL string
}

// New creates a client. httpClient may be nil to use http.DefaultClient;
// w may be nil, in which case paid resources fail with ErrNoWallet.
func New(httpClient *http.Client, w wallet.Broadcaster, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, wallet: w, baseURL: baseURL}
}

// FileInfo points at an unlocked file.
type FileInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"downloadUrl"`
}

// FetchResult is the outcome of fetching a gated file.
type FetchResult struct {
	File FileInfo
	Paid bool         // whether a payment was made during this fetch
	TxID *wallet.TxID // set when Paid
}

type fileResponse struct {
	Success bool     `json:"success"`
	File    FileInfo `json:"file"`
}

type fileConfirmRequest struct {
	PaymentConfirmed   bool   `json:"paymentConfirmed"`
	TransactionHash    string `json:"transactionHash,omitempty"`
	UserOpHash         string `json:"userOpHash,omitempty"`
	GaslessTransaction bool   `json:"gaslessTransaction,omitempty"`
}

// FetchFile requests a file, paying its challenge if one comes back.
func (c *Client) FetchFile(ctx context.Context, fileID string) (*FetchResult, error) {
	resourceURL := c.baseURL + "/api/download/" + fileID

	resp, err := c.get(ctx, resourceURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		var fr fileResponse
		if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
			return nil, fmt.Errorf("decode file response: %w", err)
		}
		return &FetchResult{File: fr.File}, nil
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	challenge, err := x402.ParseChallenge(resp)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if c.wallet == nil {
		return nil, ErrNoWallet
	}

	logging.Internal.Printf("paying challenge for %s: %s %s to %s", fileID, challenge.Amount, challenge.Currency, challenge.Address)

	txid, err := c.wallet.Initiate(ctx, challenge.Amount, challenge.Currency, challenge.Address)
	if err != nil {
		return nil, fmt.Errorf("broadcast payment: %w", err)
	}

	confirm := fileConfirmRequest{
		PaymentConfirmed:   true,
		TransactionHash:    txid.TransactionHash,
		UserOpHash:         txid.UserOpHash,
		GaslessTransaction: txid.Gasless,
	}
	if err := c.post(ctx, resourceURL, confirm, nil); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	// Re-request now that the payment is recorded.
	resp, err = c.get(ctx, resourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var fr fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode file response: %w", err)
	}
	return &FetchResult{File: fr.File, Paid: true, TxID: txid}, nil
}

// DownloadContent streams the unlocked file bytes.
func (c *Client) DownloadContent(ctx context.Context, file FileInfo) (io.ReadCloser, error) {
	resp, err := c.get(ctx, c.baseURL+file.DownloadURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

type linkResponse struct {
	Success     bool               `json:"success"`
	PaymentLink *store.PaymentLink `json:"paymentLink"`
}

type linkConfirmRequest struct {
	TransactionHash    string `json:"transactionHash,omitempty"`
	UserOpHash         string `json:"userOpHash,omitempty"`
	PayerAddress       string `json:"payerAddress"`
	Amount             string `json:"amount"`
	GaslessTransaction bool   `json:"gaslessTransaction,omitempty"`
}

type linkConfirmResponse struct {
	Success bool           `json:"success"`
	Payment *store.Payment `json:"payment"`
	Message string         `json:"message"`
}

// PayLink pays a payment link for its full amount in USDC.
func (c *Client) PayLink(ctx context.Context, slug string) (*store.Payment, error) {
	if c.wallet == nil {
		return nil, ErrNoWallet
	}

	linkURL := c.baseURL + "/api/payment-links/" + slug

	resp, err := c.get(ctx, linkURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var lr linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode payment link: %w", err)
	}
	if lr.PaymentLink == nil {
		return nil, errors.New("response missing payment link")
	}
	link := lr.PaymentLink

	logging.Internal.Printf("paying link %q: %s USDC to %s", link.Slug, link.Amount, link.RecipientAddress)

	txid, err := c.wallet.Initiate(ctx, link.Amount, "USDC", link.RecipientAddress)
	if err != nil {
		return nil, fmt.Errorf("broadcast payment: %w", err)
	}

	confirm := linkConfirmRequest{
		TransactionHash:    txid.TransactionHash,
		UserOpHash:         txid.UserOpHash,
		PayerAddress:       c.wallet.Address(),
		Amount:             link.Amount,
		GaslessTransaction: txid.Gasless,
	}
	var cr linkConfirmResponse
	if err := c.post(ctx, linkURL, confirm, &cr); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	return cr.Payment, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// statusError turns a non-OK response into an error carrying the server's
// message when one is present.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if resp.Body != nil {
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	}
	if body.Error != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
