// Package x402 implements the "402 Payment Required" challenge convention:
// the payment terms ride on X-402-* response headers, duplicated in a JSON
// body for clients that cannot read headers. Challenges carry no signature,
// expiry, or nonce; they describe terms, they do not prove anything.
package x402

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	HeaderAmount      = "X-402-Amount"
	HeaderCurrency    = "X-402-Currency"
	HeaderAddress     = "X-402-Address"
	HeaderDescription = "X-402-Description"
)

// ErrNoChallenge is returned when a response carries no payment challenge.
var ErrNoChallenge = errors.New("no x402 challenge in response")

// PaymentRequest describes the payment a resource demands.
type PaymentRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
}

// Body is the JSON payload of a 402 response.
type Body struct {
	Error string         `json:"error"`
	X402  PaymentRequest `json:"x402"`
}

// WriteChallenge sends a 402 response advertising the payment terms on both
// the X-402-* headers and the JSON body.
func WriteChallenge(w http.ResponseWriter, req PaymentRequest) error {
	description := req.Description
	if description == "" {
		description = "Payment Required"
	}

	h := w.Header()
	h.Set(HeaderAmount, req.Amount)
	h.Set(HeaderCurrency, req.Currency)
	h.Set(HeaderAddress, req.Address)
	h.Set(HeaderDescription, description)
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	return json.NewEncoder(w).Encode(Body{
		Error: "Payment Required",
		X402:  req,
	})
}

// ParseChallenge extracts the payment terms from a 402 response, reading the
// headers first and falling back to the JSON body.
func ParseChallenge(resp *http.Response) (PaymentRequest, error) {
	if resp.StatusCode != http.StatusPaymentRequired {
		return PaymentRequest{}, ErrNoChallenge
	}

	if amount := resp.Header.Get(HeaderAmount); amount != "" {
		return PaymentRequest{
			Amount:      amount,
			Currency:    resp.Header.Get(HeaderCurrency),
			Address:     resp.Header.Get(HeaderAddress),
			Description: resp.Header.Get(HeaderDescription),
		}, nil
	}

	if resp.Body != nil {
		var body Body
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.X402.Amount != "" {
			return body.X402, nil
		}
	}

	return PaymentRequest{}, ErrNoChallenge
}
