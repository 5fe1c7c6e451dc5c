// Package wallet provides the payment broadcaster used by the client
// orchestrator. Both implementations simulate broadcast: they encode the
// transfer exactly as a real wallet would, then derive a deterministic
// identifier instead of talking to a node. The paymaster variant is a
// relabeled ordinary transfer, not real account abstraction.
package wallet

import (
	"context"
	"errors"
)

// USDC contract address on Base Sepolia.
const USDCContractAddress = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

// Circle Paymaster v0.7 address on Base Sepolia.
const CirclePaymasterAddress = "0x4Fd9098af9ddcB41DA48A1d78F91F1398965addc"

const usdcDecimals = 6

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidDestination  = errors.New("invalid destination address")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// TxID is the identifier produced by a broadcast. Exactly one of the hash
// fields is set, matching how the confirmation endpoints distinguish
// regular from gasless payments.
type TxID struct {
	TransactionHash string
	UserOpHash      string
	Gasless         bool
}

// ID returns whichever hash identifies the broadcast.
func (t *TxID) ID() string {
	if t.TransactionHash != "" {
		return t.TransactionHash
	}
	return t.UserOpHash
}

// Broadcaster initiates a payment and returns its identifier.
type Broadcaster interface {
	// Initiate broadcasts a transfer of amount (decimal string, e.g.
	// "5.00") in the given currency to the destination address.
	Initiate(ctx context.Context, amount, currency, destination string) (*TxID, error)
	// Address returns the payer address.
	Address() string
}
