package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"linkpay/internal/logging"
)

// PaymasterWallet implements Broadcaster with a simulated gasless send.
// Under the hood it performs the same ordinary transfer as SimulatedWallet
// and relabels the result as a user operation, matching the stub nature of
// the flow it models. Only USDC is supported: the point of the paymaster
// is paying fees in the transferred token.
type PaymasterWallet struct {
	inner     *SimulatedWallet
	paymaster common.Address
}

// NewPaymasterWallet creates a gasless wallet for the given payer address.
func NewPaymasterWallet(address string) (*PaymasterWallet, error) {
	inner, err := NewSimulatedWallet(address)
	if err != nil {
		return nil, err
	}
	return &PaymasterWallet{
		inner:     inner,
		paymaster: common.HexToAddress(CirclePaymasterAddress),
	}, nil
}

func (w *PaymasterWallet) Address() string {
	return w.inner.Address()
}

func (w *PaymasterWallet) Initiate(ctx context.Context, amount, currency, destination string) (*TxID, error) {
	if currency != "USDC" {
		return nil, ErrUnsupportedCurrency
	}

	sent, err := w.inner.Initiate(ctx, amount, currency, destination)
	if err != nil {
		return nil, err
	}

	userOpHash := crypto.Keccak256Hash(
		common.HexToHash(sent.TransactionHash).Bytes(),
		w.paymaster.Bytes(),
	).Hex()

	logging.Wallet.Printf("user operation %s sponsored by paymaster %s", userOpHash, w.paymaster.Hex())

	return &TxID{UserOpHash: userOpHash, Gasless: true}, nil
}
