package wallet

import (
	"context"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"linkpay/internal/logging"
)

// SimulatedWallet implements Broadcaster with a direct transfer: native
// value for ETH, an ERC-20 transfer call to the USDC contract for USDC.
// The broadcast itself is simulated; the identifier is derived from the
// encoded transaction fields.
type SimulatedWallet struct {
	mu      sync.Mutex
	address common.Address
	nonce   uint64
}

// NewSimulatedWallet creates a wallet for the given payer address.
func NewSimulatedWallet(address string) (*SimulatedWallet, error) {
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidDestination
	}
	return &SimulatedWallet{address: common.HexToAddress(address)}, nil
}

func (w *SimulatedWallet) Address() string {
	return w.address.Hex()
}

func (w *SimulatedWallet) Initiate(ctx context.Context, amount, currency, destination string) (*TxID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(destination) {
		return nil, ErrInvalidDestination
	}
	dest := common.HexToAddress(destination)

	var (
		to       common.Address
		value    *big.Int
		calldata []byte
	)

	switch currency {
	case "ETH":
		units, err := parseUnits(amount, 18)
		if err != nil {
			return nil, err
		}
		to = dest
		value = units
	case "USDC":
		units, err := parseUnits(amount, usdcDecimals)
		if err != nil {
			return nil, err
		}
		data, err := encodeTransfer(dest, units)
		if err != nil {
			return nil, err
		}
		to = common.HexToAddress(USDCContractAddress)
		value = big.NewInt(0)
		calldata = data
	default:
		return nil, ErrUnsupportedCurrency
	}

	hash := w.hashBroadcast(to, value, calldata)
	logging.Wallet.Printf("sent %s %s to %s: %s", amount, currency, destination, hash)

	return &TxID{TransactionHash: hash}, nil
}

// hashBroadcast derives the simulated transaction hash from the fields a
// real signed transaction would commit to, plus a per-wallet nonce so
// repeated identical transfers get distinct identifiers.
func (w *SimulatedWallet) hashBroadcast(to common.Address, value *big.Int, calldata []byte) string {
	w.mu.Lock()
	nonce := w.nonce
	w.nonce++
	w.mu.Unlock()

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)

	return crypto.Keccak256Hash(
		w.address.Bytes(),
		to.Bytes(),
		value.Bytes(),
		calldata,
		nonceBytes[:],
	).Hex()
}
