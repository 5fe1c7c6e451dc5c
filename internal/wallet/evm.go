package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20TransferJSON = `[{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// encodeTransfer packs an ERC-20 transfer(to, amount) call.
func encodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// parseUnits converts a decimal string to the token's smallest unit,
// e.g. parseUnits("1.50", 6) == 1500000.
func parseUnits(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, ErrInvalidAmount
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: more than %d fraction digits", ErrInvalidAmount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || n.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return n, nil
}
