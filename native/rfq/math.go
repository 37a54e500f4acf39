package rfq

import (
	"math"

	"github.com/holiman/uint256"
)

// CashSecuredPutScale converts strike times size into quote currency units.
const CashSecuredPutScale = 1_000_000

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// satMul multiplies a and b, clamping to MaxUint64 on overflow.
func satMul(a, b uint64) uint64 {
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if !product.IsUint64() {
		return math.MaxUint64
	}
	return product.Uint64()
}

// EscrowAmount returns the collateral a user locks for the strategy.
func EscrowAmount(strategy Strategy, strike, contractSize uint64) uint64 {
	switch strategy {
	case CoveredCall:
		return contractSize
	case CashSecuredPut:
		return satMul(strike, contractSize) / CashSecuredPutScale
	default:
		return 0
	}
}

// SplitBps divides amount so the user receives amount*bps/10000, truncated,
// and the market maker the exact remainder. The intermediate product is
// computed in 256 bits so the result never exceeds amount.
func SplitBps(amount uint64, bps uint16) (user, mm uint64) {
	if bps > MaxBasisPoints {
		bps = MaxBasisPoints
	}
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	product.Div(product, uint256.NewInt(MaxBasisPoints))
	user = product.Uint64()
	return user, amount - user
}

// SettlementAmounts computes the payout legs of an expired position. Price
// equal to strike is out of the money for both strategies.
func SettlementAmounts(strategy Strategy, price, strike, vault uint64) (user, mm uint64, status PositionStatus) {
	switch strategy {
	case CoveredCall:
		if price > strike {
			user = satMul(vault, strike) / price
			return user, vault - user, PositionSettledITM
		}
	case CashSecuredPut:
		if price < strike {
			user = satMul(vault, price) / strike
			return user, vault - user, PositionSettledITM
		}
	}
	return vault, 0, PositionSettledOTM
}
