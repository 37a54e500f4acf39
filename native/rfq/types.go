package rfq

import (
	"fmt"
	"strings"

	"solation/core/types"
)

// Strategy identifies the option written by the user.
type Strategy uint8

const (
	// CoveredCall locks the underlying asset as collateral.
	CoveredCall Strategy = iota
	// CashSecuredPut locks strike value in the quote currency.
	CashSecuredPut
)

func (s Strategy) Valid() bool { return s == CoveredCall || s == CashSecuredPut }

func (s Strategy) String() string {
	switch s {
	case CoveredCall:
		return "COVERED_CALL"
	case CashSecuredPut:
		return "CASH_SECURED_PUT"
	default:
		return fmt.Sprintf("STRATEGY_%d", uint8(s))
	}
}

// ParseStrategy accepts the canonical names case-insensitively.
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "COVERED_CALL", "COVEREDCALL", "CALL":
		return CoveredCall, nil
	case "CASH_SECURED_PUT", "CASHSECUREDPUT", "PUT":
		return CashSecuredPut, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", v)
	}
}

// IntentStatus enumerates the lifecycle states of an intent.
type IntentStatus uint8

const (
	IntentPending IntentStatus = iota
	IntentFilled
	IntentCancelled
	IntentExpired
	IntentDisputed
	IntentResolvedToUser
	IntentResolvedSplit
)

func (s IntentStatus) String() string {
	switch s {
	case IntentPending:
		return "PENDING"
	case IntentFilled:
		return "FILLED"
	case IntentCancelled:
		return "CANCELLED"
	case IntentExpired:
		return "EXPIRED"
	case IntentDisputed:
		return "DISPUTED"
	case IntentResolvedToUser:
		return "RESOLVED_TO_USER"
	case IntentResolvedSplit:
		return "RESOLVED_SPLIT"
	default:
		return fmt.Sprintf("STATUS_%d", uint8(s))
	}
}

// PositionStatus enumerates the lifecycle states of a position.
type PositionStatus uint8

const (
	PositionActive PositionStatus = iota
	PositionSettledITM
	PositionSettledOTM
)

func (s PositionStatus) String() string {
	switch s {
	case PositionActive:
		return "ACTIVE"
	case PositionSettledITM:
		return "SETTLED_ITM"
	case PositionSettledOTM:
		return "SETTLED_OTM"
	default:
		return fmt.Sprintf("STATUS_%d", uint8(s))
	}
}

// MarketMaker is the registry record of a liquidity provider.
type MarketMaker struct {
	Owner        types.Address
	SigningKey   types.Address
	Active       bool
	Filled       uint64
	Expired      uint64
	Volume       uint64
	Reputation   uint32
	RegisteredAt int64
	LastActive   int64
}

// FillRate returns the percentage of resolved intents the MM filled. A market
// maker without history reports 100.
func (m *MarketMaker) FillRate() uint64 {
	total := m.Filled + m.Expired
	if total == 0 || total < m.Filled {
		return 100
	}
	return m.Filled * 100 / total
}

func (m *MarketMaker) recordFill(volume uint64, now int64) {
	m.Filled = satAdd(m.Filled, 1)
	m.Volume = satAdd(m.Volume, volume)
	if m.Reputation < ^uint32(0) {
		m.Reputation++
	}
	m.LastActive = now
}

func (m *MarketMaker) recordExpiry(now int64) {
	m.Expired = satAdd(m.Expired, 1)
	if m.Reputation > ReputationPenalty {
		m.Reputation -= ReputationPenalty
	} else {
		m.Reputation = 0
	}
	m.LastActive = now
}

// Intent is a user's binding commitment to a signed quote.
type Intent struct {
	ID                 uint64
	User               types.Address
	MM                 types.Address
	AssetMint          types.Address
	QuoteMint          types.Address
	Strategy           Strategy
	StrikePrice        uint64
	PremiumPerContract uint64
	ContractSize       uint64
	QuoteExpiry        int64
	Signature          [64]byte
	Nonce              uint64
	EscrowVault        types.Address
	EscrowMint         types.Address
	EscrowAmount       uint64
	EscrowReleased     bool
	CreatedAt          int64
	FillDeadline       int64
	Disputant          *types.Address
	DisputeReason      string
	Status             IntentStatus
}

// Quote reconstructs the signed terms of the intent.
func (i *Intent) Quote() Quote {
	return Quote{
		AssetMint:          i.AssetMint,
		QuoteMint:          i.QuoteMint,
		Strategy:           i.Strategy,
		StrikePrice:        i.StrikePrice,
		PremiumPerContract: i.PremiumPerContract,
		ContractSize:       i.ContractSize,
		QuoteExpiry:        i.QuoteExpiry,
		Nonce:              i.Nonce,
	}
}

// TotalPremium is premium per contract times size, saturating.
func (i *Intent) TotalPremium() uint64 {
	return satMul(i.PremiumPerContract, i.ContractSize)
}

// Resolvable reports whether an owner override may act on the intent.
func (i *Intent) Resolvable() bool {
	return (i.Status == IntentPending || i.Status == IntentDisputed) && !i.EscrowReleased
}

// Position is the active option created by a fill.
type Position struct {
	ID                 uint64
	IntentID           uint64
	User               types.Address
	MM                 types.Address
	AssetMint          types.Address
	QuoteMint          types.Address
	Strategy           Strategy
	StrikePrice        uint64
	PremiumPerContract uint64
	ContractSize       uint64
	PremiumPaid        uint64
	CreatedAt          int64
	ExpiryTimestamp    int64
	UserVault          types.Address
	MMVault            types.Address
	CollateralMint     types.Address
	CollateralAmount   uint64
	SettlementPrice    *uint64
	UserPayout         uint64
	MMPayout           uint64
	SettledAt          int64
	Status             PositionStatus
}

// Settlement summarises a completed position settlement.
type Settlement struct {
	PositionID  uint64
	Price       uint64
	PublishTime int64
	UserAmount  uint64
	MMAmount    uint64
	Status      PositionStatus
}

// Resolution summarises the transfers made by an owner override.
type Resolution struct {
	IntentID   uint64
	Type       string
	UserAmount uint64
	MMAmount   uint64
	Treasury   uint64
	Status     IntentStatus
}
