package rfq

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"solation/core/state"
	"solation/core/types"
)

var (
	mmPrefix        = []byte("rfq/mm/")
	noncePrefix     = []byte("rfq/nonce/")
	intentPrefix    = []byte("rfq/intent/")
	positionPrefix  = []byte("rfq/position/")
	intentSeqKey    = []byte("rfq/intent-seq")
	openIntentsKey  = []byte("rfq/open")
	escrowSeedLabel = []byte("rfq/escrow")
)

// ProgramAddress owns every intent escrow vault. Transfers out of a vault are
// authorised by the engine acting as this address.
var ProgramAddress = func() types.Address {
	var addr types.Address
	copy(addr[:], ethcrypto.Keccak256([]byte("solation/program/rfq")))
	return addr
}()

// EscrowAddress derives the vault holding the collateral of intent id.
func EscrowAddress(id uint64) types.Address {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], id)
	var addr types.Address
	copy(addr[:], ethcrypto.Keccak256(escrowSeedLabel, le[:]))
	return addr
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func keyWith(prefix []byte, suffix []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(suffix))
	out = append(out, prefix...)
	return append(out, suffix...)
}

func mmKey(owner types.Address) []byte    { return keyWith(mmPrefix, owner[:]) }
func nonceKey(owner types.Address) []byte { return keyWith(noncePrefix, owner[:]) }
func intentKey(id uint64) []byte          { return keyWith(intentPrefix, idBytes(id)) }
func positionKey(id uint64) []byte        { return keyWith(positionPrefix, idBytes(id)) }

// Records are RLP encoded, which has no signed integers or optional fields.
// Timestamps are stored as their two's complement bits and optional values as
// a presence flag plus value.

type storedMarketMaker struct {
	Owner        types.Address
	SigningKey   types.Address
	Active       bool
	Filled       uint64
	Expired      uint64
	Volume       uint64
	Reputation   uint32
	RegisteredAt uint64
	LastActive   uint64
}

func newStoredMarketMaker(m *MarketMaker) *storedMarketMaker {
	return &storedMarketMaker{
		Owner:        m.Owner,
		SigningKey:   m.SigningKey,
		Active:       m.Active,
		Filled:       m.Filled,
		Expired:      m.Expired,
		Volume:       m.Volume,
		Reputation:   m.Reputation,
		RegisteredAt: uint64(m.RegisteredAt),
		LastActive:   uint64(m.LastActive),
	}
}

func (s *storedMarketMaker) toMarketMaker() *MarketMaker {
	return &MarketMaker{
		Owner:        s.Owner,
		SigningKey:   s.SigningKey,
		Active:       s.Active,
		Filled:       s.Filled,
		Expired:      s.Expired,
		Volume:       s.Volume,
		Reputation:   s.Reputation,
		RegisteredAt: int64(s.RegisteredAt),
		LastActive:   int64(s.LastActive),
	}
}

type storedIntent struct {
	ID                 uint64
	User               types.Address
	MM                 types.Address
	AssetMint          types.Address
	QuoteMint          types.Address
	Strategy           uint8
	StrikePrice        uint64
	PremiumPerContract uint64
	ContractSize       uint64
	QuoteExpiry        uint64
	Signature          [64]byte
	Nonce              uint64
	EscrowVault        types.Address
	EscrowMint         types.Address
	EscrowAmount       uint64
	EscrowReleased     bool
	CreatedAt          uint64
	FillDeadline       uint64
	HasDisputant       bool
	Disputant          types.Address
	DisputeReason      string
	Status             uint8
}

func newStoredIntent(i *Intent) *storedIntent {
	rec := &storedIntent{
		ID:                 i.ID,
		User:               i.User,
		MM:                 i.MM,
		AssetMint:          i.AssetMint,
		QuoteMint:          i.QuoteMint,
		Strategy:           uint8(i.Strategy),
		StrikePrice:        i.StrikePrice,
		PremiumPerContract: i.PremiumPerContract,
		ContractSize:       i.ContractSize,
		QuoteExpiry:        uint64(i.QuoteExpiry),
		Signature:          i.Signature,
		Nonce:              i.Nonce,
		EscrowVault:        i.EscrowVault,
		EscrowMint:         i.EscrowMint,
		EscrowAmount:       i.EscrowAmount,
		EscrowReleased:     i.EscrowReleased,
		CreatedAt:          uint64(i.CreatedAt),
		FillDeadline:       uint64(i.FillDeadline),
		DisputeReason:      i.DisputeReason,
		Status:             uint8(i.Status),
	}
	if i.Disputant != nil {
		rec.HasDisputant = true
		rec.Disputant = *i.Disputant
	}
	return rec
}

func (s *storedIntent) toIntent() *Intent {
	out := &Intent{
		ID:                 s.ID,
		User:               s.User,
		MM:                 s.MM,
		AssetMint:          s.AssetMint,
		QuoteMint:          s.QuoteMint,
		Strategy:           Strategy(s.Strategy),
		StrikePrice:        s.StrikePrice,
		PremiumPerContract: s.PremiumPerContract,
		ContractSize:       s.ContractSize,
		QuoteExpiry:        int64(s.QuoteExpiry),
		Signature:          s.Signature,
		Nonce:              s.Nonce,
		EscrowVault:        s.EscrowVault,
		EscrowMint:         s.EscrowMint,
		EscrowAmount:       s.EscrowAmount,
		EscrowReleased:     s.EscrowReleased,
		CreatedAt:          int64(s.CreatedAt),
		FillDeadline:       int64(s.FillDeadline),
		DisputeReason:      s.DisputeReason,
		Status:             IntentStatus(s.Status),
	}
	if s.HasDisputant {
		disputant := s.Disputant
		out.Disputant = &disputant
	}
	return out
}

type storedPosition struct {
	ID                 uint64
	IntentID           uint64
	User               types.Address
	MM                 types.Address
	AssetMint          types.Address
	QuoteMint          types.Address
	Strategy           uint8
	StrikePrice        uint64
	PremiumPerContract uint64
	ContractSize       uint64
	PremiumPaid        uint64
	CreatedAt          uint64
	ExpiryTimestamp    uint64
	UserVault          types.Address
	MMVault            types.Address
	CollateralMint     types.Address
	CollateralAmount   uint64
	Settled            bool
	SettlementPrice    uint64
	UserPayout         uint64
	MMPayout           uint64
	SettledAt          uint64
	Status             uint8
}

func newStoredPosition(p *Position) *storedPosition {
	rec := &storedPosition{
		ID:                 p.ID,
		IntentID:           p.IntentID,
		User:               p.User,
		MM:                 p.MM,
		AssetMint:          p.AssetMint,
		QuoteMint:          p.QuoteMint,
		Strategy:           uint8(p.Strategy),
		StrikePrice:        p.StrikePrice,
		PremiumPerContract: p.PremiumPerContract,
		ContractSize:       p.ContractSize,
		PremiumPaid:        p.PremiumPaid,
		CreatedAt:          uint64(p.CreatedAt),
		ExpiryTimestamp:    uint64(p.ExpiryTimestamp),
		UserVault:          p.UserVault,
		MMVault:            p.MMVault,
		CollateralMint:     p.CollateralMint,
		CollateralAmount:   p.CollateralAmount,
		UserPayout:         p.UserPayout,
		MMPayout:           p.MMPayout,
		SettledAt:          uint64(p.SettledAt),
		Status:             uint8(p.Status),
	}
	if p.SettlementPrice != nil {
		rec.Settled = true
		rec.SettlementPrice = *p.SettlementPrice
	}
	return rec
}

func (s *storedPosition) toPosition() *Position {
	out := &Position{
		ID:                 s.ID,
		IntentID:           s.IntentID,
		User:               s.User,
		MM:                 s.MM,
		AssetMint:          s.AssetMint,
		QuoteMint:          s.QuoteMint,
		Strategy:           Strategy(s.Strategy),
		StrikePrice:        s.StrikePrice,
		PremiumPerContract: s.PremiumPerContract,
		ContractSize:       s.ContractSize,
		PremiumPaid:        s.PremiumPaid,
		CreatedAt:          int64(s.CreatedAt),
		ExpiryTimestamp:    int64(s.ExpiryTimestamp),
		UserVault:          s.UserVault,
		MMVault:            s.MMVault,
		CollateralMint:     s.CollateralMint,
		CollateralAmount:   s.CollateralAmount,
		UserPayout:         s.UserPayout,
		MMPayout:           s.MMPayout,
		SettledAt:          int64(s.SettledAt),
		Status:             PositionStatus(s.Status),
	}
	if s.Settled {
		price := s.SettlementPrice
		out.SettlementPrice = &price
	}
	return out
}

// store groups the record accessors used inside one transaction.
type store struct {
	tx *state.Tx
}

func (s store) marketMaker(owner types.Address) (*MarketMaker, error) {
	var rec storedMarketMaker
	ok, err := s.tx.KVGet(mmKey(owner), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMMNotRegistered
	}
	return rec.toMarketMaker(), nil
}

func (s store) putMarketMaker(m *MarketMaker) error {
	return s.tx.KVPut(mmKey(m.Owner), newStoredMarketMaker(m))
}

func (s store) nonceTracker(owner types.Address) (*NonceTracker, error) {
	tracker := &NonceTracker{MM: owner}
	if _, err := s.tx.KVGet(nonceKey(owner), tracker); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (s store) putNonceTracker(n *NonceTracker) error {
	return s.tx.KVPut(nonceKey(n.MM), n)
}

func (s store) intent(id uint64) (*Intent, error) {
	var rec storedIntent
	ok, err := s.tx.KVGet(intentKey(id), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIntentNotFound
	}
	return rec.toIntent(), nil
}

func (s store) putIntent(i *Intent) error {
	if err := s.tx.KVPut(intentKey(i.ID), newStoredIntent(i)); err != nil {
		return err
	}
	if i.Resolvable() {
		return s.tx.KVAppend(openIntentsKey, idBytes(i.ID))
	}
	return s.tx.KVRemove(openIntentsKey, idBytes(i.ID))
}

func (s store) position(id uint64) (*Position, error) {
	var rec storedPosition
	ok, err := s.tx.KVGet(positionKey(id), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	return rec.toPosition(), nil
}

func (s store) putPosition(p *Position) error {
	return s.tx.KVPut(positionKey(p.ID), newStoredPosition(p))
}

func (s store) nextIntentID() (uint64, error) {
	var seq uint64
	if _, err := s.tx.KVGet(intentSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := s.tx.KVPut(intentSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s store) openIntentIDs() ([]uint64, error) {
	list, err := s.tx.KVGetList(openIntentsKey)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(list))
	for _, raw := range list {
		if len(raw) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(raw))
	}
	return ids, nil
}
