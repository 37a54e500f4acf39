package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"solation/core/batch"
	"solation/core/types"
	"solation/journal"
	"solation/native/oracle"
	"solation/native/protocol"
	"solation/native/rfq"
)

// QuoteBody is the JSON form of a signed quote.
type QuoteBody struct {
	AssetMint          types.Address `json:"assetMint"`
	QuoteMint          types.Address `json:"quoteMint"`
	Strategy           string        `json:"strategy"`
	StrikePrice        uint64        `json:"strikePrice"`
	PremiumPerContract uint64        `json:"premiumPerContract"`
	ContractSize       uint64        `json:"contractSize"`
	QuoteExpiry        int64         `json:"quoteExpiry"`
	Nonce              uint64        `json:"nonce"`
}

func QuoteBodyFrom(q rfq.Quote) QuoteBody {
	return QuoteBody{
		AssetMint:          q.AssetMint,
		QuoteMint:          q.QuoteMint,
		Strategy:           q.Strategy.String(),
		StrikePrice:        q.StrikePrice,
		PremiumPerContract: q.PremiumPerContract,
		ContractSize:       q.ContractSize,
		QuoteExpiry:        q.QuoteExpiry,
		Nonce:              q.Nonce,
	}
}

func (b QuoteBody) ToQuote() (rfq.Quote, error) {
	strategy, err := rfq.ParseStrategy(b.Strategy)
	if err != nil {
		return rfq.Quote{}, err
	}
	return rfq.Quote{
		AssetMint:          b.AssetMint,
		QuoteMint:          b.QuoteMint,
		Strategy:           strategy,
		StrikePrice:        b.StrikePrice,
		PremiumPerContract: b.PremiumPerContract,
		ContractSize:       b.ContractSize,
		QuoteExpiry:        b.QuoteExpiry,
		Nonce:              b.Nonce,
	}, nil
}

// SubmitIntentRequest carries a signed quote and the batch holding its
// companion ed25519 instruction.
type SubmitIntentRequest struct {
	MM                  types.Address `json:"mm"`
	Quote               QuoteBody     `json:"quote"`
	Signature           string        `json:"signature"`
	SigInstructionIndex int           `json:"sigInstructionIndex"`
	Batch               batch.Batch   `json:"batch"`
}

func (req SubmitIntentRequest) params() (rfq.SubmitParams, error) {
	quote, err := req.Quote.ToQuote()
	if err != nil {
		return rfq.SubmitParams{}, err
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		return rfq.SubmitParams{}, err
	}
	return rfq.SubmitParams{
		MM:                  req.MM,
		Quote:               quote,
		Signature:           sig,
		SigInstructionIndex: req.SigInstructionIndex,
	}, nil
}

func decodeSignature(raw string) ([64]byte, error) {
	var sig [64]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return sig, fmt.Errorf("signature: %w", err)
	}
	if len(decoded) != len(sig) {
		return sig, fmt.Errorf("signature must be %d bytes, got %d", len(sig), len(decoded))
	}
	copy(sig[:], decoded)
	return sig, nil
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type forceContinueRequest struct {
	Reason        string         `json:"reason"`
	PayPremium    bool           `json:"payPremium"`
	PremiumSource *types.Address `json:"premiumSource,omitempty"`
}

type forceSettleRequest struct {
	Reason          string `json:"reason"`
	SettlementPrice uint64 `json:"settlementPrice"`
	UserBps         uint16 `json:"userBps"`
}

type splitRequest struct {
	Reason  string `json:"reason"`
	UserBps uint16 `json:"userBps"`
}

type registerMMRequest struct {
	SigningKey types.Address `json:"signingKey"`
}

type mmActiveRequest struct {
	Active bool `json:"active"`
}

type publishPriceRequest struct {
	FeedID      string `json:"feedId"`
	Price       int64  `json:"price"`
	Confidence  uint64 `json:"confidence"`
	Exponent    int32  `json:"exponent"`
	PublishTime int64  `json:"publishTime"`
}

func (req publishPriceRequest) update() (oracle.PriceUpdate, error) {
	feed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(req.FeedID), "0x"))
	if err != nil || len(feed) != 32 {
		return oracle.PriceUpdate{}, fmt.Errorf("feedId must be 32 hex-encoded bytes")
	}
	update := oracle.PriceUpdate{
		Price:       req.Price,
		Confidence:  req.Confidence,
		Exponent:    req.Exponent,
		PublishTime: req.PublishTime,
	}
	copy(update.FeedID[:], feed)
	return update, nil
}

type assetUpdateRequest struct {
	Enabled          *bool   `json:"enabled,omitempty"`
	MinStrikeBps     *uint16 `json:"minStrikeBps,omitempty"`
	MaxStrikeBps     *uint16 `json:"maxStrikeBps,omitempty"`
	MinExpirySeconds *uint64 `json:"minExpirySeconds,omitempty"`
	MaxExpirySeconds *uint64 `json:"maxExpirySeconds,omitempty"`
}

func (req assetUpdateRequest) update() protocol.AssetUpdate {
	return protocol.AssetUpdate{
		Enabled:          req.Enabled,
		MinStrikeBps:     req.MinStrikeBps,
		MaxStrikeBps:     req.MaxStrikeBps,
		MinExpirySeconds: req.MinExpirySeconds,
		MaxExpirySeconds: req.MaxExpirySeconds,
	}
}

type intentView struct {
	ID             uint64         `json:"id"`
	User           types.Address  `json:"user"`
	MM             types.Address  `json:"mm"`
	Quote          QuoteBody      `json:"quote"`
	Signature      string         `json:"signature"`
	TotalPremium   uint64         `json:"totalPremium"`
	EscrowVault    types.Address  `json:"escrowVault"`
	EscrowMint     types.Address  `json:"escrowMint"`
	EscrowAmount   uint64         `json:"escrowAmount"`
	EscrowReleased bool           `json:"escrowReleased"`
	CreatedAt      int64          `json:"createdAt"`
	FillDeadline   int64          `json:"fillDeadline"`
	Disputant      *types.Address `json:"disputant,omitempty"`
	DisputeReason  string         `json:"disputeReason,omitempty"`
	Status         string         `json:"status"`
}

func newIntentView(i *rfq.Intent) intentView {
	return intentView{
		ID:             i.ID,
		User:           i.User,
		MM:             i.MM,
		Quote:          QuoteBodyFrom(i.Quote()),
		Signature:      hex.EncodeToString(i.Signature[:]),
		TotalPremium:   i.TotalPremium(),
		EscrowVault:    i.EscrowVault,
		EscrowMint:     i.EscrowMint,
		EscrowAmount:   i.EscrowAmount,
		EscrowReleased: i.EscrowReleased,
		CreatedAt:      i.CreatedAt,
		FillDeadline:   i.FillDeadline,
		Disputant:      i.Disputant,
		DisputeReason:  i.DisputeReason,
		Status:         i.Status.String(),
	}
}

type positionView struct {
	ID               uint64        `json:"id"`
	IntentID         uint64        `json:"intentId"`
	User             types.Address `json:"user"`
	MM               types.Address `json:"mm"`
	AssetMint        types.Address `json:"assetMint"`
	QuoteMint        types.Address `json:"quoteMint"`
	Strategy         string        `json:"strategy"`
	StrikePrice      uint64        `json:"strikePrice"`
	ContractSize     uint64        `json:"contractSize"`
	PremiumPaid      uint64        `json:"premiumPaid"`
	CreatedAt        int64         `json:"createdAt"`
	ExpiryTimestamp  int64         `json:"expiryTimestamp"`
	CollateralMint   types.Address `json:"collateralMint"`
	CollateralAmount uint64        `json:"collateralAmount"`
	SettlementPrice  *uint64       `json:"settlementPrice,omitempty"`
	UserPayout       uint64        `json:"userPayout"`
	MMPayout         uint64        `json:"mmPayout"`
	SettledAt        int64         `json:"settledAt,omitempty"`
	Status           string        `json:"status"`
}

func newPositionView(p *rfq.Position) positionView {
	return positionView{
		ID:               p.ID,
		IntentID:         p.IntentID,
		User:             p.User,
		MM:               p.MM,
		AssetMint:        p.AssetMint,
		QuoteMint:        p.QuoteMint,
		Strategy:         p.Strategy.String(),
		StrikePrice:      p.StrikePrice,
		ContractSize:     p.ContractSize,
		PremiumPaid:      p.PremiumPaid,
		CreatedAt:        p.CreatedAt,
		ExpiryTimestamp:  p.ExpiryTimestamp,
		CollateralMint:   p.CollateralMint,
		CollateralAmount: p.CollateralAmount,
		SettlementPrice:  p.SettlementPrice,
		UserPayout:       p.UserPayout,
		MMPayout:         p.MMPayout,
		SettledAt:        p.SettledAt,
		Status:           p.Status.String(),
	}
}

type marketMakerView struct {
	Owner        types.Address `json:"owner"`
	SigningKey   types.Address `json:"signingKey"`
	Active       bool          `json:"active"`
	Filled       uint64        `json:"filled"`
	Expired      uint64        `json:"expired"`
	Volume       uint64        `json:"volume"`
	Reputation   uint32        `json:"reputation"`
	FillRate     uint64        `json:"fillRate"`
	RegisteredAt int64         `json:"registeredAt"`
	LastActive   int64         `json:"lastActive"`
}

func newMarketMakerView(m *rfq.MarketMaker) marketMakerView {
	return marketMakerView{
		Owner:        m.Owner,
		SigningKey:   m.SigningKey,
		Active:       m.Active,
		Filled:       m.Filled,
		Expired:      m.Expired,
		Volume:       m.Volume,
		Reputation:   m.Reputation,
		FillRate:     m.FillRate(),
		RegisteredAt: m.RegisteredAt,
		LastActive:   m.LastActive,
	}
}

type nonceTrackerView struct {
	MM        types.Address `json:"mm"`
	BaseNonce uint64        `json:"baseNonce"`
	Bitmap    string        `json:"bitmap"`
}

type resolutionView struct {
	IntentID   uint64 `json:"intentId"`
	Type       string `json:"type"`
	UserAmount uint64 `json:"userAmount"`
	MMAmount   uint64 `json:"mmAmount"`
	Treasury   uint64 `json:"treasury"`
	Status     string `json:"status"`
}

func newResolutionView(r *rfq.Resolution) resolutionView {
	return resolutionView{
		IntentID:   r.IntentID,
		Type:       r.Type,
		UserAmount: r.UserAmount,
		MMAmount:   r.MMAmount,
		Treasury:   r.Treasury,
		Status:     r.Status.String(),
	}
}

type settlementView struct {
	PositionID  uint64 `json:"positionId"`
	Price       uint64 `json:"price"`
	PublishTime int64  `json:"publishTime"`
	UserAmount  uint64 `json:"userAmount"`
	MMAmount    uint64 `json:"mmAmount"`
	Status      string `json:"status"`
}

type assetView struct {
	AssetMint        types.Address `json:"assetMint"`
	QuoteMint        types.Address `json:"quoteMint"`
	FeedID           string        `json:"feedId"`
	MinStrikeBps     uint16        `json:"minStrikeBps"`
	MaxStrikeBps     uint16        `json:"maxStrikeBps"`
	MinExpirySeconds uint64        `json:"minExpirySeconds"`
	MaxExpirySeconds uint64        `json:"maxExpirySeconds"`
	Decimals         uint8         `json:"decimals"`
	Enabled          bool          `json:"enabled"`
}

func newAssetView(a *protocol.AssetConfig) assetView {
	return assetView{
		AssetMint:        a.AssetMint,
		QuoteMint:        a.QuoteMint,
		FeedID:           hex.EncodeToString(a.FeedID[:]),
		MinStrikeBps:     a.MinStrikeBps,
		MaxStrikeBps:     a.MaxStrikeBps,
		MinExpirySeconds: a.MinExpirySeconds,
		MaxExpirySeconds: a.MaxExpirySeconds,
		Decimals:         a.Decimals,
		Enabled:          a.Enabled,
	}
}

type journalView struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	CreatedAt  string            `json:"createdAt"`
}

func newJournalViews(records []journal.Record) []journalView {
	out := make([]journalView, 0, len(records))
	for i := range records {
		attrs, err := records[i].Attrs()
		if err != nil {
			attrs = map[string]string{}
		}
		out = append(out, journalView{
			Sequence:   records[i].Sequence,
			Type:       records[i].Type,
			Attributes: attrs,
			Digest:     records[i].Digest,
			CreatedAt:  records[i].CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out
}
