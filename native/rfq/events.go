package rfq

import (
	"strconv"

	"solation/core/types"
)

const (
	EventTypeMMRegistered         = "rfq.mm.registered"
	EventTypeMMSigningKeyUpdated  = "rfq.mm.signing_key_updated"
	EventTypeMMActivityChanged    = "rfq.mm.activity_changed"
	EventTypeIntentCreated        = "rfq.intent.created"
	EventTypeIntentFilled         = "rfq.intent.filled"
	EventTypeIntentCancelled      = "rfq.intent.cancelled"
	EventTypeIntentExpired        = "rfq.intent.expired"
	EventTypeIntentDisputed       = "rfq.intent.disputed"
	EventTypeDisputeResolved      = "rfq.dispute.resolved"
	EventTypeIntentUnwound        = "rfq.intent.unwound"
	EventTypeIntentForceContinued = "rfq.intent.force_continued"
	EventTypeIntentForceSettled   = "rfq.intent.force_settled"
	EventTypeIntentEscrowTreasury = "rfq.intent.escrow_to_treasury"
	EventTypeIntentSplit          = "rfq.intent.split"
	EventTypeEmergencyShutdown    = "rfq.protocol.emergency_shutdown"
	EventTypePositionSettled      = "rfq.position.settled"
)

// Resolution types reported by EventTypeDisputeResolved.
const (
	ResolutionMutualUnwind     = "MUTUAL_UNWIND"
	ResolutionForceContinue    = "FORCE_CONTINUE"
	ResolutionForceSettleNow   = "FORCE_SETTLE_NOW"
	ResolutionEscrowToTreasury = "ESCROW_TO_TREASURY"
)

// ResolutionProportionalSplit renders the resolution type of a split.
func ResolutionProportionalSplit(bps uint16) string {
	return "PROPORTIONAL_SPLIT_" + strconv.FormatUint(uint64(bps), 10) + "bps"
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
func i64(v int64) string  { return strconv.FormatInt(v, 10) }

func newMMEvent(eventType string, m *MarketMaker) *types.Event {
	return types.NewEvent(eventType).
		With("mm", m.Owner.String()).
		With("signingKey", m.SigningKey.String()).
		With("active", strconv.FormatBool(m.Active)).
		With("reputation", strconv.FormatUint(uint64(m.Reputation), 10))
}

func newIntentEvent(eventType string, i *Intent) *types.Event {
	return types.NewEvent(eventType).
		With("intentId", u64(i.ID)).
		With("user", i.User.String()).
		With("mm", i.MM.String()).
		With("status", i.Status.String())
}

func newCreatedEvent(i *Intent) *types.Event {
	return newIntentEvent(EventTypeIntentCreated, i).
		With("asset", i.AssetMint.String()).
		With("strategy", i.Strategy.String()).
		With("strike", u64(i.StrikePrice)).
		With("premium", u64(i.TotalPremium())).
		With("contractSize", u64(i.ContractSize)).
		With("escrowAmount", u64(i.EscrowAmount)).
		With("nonce", u64(i.Nonce)).
		With("fillDeadline", i64(i.FillDeadline))
}

func newFilledEvent(i *Intent, p *Position) *types.Event {
	return newIntentEvent(EventTypeIntentFilled, i).
		With("positionId", u64(p.ID)).
		With("premiumPaid", u64(p.PremiumPaid))
}

func newReleasedEvent(eventType string, i *Intent, returned uint64) *types.Event {
	return newIntentEvent(eventType, i).With("returned", u64(returned))
}

func newDisputedEvent(i *Intent) *types.Event {
	evt := newIntentEvent(EventTypeIntentDisputed, i).With("reason", i.DisputeReason)
	if i.Disputant != nil {
		evt.With("disputant", i.Disputant.String())
	}
	return evt
}

func newResolvedEvent(i *Intent, resolution string, authority types.Address, reason string) *types.Event {
	return newIntentEvent(EventTypeDisputeResolved, i).
		With("resolution", resolution).
		With("resolvedBy", authority.String()).
		With("reason", reason)
}

func newPayoutEvent(eventType string, i *Intent, userAmount, mmAmount uint64) *types.Event {
	return newIntentEvent(eventType, i).
		With("userPayout", u64(userAmount)).
		With("mmPayout", u64(mmAmount))
}

func newShutdownEvent(authority types.Address, reason string, at int64) *types.Event {
	return types.NewEvent(EventTypeEmergencyShutdown).
		With("triggeredBy", authority.String()).
		With("reason", reason).
		With("timestamp", i64(at))
}

func newSettledEvent(p *Position, settler types.Address) *types.Event {
	evt := types.NewEvent(EventTypePositionSettled).
		With("positionId", u64(p.ID)).
		With("intentId", u64(p.IntentID)).
		With("user", p.User.String()).
		With("mm", p.MM.String()).
		With("status", p.Status.String()).
		With("userPayout", u64(p.UserPayout)).
		With("mmPayout", u64(p.MMPayout)).
		With("settledBy", settler.String())
	if p.SettlementPrice != nil {
		evt.With("price", u64(*p.SettlementPrice))
	}
	return evt
}
