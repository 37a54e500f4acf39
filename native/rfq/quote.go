package rfq

import (
	"encoding/binary"

	"solation/core/types"
)

// QuoteMessageLen is the size of the signed quote message.
const QuoteMessageLen = 2*types.AddressLength + 1 + 5*8

// Quote holds the terms a market maker signs off-protocol.
type Quote struct {
	AssetMint          types.Address
	QuoteMint          types.Address
	Strategy           Strategy
	StrikePrice        uint64
	PremiumPerContract uint64
	ContractSize       uint64
	QuoteExpiry        int64
	Nonce              uint64
}

// Message returns the canonical bytes signed by the market maker:
// asset | quote | strategy | strike | premium | size | expiry | nonce, with
// integers encoded as 8-byte little endian.
func (q Quote) Message() []byte {
	msg := make([]byte, 0, QuoteMessageLen)
	msg = append(msg, q.AssetMint[:]...)
	msg = append(msg, q.QuoteMint[:]...)
	msg = append(msg, byte(q.Strategy))
	msg = binary.LittleEndian.AppendUint64(msg, q.StrikePrice)
	msg = binary.LittleEndian.AppendUint64(msg, q.PremiumPerContract)
	msg = binary.LittleEndian.AppendUint64(msg, q.ContractSize)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(q.QuoteExpiry))
	msg = binary.LittleEndian.AppendUint64(msg, q.Nonce)
	return msg
}

// SubmitParams carries a signed quote into SubmitIntent.
type SubmitParams struct {
	MM    types.Address
	Quote Quote
	// Signature is the market maker's signature over Quote.Message(). It must
	// match the signature carried by the companion instruction.
	Signature [64]byte
	// SigInstructionIndex locates the companion ed25519 instruction in the
	// submitted batch.
	SigInstructionIndex int
}
