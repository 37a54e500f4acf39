package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"solation/core/batch"
	"solation/core/types"
)

// Ed25519ProgramID identifies the host signature-verification primitive inside
// a batch.
var Ed25519ProgramID = programID("ed25519-sigverify")

const (
	// CurrentInstruction marks an offset that points into the instruction's own
	// data. It is the only reference mode supported.
	CurrentInstruction uint16 = 0xFFFF

	ed25519HeaderSize  = 2
	ed25519OffsetsSize = 14
)

var (
	// ErrMalformedInstruction is returned when companion data cannot be parsed.
	ErrMalformedInstruction = errors.New("ed25519: malformed instruction data")
	// ErrSignatureVerification is returned when a bundled signature is invalid.
	ErrSignatureVerification = errors.New("ed25519: signature verification failed")
)

func programID(name string) types.Address {
	var addr types.Address
	copy(addr[:], ethcrypto.Keccak256([]byte("solation/program/"+name)))
	return addr
}

// Ed25519Offsets mirrors the fixed 14-byte little-endian offsets record that
// precedes the payload of each signature.
type Ed25519Offsets struct {
	SignatureOffset           uint16
	SignatureInstructionIndex uint16
	PublicKeyOffset           uint16
	PublicKeyInstructionIndex uint16
	MessageDataOffset         uint16
	MessageDataSize           uint16
	MessageInstructionIndex   uint16
}

// Ed25519Entry is one signature extracted from an instruction.
type Ed25519Entry struct {
	PublicKey types.Address
	Signature []byte
	Message   []byte
}

// NewEd25519Instruction builds a single-signature companion instruction in the
// layout: count | padding | offsets | pubkey | signature | message.
func NewEd25519Instruction(key *PrivateKey, msg []byte) batch.Instruction {
	pub := key.PubKey()
	sig := key.Sign(msg)
	return EncodeEd25519Instruction(pub, sig[:], msg)
}

// EncodeEd25519Instruction assembles instruction data from its raw parts.
func EncodeEd25519Instruction(pub types.Address, sig []byte, msg []byte) batch.Instruction {
	pubOffset := ed25519HeaderSize + ed25519OffsetsSize
	sigOffset := pubOffset + types.AddressLength
	msgOffset := sigOffset + len(sig)

	data := make([]byte, msgOffset+len(msg))
	data[0] = 1
	offsets := Ed25519Offsets{
		SignatureOffset:           uint16(sigOffset),
		SignatureInstructionIndex: CurrentInstruction,
		PublicKeyOffset:           uint16(pubOffset),
		PublicKeyInstructionIndex: CurrentInstruction,
		MessageDataOffset:         uint16(msgOffset),
		MessageDataSize:           uint16(len(msg)),
		MessageInstructionIndex:   CurrentInstruction,
	}
	offsets.put(data[ed25519HeaderSize:])
	copy(data[pubOffset:], pub[:])
	copy(data[sigOffset:], sig)
	copy(data[msgOffset:], msg)
	return batch.Instruction{ProgramID: Ed25519ProgramID, Data: data}
}

func (o Ed25519Offsets) put(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], o.SignatureOffset)
	binary.LittleEndian.PutUint16(buf[2:], o.SignatureInstructionIndex)
	binary.LittleEndian.PutUint16(buf[4:], o.PublicKeyOffset)
	binary.LittleEndian.PutUint16(buf[6:], o.PublicKeyInstructionIndex)
	binary.LittleEndian.PutUint16(buf[8:], o.MessageDataOffset)
	binary.LittleEndian.PutUint16(buf[10:], o.MessageDataSize)
	binary.LittleEndian.PutUint16(buf[12:], o.MessageInstructionIndex)
}

func readOffsets(buf []byte) Ed25519Offsets {
	return Ed25519Offsets{
		SignatureOffset:           binary.LittleEndian.Uint16(buf[0:]),
		SignatureInstructionIndex: binary.LittleEndian.Uint16(buf[2:]),
		PublicKeyOffset:           binary.LittleEndian.Uint16(buf[4:]),
		PublicKeyInstructionIndex: binary.LittleEndian.Uint16(buf[6:]),
		MessageDataOffset:         binary.LittleEndian.Uint16(buf[8:]),
		MessageDataSize:           binary.LittleEndian.Uint16(buf[10:]),
		MessageInstructionIndex:   binary.LittleEndian.Uint16(buf[12:]),
	}
}

// ParseEd25519Instruction returns the claimed signature count and every entry
// the offsets describe. Offsets must reference the instruction's own data.
func ParseEd25519Instruction(data []byte) (int, []Ed25519Entry, error) {
	if len(data) < ed25519HeaderSize {
		return 0, nil, ErrMalformedInstruction
	}
	count := int(data[0])
	if len(data) < ed25519HeaderSize+count*ed25519OffsetsSize {
		return count, nil, ErrMalformedInstruction
	}
	entries := make([]Ed25519Entry, 0, count)
	for i := 0; i < count; i++ {
		start := ed25519HeaderSize + i*ed25519OffsetsSize
		off := readOffsets(data[start : start+ed25519OffsetsSize])
		if off.SignatureInstructionIndex != CurrentInstruction ||
			off.PublicKeyInstructionIndex != CurrentInstruction ||
			off.MessageInstructionIndex != CurrentInstruction {
			return count, nil, fmt.Errorf("%w: cross-instruction offsets", ErrMalformedInstruction)
		}
		pubEnd := int(off.PublicKeyOffset) + types.AddressLength
		sigEnd := int(off.SignatureOffset) + ed25519.SignatureSize
		msgEnd := int(off.MessageDataOffset) + int(off.MessageDataSize)
		if pubEnd > len(data) || sigEnd > len(data) || msgEnd > len(data) {
			return count, nil, ErrMalformedInstruction
		}
		var entry Ed25519Entry
		copy(entry.PublicKey[:], data[off.PublicKeyOffset:pubEnd])
		entry.Signature = append([]byte(nil), data[off.SignatureOffset:sigEnd]...)
		entry.Message = append([]byte(nil), data[off.MessageDataOffset:msgEnd]...)
		entries = append(entries, entry)
	}
	return count, entries, nil
}

// VerifyBatch is the host-side check run before a batch executes: every
// signature carried by an ed25519 instruction must verify. Operations that
// introspect these instructions rely on this having succeeded.
func VerifyBatch(b batch.Batch) error {
	for i, ix := range b {
		if ix.ProgramID != Ed25519ProgramID {
			continue
		}
		count, entries, err := ParseEd25519Instruction(ix.Data)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		if count == 0 {
			return fmt.Errorf("instruction %d: %w: no signatures", i, ErrMalformedInstruction)
		}
		for _, entry := range entries {
			if !Verify(entry.PublicKey, entry.Message, entry.Signature) {
				return fmt.Errorf("instruction %d: %w", i, ErrSignatureVerification)
			}
		}
	}
	return nil
}
