package rfq

import (
	"bytes"
	"errors"
	"fmt"

	"solation/core/batch"
	"solation/core/types"
	"solation/crypto"
)

// verifyQuoteSignature checks that the ed25519 instruction at index proves
// signingKey signed message with signature. The cryptographic check itself
// belongs to the host primitive; this function only confirms that the right
// key and the right bytes were the ones verified.
func verifyQuoteSignature(b batch.Batch, index int, signingKey types.Address, message []byte, signature [64]byte) error {
	ix, ok := b.At(index)
	if !ok || ix.ProgramID != crypto.Ed25519ProgramID {
		return ErrInvalidSignature
	}
	if len(ix.Data) == 0 || ix.Data[0] != 1 {
		return ErrInvalidSignature
	}
	if err := crypto.VerifyBatch(b); err != nil {
		if errors.Is(err, crypto.ErrSignatureVerification) {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedSignatureData, err)
	}
	_, entries, err := crypto.ParseEd25519Instruction(ix.Data)
	if err != nil || len(entries) != 1 {
		return ErrMalformedSignatureData
	}
	entry := entries[0]
	if entry.PublicKey != signingKey {
		return ErrSigningKeyMismatch
	}
	if !bytes.Equal(entry.Message, message) {
		return ErrInvalidSignature
	}
	if !bytes.Equal(entry.Signature, signature[:]) {
		return ErrInvalidSignature
	}
	return nil
}
