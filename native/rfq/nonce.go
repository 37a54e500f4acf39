package rfq

import "solation/core/types"

// NonceWindow is the number of nonces tracked above BaseNonce.
const NonceWindow = 256

// NonceTracker is a sliding 256-bit replay window anchored at BaseNonce. Bit i
// of the window lives in Bitmap[i/8] at position i%8.
//
// Nonces below BaseNonce are reported as used even if they were never marked:
// they were evicted by a forward shift and can never be accepted again.
type NonceTracker struct {
	MM        types.Address
	BaseNonce uint64
	Bitmap    [NonceWindow / 8]byte
}

// IsUsed reports whether nonce may no longer be accepted.
func (n *NonceTracker) IsUsed(nonce uint64) bool {
	if nonce < n.BaseNonce {
		return true
	}
	offset := nonce - n.BaseNonce
	if offset >= NonceWindow {
		return false
	}
	return n.Bitmap[offset/8]&(1<<(offset%8)) != 0
}

// MarkUsed records nonce. Stale nonces are ignored. Nonces past the window
// shift it forward just far enough for nonce to occupy the top bit.
func (n *NonceTracker) MarkUsed(nonce uint64) {
	if nonce < n.BaseNonce {
		return
	}
	offset := nonce - n.BaseNonce
	if offset >= NonceWindow {
		n.shift(offset - (NonceWindow - 1))
		offset = NonceWindow - 1
	}
	n.Bitmap[offset/8] |= 1 << (offset % 8)
}

// shift advances the window by k positions, dropping the k lowest bits.
func (n *NonceTracker) shift(k uint64) {
	n.BaseNonce = satAdd(n.BaseNonce, k)
	if k >= NonceWindow {
		n.Bitmap = [NonceWindow / 8]byte{}
		return
	}
	byteShift := int(k / 8)
	bitShift := uint(k % 8)
	var next [NonceWindow / 8]byte
	for i := range next {
		src := i + byteShift
		if src >= len(n.Bitmap) {
			break
		}
		v := n.Bitmap[src] >> bitShift
		if bitShift > 0 && src+1 < len(n.Bitmap) {
			v |= n.Bitmap[src+1] << (8 - bitShift)
		}
		next[i] = v
	}
	n.Bitmap = next
}
