package protocol

import "solation/core/types"

// MaxBasisPoints is the denominator for every basis-point quantity.
const MaxBasisPoints = 10_000

// GlobalState holds protocol-wide configuration owned by the authority key.
type GlobalState struct {
	Authority      types.Address
	Treasury       types.Address
	ProtocolFeeBps uint16
	Paused         bool
}

// AssetConfig describes an optionable asset and the oracle feed that prices it.
type AssetConfig struct {
	AssetMint        types.Address
	QuoteMint        types.Address
	FeedID           [32]byte
	MinStrikeBps     uint16
	MaxStrikeBps     uint16
	MinExpirySeconds uint64
	MaxExpirySeconds uint64
	Decimals         uint8
	Enabled          bool
}

// GlobalUpdate lists optional changes to GlobalState. Nil fields are left as is.
type GlobalUpdate struct {
	Authority      *types.Address
	Treasury       *types.Address
	ProtocolFeeBps *uint16
	Paused         *bool
}

// AssetUpdate lists optional changes to an AssetConfig.
type AssetUpdate struct {
	Enabled          *bool
	MinStrikeBps     *uint16
	MaxStrikeBps     *uint16
	MinExpirySeconds *uint64
	MaxExpirySeconds *uint64
}

func (c *AssetConfig) validate() error {
	if c.AssetMint.IsZero() || c.QuoteMint.IsZero() {
		return ErrInvalidAsset
	}
	if c.MinStrikeBps > c.MaxStrikeBps {
		return ErrInvalidStrikeRange
	}
	if c.MinExpirySeconds > c.MaxExpirySeconds {
		return ErrInvalidExpiryRange
	}
	return nil
}
