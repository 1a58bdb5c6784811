// Package stealth implements an ERC-5564-style dual-key stealth address
// scheme over secp256k1. Every operation is a pure derivation; the
// protocol flow (register meta-address, derive+announce a one-time
// address, scan and claim) lives in the callers.
package stealth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MetaAddressLen is the compressed spending pubkey (33) followed by the
// compressed viewing pubkey (33).
const MetaAddressLen = 66

// ErrMetaAddressFormat reports a meta-address that is not 66 bytes of two
// valid compressed secp256k1 points.
var ErrMetaAddressFormat = errors.New("stealth: malformed meta-address")

// Keys is a freshly generated stealth identity. The spending key controls
// funds; the viewing key only recognizes incoming payments.
type Keys struct {
	SpendingPrivateKey *btcec.PrivateKey
	SpendingPublicKey  *btcec.PublicKey
	ViewingPrivateKey  *btcec.PrivateKey
	ViewingPublicKey   *btcec.PublicKey
}

// GenerateKeys draws two independent secp256k1 key pairs.
func GenerateKeys() (*Keys, error) {
	spend, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("stealth: spending key: %w", err)
	}
	view, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("stealth: viewing key: %w", err)
	}
	return &Keys{
		SpendingPrivateKey: spend,
		SpendingPublicKey:  spend.PubKey(),
		ViewingPrivateKey:  view,
		ViewingPublicKey:   view.PubKey(),
	}, nil
}

// MetaAddress packs the two compressed public keys, spending first.
func (k *Keys) MetaAddress() []byte {
	return NewMetaAddress(k.SpendingPublicKey, k.ViewingPublicKey)
}

// NewMetaAddress concatenates compressed spending and viewing pubkeys.
func NewMetaAddress(spendingPub, viewingPub *btcec.PublicKey) []byte {
	out := make([]byte, 0, MetaAddressLen)
	out = append(out, spendingPub.SerializeCompressed()...)
	out = append(out, viewingPub.SerializeCompressed()...)
	return out
}

// ParseMetaAddress splits a 66-byte meta-address back into its two points.
// The fixed-offset slice round-trips exactly with NewMetaAddress.
func ParseMetaAddress(meta []byte) (spendingPub, viewingPub *btcec.PublicKey, err error) {
	if len(meta) != MetaAddressLen {
		return nil, nil, fmt.Errorf("%w: length %d, want %d", ErrMetaAddressFormat, len(meta), MetaAddressLen)
	}
	spendingPub, err = btcec.ParsePubKey(meta[:33])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: spending key: %v", ErrMetaAddressFormat, err)
	}
	viewingPub, err = btcec.ParsePubKey(meta[33:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: viewing key: %v", ErrMetaAddressFormat, err)
	}
	return spendingPub, viewingPub, nil
}

// Address is a derived one-time payment target plus the data the sender
// announces on-chain so the recipient can find it.
type Address struct {
	StealthAddress  common.Address
	EphemeralPubKey []byte // 33-byte compressed point
	ViewTag         byte
}

// GenerateAddress derives a fresh one-time address from a recipient's
// meta-address. Each call uses a new ephemeral key, so repeated calls for
// the same recipient never collide.
func GenerateAddress(meta []byte) (*Address, error) {
	spendingPub, viewingPub, err := ParseMetaAddress(meta)
	if err != nil {
		return nil, err
	}
	eph, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("stealth: ephemeral key: %w", err)
	}

	// sender-side ECDH: S = ephemeralPriv * viewingPub
	shared := sharedSecret(eph.Serialize(), viewingPub)
	digest := crypto.Keccak256(shared)
	h := tweakScalar(digest)

	addr := stealthAddressFor(spendingPub, h)
	return &Address{
		StealthAddress:  addr,
		EphemeralPubKey: eph.PubKey().SerializeCompressed(),
		ViewTag:         digest[0],
	}, nil
}

// CheckAddress recomputes the shared secret from the recipient side and
// reports whether announced belongs to these keys. It never returns an
// error: malformed or foreign announcements are simply not ours, and a
// scanner must not abort on them. viewTag, when non-nil, short-circuits
// before the second scalar multiplication.
func CheckAddress(ephemeralPub []byte, viewingPriv *btcec.PrivateKey, spendingPub *btcec.PublicKey, announced common.Address, viewTag *byte) bool {
	if viewingPriv == nil || spendingPub == nil {
		return false
	}
	ephPub, err := btcec.ParsePubKey(ephemeralPub)
	if err != nil {
		return false
	}
	// recipient-side ECDH: S = viewingPriv * ephemeralPub, equal to the
	// sender-side point by commutativity
	shared := sharedSecret(viewingPriv.Serialize(), ephPub)
	digest := crypto.Keccak256(shared)
	if viewTag != nil && digest[0] != *viewTag {
		return false
	}
	addr := stealthAddressFor(spendingPub, tweakScalar(digest))
	return addr == announced
}

// DerivePrivateKey returns (spendingPriv + h) mod n, the key controlling
// the stealth address derived from ephemeralPub. It never leaves the
// recipient's process.
func DerivePrivateKey(viewingPriv, spendingPriv *btcec.PrivateKey, ephemeralPub []byte) (*btcec.PrivateKey, error) {
	ephPub, err := btcec.ParsePubKey(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("stealth: ephemeral pubkey: %w", err)
	}
	shared := sharedSecret(viewingPriv.Serialize(), ephPub)
	h := tweakScalar(crypto.Keccak256(shared))

	n := btcec.S256().N
	d := new(big.Int).SetBytes(spendingPriv.Serialize())
	d.Add(d, h)
	d.Mod(d, n)
	if d.Sign() == 0 {
		return nil, errors.New("stealth: derived key is zero")
	}
	var buf [32]byte
	d.FillBytes(buf[:])
	priv, _ := btcec.PrivKeyFromBytes(buf[:])
	return priv, nil
}

// sharedSecret returns the compressed SEC1 encoding of scalar * point.
// Both sides of the protocol hash this exact encoding.
func sharedSecret(scalar []byte, point *btcec.PublicKey) []byte {
	curve := btcec.S256()
	x, y := curve.ScalarMult(point.X(), point.Y(), scalar)
	return compressPoint(x, y)
}

// tweakScalar reduces a keccak digest into the secp256k1 group order.
func tweakScalar(digest []byte) *big.Int {
	h := new(big.Int).SetBytes(digest)
	return h.Mod(h, btcec.S256().N)
}

// stealthAddressFor computes P' = spendingPub + h*G and its account
// address, keccak256(X || Y)[12:].
func stealthAddressFor(spendingPub *btcec.PublicKey, h *big.Int) common.Address {
	curve := btcec.S256()
	hx, hy := curve.ScalarBaseMult(h.Bytes())
	px, py := curve.Add(spendingPub.X(), spendingPub.Y(), hx, hy)
	return addressFromPoint(px, py)
}

func addressFromPoint(x, y *big.Int) common.Address {
	var xb, yb [32]byte
	x.FillBytes(xb[:])
	y.FillBytes(yb[:])
	return common.BytesToAddress(crypto.Keccak256(xb[:], yb[:])[12:])
}

func compressPoint(x, y *big.Int) []byte {
	out := make([]byte, 33)
	out[0] = 0x02 | byte(y.Bit(0))
	x.FillBytes(out[1:])
	return out
}
