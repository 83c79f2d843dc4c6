// Package signer builds transfer digests and recovers secp256k1 signers from
// 65-byte r‖s‖v signatures.
package signer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of an r‖s‖v signature.
const SignatureLength = 65

var ErrInvalidSignature = errors.New("InvalidSignature")

var (
	secp256k1N     = btcec.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return common.BytesToHash(h.Sum(nil))
}

// TransferHash is keccak256(from ‖ token ‖ to ‖ amount ‖ nonce) with amount
// and nonce as 32-byte words.
func TransferHash(from, token, to common.Address, amount *uint256.Int, nonce uint64) common.Hash {
	amt := amount.Bytes32()
	n := uint256.NewInt(nonce).Bytes32()
	return Keccak256(from[:], token[:], to[:], amt[:], n[:])
}

// EthSignedHash wraps h with the personal-message prefix.
func EthSignedHash(h common.Hash) common.Hash {
	return Keccak256([]byte(signedMessagePrefix), h[:])
}

// TransferDigest is the digest an owner signs to authorize a transfer.
func TransferDigest(from, token, to common.Address, amount *uint256.Int, nonce uint64) common.Hash {
	return EthSignedHash(TransferHash(from, token, to, amount, nonce))
}

// PubkeyToAddress derives the account address of pub.
func PubkeyToAddress(pub *btcec.PublicKey) common.Address {
	raw := pub.SerializeUncompressed()
	return common.BytesToAddress(Keccak256(raw[1:]).Bytes()[12:])
}

// Sign produces an r‖s‖v signature with v in {27,28}.
func Sign(key *btcec.PrivateKey, digest common.Hash) ([]byte, error) {
	compact := ecdsa.SignCompact(key, digest[:], false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// Recover returns the address that produced sig over digest. v may be 0/1 or
// 27/28; high-s signatures are rejected.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}
	s := new(big.Int).SetBytes(sig[32:64])
	if s.Sign() == 0 || s.Cmp(secp256k1HalfN) > 0 {
		return common.Address{}, fmt.Errorf("%w: malleable s", ErrInvalidSignature)
	}

	compact := make([]byte, SignatureLength)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubkeyToAddress(pub), nil
}

// Verifier recovers signers through an LRU cache keyed by digest and signature.
type Verifier struct {
	cache *lru.Cache[common.Hash, common.Address]
}

func NewVerifier(size int) (*Verifier, error) {
	cache, err := lru.New[common.Hash, common.Address](size)
	if err != nil {
		return nil, err
	}
	return &Verifier{cache: cache}, nil
}

// Recover is the cached form of the package-level Recover.
func (v *Verifier) Recover(digest common.Hash, sig []byte) (common.Address, error) {
	key := Keccak256(digest[:], sig)
	if addr, ok := v.cache.Get(key); ok {
		return addr, nil
	}
	addr, err := Recover(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	v.cache.Add(key, addr)
	return addr, nil
}

// Verify fails with ErrInvalidSignature unless expected signed digest.
func (v *Verifier) Verify(digest common.Hash, sig []byte, expected common.Address) error {
	addr, err := v.Recover(digest, sig)
	if err != nil {
		return err
	}
	if addr != expected {
		return ErrInvalidSignature
	}
	return nil
}
