package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RelayAuth signs private-relay request bodies. The key only identifies the
// searcher to the relay and never holds funds.
type RelayAuth struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewRelayAuth parses privateKeyHex, or generates a throwaway key when it is
// empty.
func NewRelayAuth(privateKeyHex string) (*RelayAuth, error) {
	var (
		pk  *ecdsa.PrivateKey
		err error
	)
	if privateKeyHex == "" {
		pk, err = ethcrypto.GenerateKey()
	} else {
		pk, err = parseKey(privateKeyHex)
	}
	if err != nil {
		return nil, fmt.Errorf("crypto/relay: %w", err)
	}
	return &RelayAuth{key: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the relay identity address.
func (r *RelayAuth) Address() common.Address {
	return r.address
}

// Header returns the value of the X-Flashbots-Signature header for body:
// "<address>:<signature>", where the signature is an EIP-191 personal
// signature over the hex keccak256 of the body.
func (r *RelayAuth) Header(body []byte) (string, error) {
	id := ethcrypto.Keccak256Hash(body).Hex()
	sig, err := signDigest(r.key, accounts.TextHash([]byte(id)))
	if err != nil {
		return "", err
	}
	return r.address.Hex() + ":" + sig, nil
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes) with v in {27,28}.
func signDigest(key *ecdsa.PrivateKey, digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return "", fmt.Errorf("crypto/relay: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; personal_sign expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return hexutil.Encode(sig), nil
}
