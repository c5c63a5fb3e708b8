package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the liquidator's key and signs transactions for one chain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	txSigner   types.Signer
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return NewSignerFromKey(pk, chainID), nil
}

// NewSignerFromKey wraps an already parsed key.
func NewSignerFromKey(pk *ecdsa.PrivateKey, chainID int64) *Signer {
	id := big.NewInt(chainID)
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    id,
		txSigner:   types.LatestSignerForChainID(id),
	}
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer signs for.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// SignTx signs tx for the signer's chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.txSigner, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signing tx: %w", err)
	}
	return signed, nil
}

// SubAccount returns the protocol sub-account address with the given id: the
// signer's address with its last byte XORed with id.
func (s *Signer) SubAccount(id int) common.Address {
	return SubAccount(s.address, id)
}

// SubAccount derives sub-account id of primary. Id 0 is the primary itself.
func SubAccount(primary common.Address, id int) common.Address {
	out := primary
	out[common.AddressLength-1] ^= byte(id)
	return out
}
