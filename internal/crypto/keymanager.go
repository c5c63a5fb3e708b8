// Package crypto resolves the liquidator's signing key, signs its
// transactions, and authenticates private-relay requests.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyFileVersion   = 2
)

// keyFile is the on-disk format for an encrypted signing key. Address is
// stored in the clear so a wrong password is told apart from a wrong file.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig carries the information LoadKey needs to resolve a private key.
type KeyConfig struct {
	// RawPrivateKey is the hex-encoded private key (with or without 0x prefix).
	RawPrivateKey string
	// EncryptedKeyPath is the path to a JSON file produced by EncryptKey.
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptKey seals a signing key with a password (PBKDF2-HMAC-SHA256 into
// AES-256-GCM) and returns the JSON key file.
func EncryptKey(pk *ecdsa.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)
	// The address is bound as additional data so it cannot be swapped.
	ciphertext := gcm.Seal(nil, nonce, ethcrypto.FromECDSA(pk), addr.Bytes())

	return json.MarshalIndent(keyFile{
		Version:    keyFileVersion,
		Address:    addr.Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey.
func DecryptKey(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("crypto: parsing key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", kf.Version)
	}
	if !common.IsHexAddress(kf.Address) {
		return nil, fmt.Errorf("crypto: key file address %q is invalid", kf.Address)
	}
	addr := common.HexToAddress(kf.Address)

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(kf.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(kf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, addr.Bytes())
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypting key for %s (wrong password?): %w", addr.Hex(), err)
	}

	pk, err := ethcrypto.ToECDSA(plaintext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypted key: %w", err)
	}
	if got := ethcrypto.PubkeyToAddress(pk.PublicKey); got != addr {
		return nil, fmt.Errorf("crypto: key file for %s holds key of %s", addr.Hex(), got.Hex())
	}
	return pk, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves the signing key from the provided configuration.
//
// Resolution order:
//  1. If RawPrivateKey is set, parse it.
//  2. If EncryptedKeyPath is set, read the file and decrypt with KeyPassword.
//  3. Otherwise, return an error.
func LoadKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		pk, err := parseKey(cfg.RawPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("crypto: RawPrivateKey: %w", err)
		}
		return pk, nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return nil, errors.New("crypto: no private key source configured (set RawPrivateKey or EncryptedKeyPath)")
}

func parseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 key: %w", err)
	}
	return pk, nil
}
