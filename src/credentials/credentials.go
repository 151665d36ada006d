package credentials

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/model"
)

// Credentials holds the resolved signing key and the trading-ledger account
// it acts on. The signer and the account may differ: the account can be a
// vault or sub-account the signer is authorized for.
type Credentials struct {
	PrivateKey *ecdsa.PrivateKey
	// Signer is the address derived from the private key, checksummed.
	Signer common.Address
	// Account is the ledger account address operations target, checksummed.
	Account common.Address
}

// Resolve builds Credentials from explicit flag values, falling back to the
// PRIVATE_KEY and ACCOUNT_ADDRESS environment variables (.env is loaded by
// the CLI before this runs). Empty values count as missing.
func Resolve(flagPrivateKey, flagAddress string) (*Credentials, error) {
	rawKey, err := resolvePrivateKey(flagPrivateKey)
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(rawKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not a valid secp256k1 hex key", model.ErrMissingCredential)
	}

	signer := crypto.PubkeyToAddress(key.PublicKey)
	account, err := resolveAccountAddress(flagAddress, signer)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		PrivateKey: key,
		Signer:     signer,
		Account:    account,
	}

	logger.WithFields(logger.Fields{
		"account": creds.Account.Hex(),
		"signer":  creds.Signer.Hex(),
	}).Debug("Resolved credentials")

	return creds, nil
}

func resolvePrivateKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("PRIVATE_KEY"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("%w: provide --private-key or set PRIVATE_KEY", model.ErrMissingCredential)
}

// resolveAccountAddress picks flag over env; with neither set, the account is
// the signer itself.
func resolveAccountAddress(flagValue string, signer common.Address) (common.Address, error) {
	raw := flagValue
	if raw == "" {
		raw = os.Getenv("ACCOUNT_ADDRESS")
	}
	if raw == "" {
		return signer, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q is not a valid address", model.ErrMissingCredential, raw)
	}
	return common.HexToAddress(raw), nil
}
