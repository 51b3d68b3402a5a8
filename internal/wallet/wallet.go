package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/igwedaniel/dripper/internal/types"
)

// ErrNoKeys is returned when the key file holds no usable key
var ErrNoKeys = errors.New("no private keys found")

// Account is a credential together with its parsed signing key
type Account struct {
	types.WalletCredential
	Key *ecdsa.PrivateKey
}

// Generate creates a fresh random account
func Generate() (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromKey(key), nil
}

// FromHex parses a hex private key, with or without the 0x prefix
func FromHex(raw string) (Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return Account{}, fmt.Errorf("invalid private key: %w", err)
	}
	return fromKey(key), nil
}

func fromKey(key *ecdsa.PrivateKey) Account {
	return Account{
		WalletCredential: types.WalletCredential{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		},
		Key: key,
	}
}

// LoadPrivateKeys reads one hex key per line. Blank lines and # comments
// are skipped; any other malformed line is an error.
func LoadPrivateKeys(path string) ([]Account, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer file.Close()

	var accounts []Account
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		account, err := FromHex(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		accounts = append(accounts, account)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoKeys)
	}
	return accounts, nil
}
