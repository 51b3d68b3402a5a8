package wallet

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const hardhatKey0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	require.NotEqual(t, a.Address, b.Address)
	require.Len(t, a.PrivateKey, 66)

	again, err := FromHex(a.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, a.Address, again.Address)
}

func TestFromHex(t *testing.T) {
	account, err := FromHex(hardhatKey0)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), account.Address)
	require.Equal(t, hardhatKey0, account.PrivateKey)

	noPrefix, err := FromHex(hardhatKey0[2:])
	require.NoError(t, err)
	require.Equal(t, account.Address, noPrefix.Address)

	_, err = FromHex("0x1234")
	require.Error(t, err)
}

func TestLoadPrivateKeys(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "pk.txt")
	content := "# sender keys\n" + hardhatKey0 + "\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	accounts, err := LoadPrivateKeys(path)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0600))
	_, err = LoadPrivateKeys(empty)
	require.ErrorIs(t, err, ErrNoKeys)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte(hardhatKey0+"\nnot-a-key\n"), 0600))
	_, err = LoadPrivateKeys(bad)
	require.ErrorContains(t, err, "line 2")

	_, err = LoadPrivateKeys(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestParseEther(t *testing.T) {
	wei, err := ParseEther("0.01")
	require.NoError(t, err)
	require.Equal(t, "10000000000000000", wei.String())

	wei, err = ParseEther("1")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", wei.String())

	gwei, err := ParseGwei("61.5")
	require.NoError(t, err)
	require.Equal(t, "61500000000", gwei.String())

	for _, bad := range []string{"", "abc", "-1", "0.0000000000000000001"} {
		_, err := ParseEther(bad)
		require.Error(t, err, "amount %q", bad)
	}
}

func TestFormatEther(t *testing.T) {
	require.Equal(t, "0.5", FormatEther(big.NewInt(500_000_000_000_000_000)))
	require.Equal(t, "0", FormatEther(nil))
	require.Equal(t, "0.01", FormatEther(big.NewInt(10_000_000_000_000_000)))
}

type stubBalances struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	fail     common.Address
	calls    int
}

func (s *stubBalances) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if addr == s.fail {
		return nil, errors.New("rpc down")
	}
	return s.balances[addr], nil
}

func TestSelectSender(t *testing.T) {
	var accounts []Account
	balances := map[common.Address]*big.Int{}
	for i := 0; i < 5; i++ {
		a, err := Generate()
		require.NoError(t, err)
		accounts = append(accounts, a)
		balances[a.Address] = big.NewInt(int64(i * 100))
	}

	reader := &stubBalances{balances: balances}
	sender, listing, err := SelectSender(context.Background(), accounts, reader, 2, 2)
	require.NoError(t, err)
	require.Equal(t, accounts[2].Address, sender.Address)
	require.Equal(t, int64(200), sender.Balance.Int64())
	require.Len(t, listing, 5)
	require.Equal(t, 5, reader.calls)
	for i, f := range listing {
		require.Equal(t, accounts[i].Address, f.Address)
	}

	_, _, err = SelectSender(context.Background(), accounts, reader, 5, 2)
	require.Error(t, err)

	_, _, err = SelectSender(context.Background(), nil, reader, 0, 2)
	require.ErrorIs(t, err, ErrNoKeys)

	reader.fail = accounts[3].Address
	_, _, err = SelectSender(context.Background(), accounts, reader, 0, 2)
	require.ErrorContains(t, err, "rpc down")
}
