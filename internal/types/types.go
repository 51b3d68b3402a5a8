package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WorkflowType identifies one of the bot workflows
type WorkflowType string

const (
	WorkflowFaucet   WorkflowType = "faucet"
	WorkflowTransfer WorkflowType = "transfer"
	WorkflowStaking  WorkflowType = "staking"
	WorkflowActivity WorkflowType = "activity"
)

// TransactionStatus represents the status of a transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusConfirmed TransactionStatus = "CONFIRMED"
	StatusFailed    TransactionStatus = "FAILED"
)

// NetworkProfile is the static description of one EVM network
type NetworkProfile struct {
	Key       string            `yaml:"-" json:"key"`
	Name      string            `yaml:"name" json:"name"`
	RPC       string            `yaml:"rpc" json:"rpc"`
	Explorer  string            `yaml:"explorer" json:"explorer"`
	Symbol    string            `yaml:"symbol" json:"symbol"`
	ChainID   uint64            `yaml:"chainId" json:"chain_id,omitempty"`
	FaucetAPI string            `yaml:"faucetApi" json:"faucet_api,omitempty"`
	Contracts map[string]string `yaml:"contracts" json:"contracts,omitempty"`
}

// TxURL returns the explorer link for a transaction hash
func (p NetworkProfile) TxURL(hash string) string {
	return strings.TrimRight(p.Explorer, "/") + "/tx/" + hash
}

// Contract resolves a named contract address from the profile
func (p NetworkProfile) Contract(name string) (common.Address, error) {
	raw, ok := p.Contracts[name]
	if !ok || raw == "" {
		return common.Address{}, fmt.Errorf("network %s has no %q contract", p.Key, name)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("network %s: invalid %q contract address %q", p.Key, name, raw)
	}
	return common.HexToAddress(raw), nil
}

// WalletCredential is an address/private-key pair
type WalletCredential struct {
	Address    common.Address `json:"address"`
	PrivateKey string         `json:"-"`
}

// LedgerLine renders the credential the way the wallet ledger stores it
func (w WalletCredential) LedgerLine() string {
	return w.Address.Hex() + ":" + w.PrivateKey
}

// TransactionIntent describes a transaction before it is signed
type TransactionIntent struct {
	To                   common.Address
	Value                *big.Int
	Data                 []byte
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TransactionReceipt is the confirmed outcome of a submitted transaction
type TransactionReceipt struct {
	Hash        common.Hash       `json:"hash"`
	Status      TransactionStatus `json:"status"`
	BlockNumber uint64            `json:"block_number"`
	GasUsed     uint64            `json:"gas_used"`
}

func (r *TransactionReceipt) Succeeded() bool {
	return r != nil && r.Status == StatusConfirmed
}

// Event represents a message to be published
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
}

// EventType constants
const (
	EventTypeFaucetClaim   = "faucet.claim"
	EventTypeTransfer      = "transfer.confirmed"
	EventTypeStakeAttempt  = "staking.attempt"
	EventTypeWalletCreated = "wallet.created"
)

// ClaimEvent is the payload of a faucet claim event
type ClaimEvent struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TransferEvent is the payload of a confirmed transfer event
type TransferEvent struct {
	Network   string `json:"network"`
	From      string `json:"from"`
	To        string `json:"to"`
	AmountWei string `json:"amount_wei"`
	TxHash    string `json:"tx_hash"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
}

// StakeEvent is the payload of a staking attempt event
type StakeEvent struct {
	Network   string        `json:"network"`
	Wallet    string        `json:"wallet"`
	Contract  string        `json:"contract"`
	TxHash    string        `json:"tx_hash,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	NextSleep time.Duration `json:"next_sleep"`
}
