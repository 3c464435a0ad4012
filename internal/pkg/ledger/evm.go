package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Vault contract surface used by the deduction engine. The contract is the
// authoritative record of what has actually been charged.
const vaultABI = `[
	{"name":"canDeductToday","type":"function","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"executeDeduction","type":"function","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
	{"name":"executeBatchDeduction","type":"function","stateMutability":"nonpayable","inputs":[{"name":"wallets","type":"address[]"}],"outputs":[]}
]`

const erc20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var ErrReverted = errors.New("transaction reverted")

// Config for the EVM client
type Config struct {
	RPCURL            string
	ChainID           int64
	VaultContract     string
	TokenContract     string
	TokenDecimals     int
	RelayerPrivateKey string
}

// Client talks to the vault contract through a single relayer key. Sends are
// serialized: the relayer account has one nonce sequence.
type Client struct {
	eth      *ethclient.Client
	vault    common.Address
	token    common.Address
	decimals int

	vaultABI abi.ABI
	tokenABI abi.ABI

	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address

	sendMu sync.Mutex
}

// New dials the RPC endpoint and prepares the relayer signer
func New(cfg Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	vABI, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	tABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}

	return &Client{
		eth:      eth,
		vault:    common.HexToAddress(cfg.VaultContract),
		token:    common.HexToAddress(cfg.TokenContract),
		decimals: cfg.TokenDecimals,
		vaultABI: vABI,
		tokenABI: tABI,
		chainID:  big.NewInt(cfg.ChainID),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// CanDeductToday asks the vault whether 24h have passed since the wallet's
// last on-chain deduction
func (c *Client) CanDeductToday(ctx context.Context, wallet string) (bool, error) {
	data, err := c.vaultABI.Pack("canDeductToday", common.HexToAddress(wallet))
	if err != nil {
		return false, err
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.vault, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("canDeductToday call: %w", err)
	}

	res, err := c.vaultABI.Unpack("canDeductToday", out)
	if err != nil {
		return false, err
	}
	ok, _ := res[0].(bool)
	return ok, nil
}

// ExecuteOne charges a single wallet. Returns the tx hash and mined block.
func (c *Client) ExecuteOne(ctx context.Context, wallet string) (string, uint64, error) {
	data, err := c.vaultABI.Pack("executeDeduction", common.HexToAddress(wallet))
	if err != nil {
		return "", 0, err
	}
	return c.send(ctx, data)
}

// ExecuteBatch charges a group of wallets in one transaction. The contract
// is all-or-nothing: a revert means no member was charged.
func (c *Client) ExecuteBatch(ctx context.Context, wallets []string) (string, uint64, error) {
	addrs := make([]common.Address, len(wallets))
	for i, w := range wallets {
		addrs[i] = common.HexToAddress(w)
	}

	data, err := c.vaultABI.Pack("executeBatchDeduction", addrs)
	if err != nil {
		return "", 0, err
	}
	return c.send(ctx, data)
}

// SpendableBalance returns the wallet's token balance in cents
func (c *Client) SpendableBalance(ctx context.Context, wallet string) (int64, error) {
	data, err := c.tokenABI.Pack("balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return 0, err
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("balanceOf call: %w", err)
	}

	res, err := c.tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return 0, err
	}
	raw, ok := res[0].(*big.Int)
	if !ok {
		return 0, errors.New("unexpected balanceOf result")
	}

	return tokenToCents(raw, c.decimals), nil
}

// RelayerBalance returns the relayer account's native balance in wei
func (c *Client) RelayerBalance(ctx context.Context) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, c.from, nil)
}

// RelayerAddress returns the sending account
func (c *Client) RelayerAddress() string {
	return c.from.Hex()
}

func (c *Client) send(ctx context.Context, data []byte) (string, uint64, error) {
	// One nonce sequence per relayer key; never send concurrently
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", 0, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.vault,
		Data: data,
	})
	if err != nil {
		return "", 0, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit += gasLimit / 5 // headroom over the estimate

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.vault,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", 0, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", 0, fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return "", 0, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signed.Hash().Hex(), receipt.BlockNumber.Uint64(), ErrReverted
	}

	return signed.Hash().Hex(), receipt.BlockNumber.Uint64(), nil
}

// tokenToCents converts a raw token amount to cents (2 decimal places)
func tokenToCents(raw *big.Int, decimals int) int64 {
	v := new(big.Int).Mul(raw, big.NewInt(100))
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	v.Quo(v, div)
	if !v.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return v.Int64()
}
