package connectors

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/credentials"
	"hlexecutor/src/model"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const (
	nativeDecimals = 18

	// Safety margin over the estimator's gas quote.
	gasMarginNumerator   = 120
	gasMarginDenominator = 100

	receiptPollInterval = 2 * time.Second
	receiptTimeout      = 120 * time.Second
)

// evmBackend is the slice of ethclient this connector uses; tests substitute
// a fake.
type evmBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TransferReceipt summarizes a mined value transfer.
type TransferReceipt struct {
	TxHash      string
	BlockNumber uint64
}

// ArbitrumConnector reads balances and submits ERC-20 transfers on the
// settlement chain, signing with the operator's key.
type ArbitrumConnector struct {
	client evmBackend
	creds  *credentials.Credentials
	erc20  abi.ABI
}

func NewArbitrumConnector(rpcURL string, creds *credentials.Credentials) (*ArbitrumConnector, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc %s: %w", rpcURL, err)
	}
	return newArbitrumConnector(client, creds)
}

func newArbitrumConnector(client evmBackend, creds *credentials.Credentials) (*ArbitrumConnector, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ArbitrumConnector{client: client, creds: creds, erc20: parsed}, nil
}

// NativeBalance returns the address's ETH balance in ether units.
func (a *ArbitrumConnector) NativeBalance(ctx context.Context, addr common.Address) (decimal.Decimal, error) {
	wei, err := a.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("native balance of %s: %w", addr.Hex(), err)
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals), nil
}

// TokenDecimals reads the token's decimals() value.
func (a *ArbitrumConnector) TokenDecimals(ctx context.Context, token common.Address) (int32, error) {
	data, err := a.erc20.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals call: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals on %s: %w", token.Hex(), err)
	}
	values, err := a.erc20.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	return int32(values[0].(uint8)), nil
}

// TokenBalance returns the address's token balance in whole-token units.
func (a *ArbitrumConnector) TokenBalance(ctx context.Context, token, addr common.Address) (decimal.Decimal, error) {
	decimals, err := a.TokenDecimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}

	data, err := a.erc20.Pack("balanceOf", addr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pack balanceOf call: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("call balanceOf on %s: %w", token.Hex(), err)
	}
	values, err := a.erc20.Unpack("balanceOf", out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unpack balanceOf: %w", err)
	}
	raw := values[0].(*big.Int)
	return decimal.NewFromBigInt(raw, -decimals), nil
}

// TransferToken submits one ERC-20 transfer of amount (whole-token units)
// from the signer to the destination and waits for the receipt. Estimated
// gas gets a 20% margin before submission. A failed submission or a
// non-success receipt is fatal and never retried here.
func (a *ArbitrumConnector) TransferToken(ctx context.Context, token, to common.Address, amount decimal.Decimal) (*TransferReceipt, error) {
	decimals, err := a.TokenDecimals(ctx, token)
	if err != nil {
		return nil, err
	}
	rawAmount := amount.Shift(decimals).BigInt()

	data, err := a.erc20.Pack("transfer", to, rawAmount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer call: %w", err)
	}

	from := a.creds.Signer
	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch nonce: %v", model.ErrTransferFailed, err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest gas price: %v", model.ErrTransferFailed, err)
	}

	estimate, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%w: gas estimation: %v", model.ErrTransferFailed, err)
	}
	gasLimit := estimate * gasMarginNumerator / gasMarginDenominator

	chainID, err := a.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch chain id: %v", model.ErrTransferFailed, err)
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), a.creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign transaction: %v", model.ErrTransferFailed, err)
	}

	logger.WithFields(logger.Fields{
		"token":  token.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
		"gas":    gasLimit,
		"nonce":  nonce,
	}).Info("Submitting chain transfer")

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("%w: send transaction: %v", model.ErrTransferFailed, err)
	}

	txHash := signedTx.Hash()
	logger.WithField("tx", txHash.Hex()).Info("Transaction sent, waiting for receipt")

	receipt, err := a.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s reverted on chain", model.ErrTransferFailed, txHash.Hex())
	}

	logger.WithFields(logger.Fields{
		"tx":    txHash.Hex(),
		"block": receipt.BlockNumber.Uint64(),
	}).Info("Transaction confirmed")

	return &TransferReceipt{
		TxHash:      txHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (a *ArbitrumConnector) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(receiptTimeout)
	for {
		receipt, err := a.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no receipt for %s within %s", model.ErrTransferFailed, txHash.Hex(), receiptTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", model.ErrTransferFailed, ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
}
