package connectors

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"hlexecutor/src/model"
)

type fakeEVM struct {
	nativeWei     *big.Int
	tokenBalance  *big.Int
	tokenDecimals uint8
	gasEstimate   uint64
	receiptStatus uint64

	sentTx    *types.Transaction
	callCount int
}

func (f *fakeEVM) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return f.nativeWei, nil
}

func (f *fakeEVM) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.callCount++
	// decimals() selector 0x313ce567, balanceOf(address) 0x70a08231
	switch common.Bytes2Hex(msg.Data[:4]) {
	case "313ce567":
		return common.LeftPadBytes([]byte{f.tokenDecimals}, 32), nil
	case "70a08231":
		return common.LeftPadBytes(f.tokenBalance.Bytes(), 32), nil
	}
	return nil, errors.New("unexpected call")
}

func (f *fakeEVM) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeEVM) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeEVM) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return f.gasEstimate, nil
}

func (f *fakeEVM) NetworkID(_ context.Context) (*big.Int, error) {
	return big.NewInt(421614), nil
}

func (f *fakeEVM) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sentTx = tx
	return nil
}

func (f *fakeEVM) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: f.receiptStatus, BlockNumber: big.NewInt(123456)}, nil
}

func newFakeChain(t *testing.T, evm *fakeEVM) *ArbitrumConnector {
	t.Helper()
	conn, err := newArbitrumConnector(evm, testCreds(t))
	if err != nil {
		t.Fatalf("connector init: %v", err)
	}
	return conn
}

func TestNativeBalanceConversion(t *testing.T) {
	evm := &fakeEVM{nativeWei: big.NewInt(1_500_000_000_000_000_000)} // 1.5 ETH
	conn := newFakeChain(t, evm)

	bal, err := conn.NativeBalance(context.Background(), conn.creds.Signer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("native balance = %s, want 1.5", bal)
	}
}

func TestTokenBalanceScalesByDecimals(t *testing.T) {
	evm := &fakeEVM{tokenBalance: big.NewInt(12_500_000), tokenDecimals: 6} // 12.5 USDC
	conn := newFakeChain(t, evm)

	bal, err := conn.TokenBalance(context.Background(), common.Address{1}, conn.creds.Signer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("token balance = %s, want 12.5", bal)
	}
}

func TestTransferTokenAddsGasMargin(t *testing.T) {
	evm := &fakeEVM{
		tokenDecimals: 6,
		gasEstimate:   100_000,
		receiptStatus: types.ReceiptStatusSuccessful,
	}
	conn := newFakeChain(t, evm)

	receipt, err := conn.TransferToken(
		context.Background(),
		common.HexToAddress("0x1baAbB04529D43a73232B713C0FE471f7c7334d5"),
		common.HexToAddress("0x08cfc1B6b2dCF36A1480b99353A354AA8AC56f89"),
		decimal.RequireFromString("25.5"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evm.sentTx == nil {
		t.Fatalf("no transaction sent")
	}
	if got := evm.sentTx.Gas(); got != 120_000 {
		t.Fatalf("gas limit = %d, want estimate + 20%% margin = 120000", got)
	}
	if evm.sentTx.Nonce() != 7 {
		t.Fatalf("nonce = %d, want 7", evm.sentTx.Nonce())
	}
	if receipt.BlockNumber != 123456 {
		t.Fatalf("block number = %d", receipt.BlockNumber)
	}
	if receipt.TxHash == "" {
		t.Fatalf("tx hash empty")
	}
}

func TestTransferTokenRevertIsFatal(t *testing.T) {
	evm := &fakeEVM{
		tokenDecimals: 6,
		gasEstimate:   50_000,
		receiptStatus: types.ReceiptStatusFailed,
	}
	conn := newFakeChain(t, evm)

	_, err := conn.TransferToken(
		context.Background(),
		common.Address{1},
		common.Address{2},
		decimal.NewFromInt(10),
	)
	if !errors.Is(err, model.ErrTransferFailed) {
		t.Fatalf("want ErrTransferFailed for reverted tx, got %v", err)
	}
}
