// Cross-ledger settlement: deposits chain -> trading ledger via the bridge,
// withdrawals trading ledger -> chain. One operation per invocation, driven
// to a terminal outcome by bounded polling with tolerance reconciliation.
package settlement

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"hlexecutor/src/connectors"
	"hlexecutor/src/credentials"
	"hlexecutor/src/model"
)

// ChainClient is the on-chain surface the tracker consumes.
type ChainClient interface {
	NativeBalance(ctx context.Context, addr common.Address) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, token, addr common.Address) (decimal.Decimal, error)
	TransferToken(ctx context.Context, token, to common.Address, amount decimal.Decimal) (*connectors.TransferReceipt, error)
}

// LedgerClient is the trading-ledger surface the tracker consumes.
type LedgerClient interface {
	AccountState(ctx context.Context, account common.Address) (*model.AccountState, error)
	UsdTransfer(ctx context.Context, amount decimal.Decimal, destination common.Address) (*connectors.LedgerResponse, error)
	Withdraw(ctx context.Context, amount decimal.Decimal, destination common.Address) (*connectors.LedgerResponse, error)
}

var (
	depositMinimum  = decimal.NewFromInt(5)
	withdrawMinimum = decimal.NewFromInt(2)
	withdrawFee     = decimal.NewFromInt(1)

	// Credit detection during polling allows 0.1% slippage; the final
	// deposit verdict and the rebalance check each allow 1%. Withdrawal
	// reconciliation works in absolute cents. Deliberately distinct bands.
	creditDetectRatio  = decimal.RequireFromString("0.999")
	depositVerdictRatio = decimal.RequireFromString("0.99")
	reportToleranceAbs = decimal.RequireFromString("0.01")

	lowGasThreshold = decimal.RequireFromString("0.001")
)

const (
	creditPollAttempts = 60
	creditPollInterval = 2 * time.Second
	settleDelay        = 3 * time.Second
)

// Tracker drives one settlement operation at a time. It holds no state
// between runs; every run builds a fresh SettlementOperation.
type Tracker struct {
	chain  ChainClient
	ledger LedgerClient
	creds  *credentials.Credentials

	usdcToken common.Address
	bridge    common.Address

	poller Poller
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewTracker(chain ChainClient, ledger LedgerClient, creds *credentials.Credentials, usdcToken, bridge common.Address) *Tracker {
	return &Tracker{
		chain:     chain,
		ledger:    ledger,
		creds:     creds,
		usdcToken: usdcToken,
		bridge:    bridge,
		poller:    Poller{Attempts: creditPollAttempts, Interval: creditPollInterval},
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// withdrawableBalance reads the ledger's withdrawable margin, degrading a
// failed read to Unknown.
func (t *Tracker) withdrawableBalance(ctx context.Context, account common.Address) model.BalanceReading {
	state, err := t.ledger.AccountState(ctx, account)
	if err != nil {
		return model.UnknownBalance()
	}
	return model.KnownBalance(state.Withdrawable)
}
