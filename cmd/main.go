package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"hlexecutor/src/cloid"
	"hlexecutor/src/connectors"
	"hlexecutor/src/controller"
	"hlexecutor/src/credentials"
	"hlexecutor/src/database"
	"hlexecutor/src/journal"
	"hlexecutor/src/model"
	"hlexecutor/src/repository"
	"hlexecutor/src/settlement"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	_ = godotenv.Load()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "hlexecutor"
	app.Usage = "Move funds between the settlement chain and the trading ledger, and manage resting orders"
	app.Version = Version

	app.Commands = []cli.Command{
		statusCMD,
		orderCMD,
		depositCMD,
		withdrawCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var commonFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "private-key",
		Usage: "signing key as hex (falls back to PRIVATE_KEY)",
	},
	cli.StringFlag{
		Name:  "address",
		Usage: "account address when it differs from the signer (falls back to ACCOUNT_ADDRESS)",
	},
	cli.BoolFlag{
		Name:  "production",
		Usage: "target the production ledgers instead of the testnets",
	},
}

var (
	statusCMD = cli.Command{
		Name:        "status",
		Usage:       "show account equity, positions and open orders",
		Action:      statusAction,
		Flags:       commonFlags,
		Description: `Fetch and render the trading ledger's current view of the account.`,
	}
	orderCMD = cli.Command{
		Name:  "order",
		Usage: "create, modify or cancel resting orders",
		Subcommands: []cli.Command{
			{
				Name:   "new",
				Usage:  "place a new limit order",
				Action: orderNewAction,
				Flags: append([]cli.Flag{
					cli.StringFlag{Name: "coin", Usage: "market symbol, e.g. ETH"},
					cli.StringFlag{Name: "side", Usage: "buy or sell"},
					cli.StringFlag{Name: "size", Usage: "order size"},
					cli.StringFlag{Name: "price", Usage: "limit price"},
					cli.StringFlag{Name: "tif", Value: model.TifGtc, Usage: "time in force: Gtc, Ioc or Alo"},
					cli.BoolFlag{Name: "post-only", Usage: "add liquidity only (forces Alo)"},
					cli.BoolFlag{Name: "reduce-only", Usage: "only reduce an existing position"},
					cli.StringFlag{Name: "cloid", Usage: "client order id (decimal or 0x-hex), or 'auto' to generate one"},
				}, commonFlags...),
			},
			{
				Name:      "modify",
				Usage:     "modify a resting order by oid or cloid",
				ArgsUsage: "IDENTIFIER",
				Action:    orderModifyAction,
				Flags: append([]cli.Flag{
					cli.StringFlag{Name: "coin", Usage: "new market symbol"},
					cli.StringFlag{Name: "size", Usage: "new size"},
					cli.StringFlag{Name: "price", Usage: "new limit price"},
					cli.StringFlag{Name: "tif", Usage: "new time in force"},
					cli.BoolFlag{Name: "reduce-only", Usage: "set the reduce-only flag"},
					cli.StringFlag{Name: "cloid", Usage: "new client order id"},
				}, commonFlags...),
			},
			{
				Name:      "cancel",
				Usage:     "cancel a resting order by oid or cloid",
				ArgsUsage: "IDENTIFIER",
				Action:    orderCancelAction,
				Flags:     commonFlags,
			},
		},
	}
	depositCMD = cli.Command{
		Name:      "deposit",
		Usage:     "bridge USDC from the chain to the trading ledger",
		ArgsUsage: "AMOUNT",
		Action:    depositAction,
		Flags:     commonFlags,
		Description: `Transfer AMOUNT USDC from the signer's chain address to the bridge and
poll the trading ledger until the credit is confirmed. When the signer and
account addresses differ, the credit is forwarded to the account.`,
	}
	withdrawCMD = cli.Command{
		Name:      "withdraw",
		Usage:     "withdraw USD from the trading ledger back to the chain",
		ArgsUsage: "AMOUNT",
		Action:    withdrawAction,
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "destination", Usage: "chain address to receive the funds (defaults to the account address)"},
			cli.BoolFlag{Name: "yes, y", Usage: "skip the confirmation prompt"},
		}, commonFlags...),
		Description: `The ledger deducts AMOUNT and keeps a fixed 1 USD fee; the destination
receives AMOUNT minus the fee. Minimum is 2 USD.`,
	}
)

// session bundles everything one command invocation needs.
type session struct {
	creds    *credentials.Credentials
	cfg      connectors.Config
	ledger   *connectors.HyperCoreConnector
	recorder *journal.Recorder
	prod     bool
}

func newSession(c *cli.Context) (*session, error) {
	creds, err := credentials.Resolve(c.String("private-key"), c.String("address"))
	if err != nil {
		return nil, err
	}

	cfg := connectors.GetConfig()
	prod := c.Bool("production")

	network := "testnet"
	if prod {
		network = "production"
	}
	logger.WithFields(logger.Fields{
		"signer":  creds.Signer.Hex(),
		"account": creds.Account.Hex(),
		"network": network,
	}).Info("Session started")

	if err := database.InitJournal(database.GetConfig()); err != nil {
		logger.WithError(err).Warn("Journal unavailable, continuing without persistence")
	}

	return &session{
		creds:    creds,
		cfg:      cfg,
		ledger:   connectors.NewHyperCoreConnector(cfg.LedgerURL(prod), creds),
		recorder: journal.NewRecorder(repository.NewJournalRepository(), creds.Account.Hex()),
		prod:     prod,
	}, nil
}

func (s *session) tracker() (*settlement.Tracker, error) {
	chain, err := connectors.NewArbitrumConnector(s.cfg.RPCURL(s.prod), s.creds)
	if err != nil {
		return nil, err
	}
	return settlement.NewTracker(
		chain,
		s.ledger,
		s.creds,
		common.HexToAddress(s.cfg.UsdcAddr(s.prod)),
		common.HexToAddress(s.cfg.BridgeAddr(s.prod)),
	), nil
}

func statusAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	state, err := s.ledger.AccountState(ctx, s.creds.Account)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch account state")
		return err
	}
	renderAccountState(os.Stdout, s.creds.Account.Hex(), state)

	repo := repository.NewJournalRepository()
	if repo.Enabled() {
		records, err := repo.RecentSettlements(ctx, 10)
		if err == nil && len(records) > 0 {
			renderSettlementRecords(os.Stdout, records)
		}
	}
	return nil
}

func orderNewAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	spec, err := specFromFlags(c)
	if err != nil {
		return err
	}

	ctrl := controller.NewOrderController(s.ledger, s.creds.Account)
	result, err := ctrl.PlaceOrder(ctx, spec)
	if err != nil {
		logger.WithError(err).Error("Order placement failed")
		return err
	}
	s.recorder.OrderPlacement(ctx, spec, result)
	renderPlaceResult(os.Stdout, result)
	return nil
}

func orderModifyAction(c *cli.Context) error {
	identifier := c.Args().First()
	if identifier == "" {
		return cli.NewExitError("missing order identifier", 1)
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	req, err := mutationFromFlags(c, identifier)
	if err != nil {
		return err
	}

	ctrl := controller.NewOrderController(s.ledger, s.creds.Account)
	result, err := ctrl.ModifyOrder(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Order modification failed")
		return err
	}
	s.recorder.OrderModification(ctx, result)
	renderPlaceResult(os.Stdout, result)
	return nil
}

func orderCancelAction(c *cli.Context) error {
	identifier := c.Args().First()
	if identifier == "" {
		return cli.NewExitError("missing order identifier", 1)
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	ctrl := controller.NewOrderController(s.ledger, s.creds.Account)
	result, err := ctrl.CancelOrder(ctx, identifier)
	if err != nil {
		logger.WithError(err).Error("Order cancellation failed")
		return err
	}
	s.recorder.OrderCancellation(ctx, result)
	renderCancelResult(os.Stdout, result)
	return nil
}

func depositAction(c *cli.Context) error {
	amount, err := amountArg(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	tracker, err := s.tracker()
	if err != nil {
		return err
	}

	op, runErr := tracker.Deposit(ctx, amount)
	s.recorder.Settlement(ctx, op)
	if op != nil {
		renderSettlement(os.Stdout, op)
	}
	if runErr != nil {
		logger.WithError(runErr).Error("Deposit did not complete")
		return runErr
	}
	return nil
}

func withdrawAction(c *cli.Context) error {
	amount, err := amountArg(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	ctx := context.Background()

	destination := s.creds.Account
	if dest := c.String("destination"); dest != "" {
		if !common.IsHexAddress(dest) {
			return fmt.Errorf("%w: invalid destination address %q", model.ErrInvalidParameter, dest)
		}
		destination = common.HexToAddress(dest)
	}

	if !c.Bool("yes") {
		net := amount.Sub(decimal.NewFromInt(1))
		if !confirm(fmt.Sprintf("Withdraw %s USD (net %s after fee) to %s?", amount, net, destination.Hex())) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	tracker, err := s.tracker()
	if err != nil {
		return err
	}

	op, runErr := tracker.Withdraw(ctx, amount, destination)
	s.recorder.Settlement(ctx, op)
	if op != nil {
		renderSettlement(os.Stdout, op)
	}
	if runErr != nil {
		logger.WithError(runErr).Error("Withdrawal did not complete")
		return runErr
	}
	return nil
}

func amountArg(c *cli.Context) (decimal.Decimal, error) {
	raw := c.Args().First()
	if raw == "" {
		return decimal.Zero, cli.NewExitError("missing amount argument", 1)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", model.ErrInvalidParameter, raw)
	}
	return amount, nil
}

func specFromFlags(c *cli.Context) (model.OrderSpec, error) {
	var spec model.OrderSpec

	spec.Coin = c.String("coin")
	if spec.Coin == "" {
		return spec, fmt.Errorf("%w: --coin is required", model.ErrInvalidParameter)
	}

	switch strings.ToLower(c.String("side")) {
	case "buy", "b":
		spec.IsBuy = true
	case "sell", "a", "s":
		spec.IsBuy = false
	default:
		return spec, fmt.Errorf("%w: --side must be buy or sell", model.ErrInvalidParameter)
	}

	size, err := decimal.NewFromString(c.String("size"))
	if err != nil {
		return spec, fmt.Errorf("%w: --size %q is not a number", model.ErrInvalidParameter, c.String("size"))
	}
	spec.Size = size

	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return spec, fmt.Errorf("%w: --price %q is not a number", model.ErrInvalidParameter, c.String("price"))
	}
	spec.Price = price

	spec.Tif = c.String("tif")
	spec.PostOnly = c.Bool("post-only")
	spec.ReduceOnly = c.Bool("reduce-only")

	if raw := c.String("cloid"); raw != "" {
		cl, err := resolveCloidFlag(raw)
		if err != nil {
			return spec, err
		}
		spec.Cloid = cl
	}
	return spec, nil
}

func mutationFromFlags(c *cli.Context, identifier string) (model.OrderMutationRequest, error) {
	req := model.OrderMutationRequest{Identifier: identifier}

	if c.IsSet("coin") {
		coin := c.String("coin")
		req.Coin = &coin
	}
	if c.IsSet("size") {
		size, err := decimal.NewFromString(c.String("size"))
		if err != nil {
			return req, fmt.Errorf("%w: --size %q is not a number", model.ErrInvalidParameter, c.String("size"))
		}
		req.Size = &size
	}
	if c.IsSet("price") {
		price, err := decimal.NewFromString(c.String("price"))
		if err != nil {
			return req, fmt.Errorf("%w: --price %q is not a number", model.ErrInvalidParameter, c.String("price"))
		}
		req.Price = &price
	}
	if c.IsSet("tif") {
		tif := c.String("tif")
		req.Tif = &tif
	}
	if c.IsSet("reduce-only") {
		reduceOnly := c.Bool("reduce-only")
		req.ReduceOnly = &reduceOnly
	}
	if c.IsSet("cloid") {
		cl, err := resolveCloidFlag(c.String("cloid"))
		if err != nil {
			return req, err
		}
		req.Cloid = cl
	}
	return req, nil
}

func resolveCloidFlag(raw string) (*cloid.Cloid, error) {
	if strings.EqualFold(raw, "auto") {
		cl := cloid.NewRandom()
		logger.WithField("cloid", cl.String()).Info("Generated client order id")
		return &cl, nil
	}
	cl, err := cloid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("--cloid: %w", err)
	}
	return &cl, nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
