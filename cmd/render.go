package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"hlexecutor/src/model"
)

const timeLayout = "2006-01-02 15:04:05"

func renderAccountState(w io.Writer, account string, state *model.AccountState) {
	fmt.Fprintf(w, "Account %s\n", account)
	fmt.Fprintf(w, "  Equity:       %s\n", state.AccountValue)
	fmt.Fprintf(w, "  Withdrawable: %s\n\n", state.Withdrawable)

	if len(state.Positions) == 0 {
		fmt.Fprintln(w, "No open positions.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COIN\tSIZE\tENTRY\tVALUE\tUPNL\tROE\tLEV\tLIQ")
		for _, p := range state.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.Coin, p.Size, p.EntryPrice, p.PositionValue,
				p.UnrealizedPnl, p.ReturnOnEquity, p.Leverage, p.LiquidationPrice)
		}
		tw.Flush()
	}
	fmt.Fprintln(w)

	if len(state.OpenOrders) == 0 {
		fmt.Fprintln(w, "No open orders.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OID\tCOIN\tSIDE\tSIZE\tPRICE\tTIF\tCLOID\tCREATED")
	for _, o := range state.OpenOrders {
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Format(timeLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Oid, o.Coin, sideLabel(o.Side), o.Size, o.LimitPrice, o.Tif, o.Cloid, created)
	}
	tw.Flush()
}

func renderPlaceResult(w io.Writer, result *model.PlaceOrderResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tOID\tCLOID\tERROR")
	for _, o := range result.Outcomes {
		oid := ""
		if o.Oid != 0 {
			oid = fmt.Sprintf("%d", o.Oid)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Status, oid, o.Cloid, o.Err)
	}
	tw.Flush()

	if result.Snapshot != nil {
		s := result.Snapshot
		fmt.Fprintf(w, "\nLedger view: %s %s %s @ %s (%s, oid %d, status %s)\n",
			sideLabel(s.Side), s.Size, s.Coin, s.LimitPrice, s.Tif, s.Oid, s.Status)
	}
}

func renderCancelResult(w io.Writer, result *model.CancelOrderResult) {
	if result.OK() {
		fmt.Fprintf(w, "Cancelled %s order %d: %s\n", result.Coin, result.Oid, result.Status)
		return
	}
	fmt.Fprintf(w, "Cancel of %s order %d failed: %s\n", result.Coin, result.Oid, result.Err)
}

func renderSettlement(w io.Writer, op *model.SettlementOperation) {
	fmt.Fprintf(w, "%s %s -> %s\n", op.Direction, op.Source, op.Destination)
	fmt.Fprintf(w, "  Requested: %s\n", op.Requested)
	if !op.Fee.IsZero() {
		fmt.Fprintf(w, "  Net:       %s (fee %s)\n", op.Net, op.Fee)
	}
	if op.TxHash != "" {
		fmt.Fprintf(w, "  Tx:        %s (block %d)\n", op.TxHash, op.BlockNumber)
	}
	if op.Direction == model.DirectionDeposit {
		fmt.Fprintf(w, "  Credited:  %s after %d polls\n", op.Credited, op.PollAttempts)
	}
	fmt.Fprintf(w, "  Outcome:   %s\n", op.Outcome)
	if op.Note != "" {
		fmt.Fprintf(w, "  Note:      %s\n", op.Note)
	}
	if op.StaleReads {
		fmt.Fprintln(w, "  Warning: some balance reads failed; zero readings may be stale rather than empty")
	}
}

func renderSettlementRecords(w io.Writer, records []model.SettlementRecord) {
	fmt.Fprintln(w, "\nRecent settlements:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDIRECTION\tREQUESTED\tCREDITED\tOUTCOME\tFINISHED")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Direction, r.Requested, r.Credited, r.Outcome, r.FinishedAt.Format(timeLayout))
	}
	tw.Flush()
}

func sideLabel(side string) string {
	if side == model.SideBid {
		return "buy"
	}
	return "sell"
}
