package controller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/cloid"
	"hlexecutor/src/model"
)

// OrderQuerier is the read-only slice of the ledger the resolver needs.
type OrderQuerier interface {
	OrderByOid(ctx context.Context, account common.Address, oid uint64) (*model.OrderSnapshot, error)
	OrderByCloid(ctx context.Context, account common.Address, cl string) (*model.OrderSnapshot, error)
}

// ClassifyIdentifier decides once, syntactically, whether an operator-supplied
// order reference is a numeric ledger id or a client order id. All-digit text
// is always numeric: it never falls back to a cloid interpretation, even when
// the ledger has no such oid. Anything else must parse as a cloid.
func ClassifyIdentifier(text string) (model.OrderIdentifier, error) {
	if text == "" {
		return model.OrderIdentifier{}, fmt.Errorf("%w: empty order identifier", model.ErrInvalidParameter)
	}

	if cloid.IsAllDigits(text) {
		oid, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return model.OrderIdentifier{}, fmt.Errorf("%w: numeric order id %q exceeds 64 bits", model.ErrInvalidParameter, text)
		}
		return model.OrderIdentifier{Kind: model.IdentifierNumeric, Oid: oid}, nil
	}

	cl, err := cloid.Parse(text)
	if err != nil {
		return model.OrderIdentifier{}, fmt.Errorf("order identifier %q: %w", text, err)
	}
	return model.OrderIdentifier{Kind: model.IdentifierClient, Cloid: cl}, nil
}

// ResolveOrder classifies the identifier and fetches the matching snapshot
// with exactly one ledger query. A ledger miss surfaces as the querier's
// ErrNotFound; the identifier is never reinterpreted on a miss.
func ResolveOrder(ctx context.Context, q OrderQuerier, account common.Address, text string) (*model.OrderSnapshot, model.OrderIdentifier, error) {
	ident, err := ClassifyIdentifier(text)
	if err != nil {
		return nil, model.OrderIdentifier{}, err
	}

	var snap *model.OrderSnapshot
	switch ident.Kind {
	case model.IdentifierNumeric:
		logger.WithField("oid", ident.Oid).Debug("Resolving order by oid")
		snap, err = q.OrderByOid(ctx, account, ident.Oid)
	default:
		logger.WithField("cloid", ident.Cloid.String()).Debug("Resolving order by cloid")
		snap, err = q.OrderByCloid(ctx, account, ident.Cloid.String())
	}
	if err != nil {
		return nil, ident, err
	}
	return snap, ident, nil
}
