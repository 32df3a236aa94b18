// Package query implements the cost-then-pay pattern of the metered reads.
//
// The network requires the payment of a query in advance. The executor first
// asks for the cost of the query, adds a margin to absorb the drift of the cost
// between the estimation and the execution, and then submits the query with
// the payment attached. The network refunds an overpayment and rejects an
// underpayment.
package query

import (
	"github.com/indemnify/cman"
	"github.com/indemnify/cman/core/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// NoMargin is the margin factor to pay exactly the estimated cost.
const NoMargin = 0

// ErrMaxPaymentExceeded is returned when the payment of a query is above the
// maximum the operator accepts to pay.
var ErrMaxPaymentExceeded = xerrors.New("maximum query payment exceeded")

var (
	promQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cman_query_executed_total",
		Help: "total number of paid queries per type",
	}, []string{"type"})

	promPayments = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cman_query_payment_tinybars",
		Help:    "payment attached to the queries",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 12),
	})
)

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promQueries, promPayments)
}

// AddMargin returns the cost increased by one factor-th of itself, using an
// integer division. A factor of 50 adds about 2%. A factor of zero returns the
// cost unchanged.
func AddMargin(cost ledger.Amount, factor int64) (ledger.Amount, error) {
	if factor < 0 {
		return 0, xerrors.Errorf("margin factor must not be negative but got %d: %w",
			factor, ledger.ErrInvalidArgument)
	}

	if factor == NoMargin {
		return cost, nil
	}

	return cost + cost/ledger.Amount(factor), nil
}

// Executor runs paid queries.
type Executor struct {
	client     ledger.Client
	maxPayment ledger.Amount
	logger     zerolog.Logger
}

// Option is the type of options to create an executor.
type Option func(*Executor)

// WithMaxPayment sets the maximum payment attached to a single query. A zero
// value disables the check.
func WithMaxPayment(amount ledger.Amount) Option {
	return func(e *Executor) {
		e.maxPayment = amount
	}
}

// NewExecutor returns a new executor that pays the queries with the operator of
// the client.
func NewExecutor(client ledger.Client, opts ...Option) Executor {
	e := Executor{
		client: client,
		logger: cman.Logger.With().Str("component", "query").Logger(),
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// PayAndExecute estimates the cost of the query, adds the margin and executes
// the query with that payment. Any failure aborts the query and nothing is
// retried.
func (e Executor) PayAndExecute(q ledger.Query, marginFactor int64) (ledger.Result, error) {
	cost, err := e.client.GetQueryCost(q)
	if err != nil {
		return nil, xerrors.Errorf("failed to get cost of %v: %w", q.Type(), err)
	}

	payment, err := AddMargin(cost, marginFactor)
	if err != nil {
		return nil, xerrors.Errorf("failed to compute payment: %w", err)
	}

	if e.maxPayment > 0 && payment > e.maxPayment {
		return nil, xerrors.Errorf("%v costs %v above %v: %w",
			q.Type(), payment, e.maxPayment, ErrMaxPaymentExceeded)
	}

	e.logger.Debug().
		Str("query", string(q.Type())).
		Int64("cost", cost.Tinybars()).
		Int64("payment", payment.Tinybars()).
		Msg("paying query")

	res, err := e.client.SubmitQuery(q, payment)
	if err != nil {
		return nil, xerrors.Errorf("failed to execute %v: %w", q.Type(), err)
	}

	promQueries.WithLabelValues(string(q.Type())).Inc()
	promPayments.Observe(float64(payment.Tinybars()))

	return res, nil
}
