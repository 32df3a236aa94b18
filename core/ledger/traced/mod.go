// Package traced decorates a ledger client to report a span for every round
// trip to the network.
package traced

import (
	"github.com/indemnify/cman/core/ledger"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

// Client is a ledger client that traces the calls to the decorated client.
//
// - implements ledger.Client
type Client struct {
	ledger.Client

	tracer opentracing.Tracer
}

// NewClient returns the client decorated with the tracer.
func NewClient(client ledger.Client, tracer opentracing.Tracer) Client {
	return Client{
		Client: client,
		tracer: tracer,
	}
}

// SubmitTransaction implements ledger.Client.
func (c Client) SubmitTransaction(tx ledger.Transaction) (ledger.TransactionID, error) {
	span := c.tracer.StartSpan("SubmitTransaction")
	defer span.Finish()

	span.SetTag("type", string(tx.Type()))
	span.SetTag("maxFee", tx.GetMaxFee().Tinybars())

	id, err := c.Client.SubmitTransaction(tx)
	if err != nil {
		fail(span, err)
		return id, err
	}

	span.SetTag("transaction", id.String())

	return id, nil
}

// GetReceipt implements ledger.Client.
func (c Client) GetReceipt(id ledger.TransactionID) (ledger.Receipt, error) {
	span := c.tracer.StartSpan("GetReceipt")
	defer span.Finish()

	span.SetTag("transaction", id.String())

	receipt, err := c.Client.GetReceipt(id)
	if err != nil {
		fail(span, err)
		return receipt, err
	}

	span.SetTag("status", receipt.Status.String())

	return receipt, nil
}

// GetQueryCost implements ledger.Client.
func (c Client) GetQueryCost(q ledger.Query) (ledger.Amount, error) {
	span := c.tracer.StartSpan("GetQueryCost")
	defer span.Finish()

	span.SetTag("type", string(q.Type()))

	cost, err := c.Client.GetQueryCost(q)
	if err != nil {
		fail(span, err)
		return cost, err
	}

	span.SetTag("cost", cost.Tinybars())

	return cost, nil
}

// SubmitQuery implements ledger.Client.
func (c Client) SubmitQuery(q ledger.Query, payment ledger.Amount) (ledger.Result, error) {
	span := c.tracer.StartSpan("SubmitQuery")
	defer span.Finish()

	span.SetTag("type", string(q.Type()))
	span.SetTag("payment", payment.Tinybars())

	res, err := c.Client.SubmitQuery(q, payment)
	if err != nil {
		fail(span, err)
	}

	return res, err
}

func fail(span opentracing.Span, err error) {
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))

	precheck, ok := ledger.IsPrecheck(err)
	if ok {
		span.SetTag("status", precheck.Status.String())
	}

	if ledger.IsTimeout(err) {
		span.SetTag("timeout", true)
	}
}
