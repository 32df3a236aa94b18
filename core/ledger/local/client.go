package local

import (
	"sync"
	"time"

	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/crypto"
	"golang.org/x/xerrors"
)

// DefaultTimeout is the deadline of a round trip when none is set.
const DefaultTimeout = 30 * time.Second

// Client is the client of a local network. It signs the requests with the
// operator key.
//
// - implements ledger.Client
type Client struct {
	network    *Network
	operator   ledger.Operator
	signer     crypto.Signer
	timeout    time.Duration
	maxFee     ledger.Amount
	maxPayment ledger.Amount
	now        func() time.Time

	sync.Mutex
	lastStart time.Time
}

// ClientOption is the type of options to create a client.
type ClientOption func(*Client)

// WithTimeout sets the deadline of each round trip to the network.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxTransactionFee sets the highest fee the client accepts to pay for a
// transaction. It is the fee of the transactions that do not define one, and
// a larger fee is lowered to it. A zero value removes the cap.
func WithMaxTransactionFee(fee ledger.Amount) ClientOption {
	return func(c *Client) {
		c.maxFee = fee
	}
}

// WithMaxQueryPayment sets the maximum payment of a query.
func WithMaxQueryPayment(amount ledger.Amount) ClientOption {
	return func(c *Client) {
		c.maxPayment = amount
	}
}

// NewClient returns a new client of the network that pays with the account.
func NewClient(network *Network, account ledger.AccountID, signer crypto.Signer,
	opts ...ClientOption) *Client {

	c := &Client{
		network: network,
		operator: ledger.Operator{
			AccountID: account,
			PublicKey: signer.GetPublicKey(),
		},
		signer:     signer,
		timeout:    DefaultTimeout,
		maxFee:     ledger.Hbar(6),
		maxPayment: ledger.Hbar(3),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetOperator implements ledger.Client.
func (c *Client) GetOperator() ledger.Operator {
	return c.operator
}

// SubmitTransaction implements ledger.Client. It signs the transaction and
// submits it to the network.
func (c *Client) SubmitTransaction(tx ledger.Transaction) (ledger.TransactionID, error) {
	tx = c.capFee(tx)

	id := ledger.TransactionID{
		AccountID:  c.operator.AccountID,
		ValidStart: c.nextValidStart(),
	}

	payload, err := TransactionPayload(id, tx)
	if err != nil {
		return id, err
	}

	sig, err := c.signer.Sign(payload)
	if err != nil {
		return id, xerrors.Errorf("failed to sign: %v", err)
	}

	env := Envelope{
		ID:          id,
		Transaction: tx,
		Signature:   sig,
	}

	err = c.deadline("submit "+string(tx.Type()), func() error {
		return c.network.Submit(env)
	})
	if err != nil {
		return id, err
	}

	return id, nil
}

// GetReceipt implements ledger.Client.
func (c *Client) GetReceipt(id ledger.TransactionID) (ledger.Receipt, error) {
	var receipt ledger.Receipt

	err := c.deadline("receipt of "+id.String(), func() error {
		var err error
		receipt, err = c.network.Receipt(id)

		return err
	})
	if err != nil {
		return ledger.Receipt{}, err
	}

	return receipt, nil
}

// GetQueryCost implements ledger.Client.
func (c *Client) GetQueryCost(q ledger.Query) (ledger.Amount, error) {
	var cost ledger.Amount

	err := c.deadline("cost of "+string(q.Type()), func() error {
		var err error
		cost, err = c.network.QueryCost(q)

		return err
	})
	if err != nil {
		return 0, err
	}

	return cost, nil
}

// SubmitQuery implements ledger.Client. The payment is refused without any
// round trip when it exceeds the maximum query payment.
func (c *Client) SubmitQuery(q ledger.Query, payment ledger.Amount) (ledger.Result, error) {
	if c.maxPayment > 0 && payment > c.maxPayment {
		return nil, &ledger.PrecheckError{Status: ledger.StatusMaxQueryPaymentExceeded}
	}

	payload, err := QueryPayload(c.operator.AccountID, payment, q)
	if err != nil {
		return nil, err
	}

	sig, err := c.signer.Sign(payload)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %v", err)
	}

	env := QueryEnvelope{
		Payer:     c.operator.AccountID,
		Payment:   payment,
		Query:     q,
		Signature: sig,
	}

	var res ledger.Result

	err = c.deadline("query "+string(q.Type()), func() error {
		var err error
		res, err = c.network.Query(env)

		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// deadline runs the function and returns a timeout error if it does not
// return in time. The function keeps running in the background in that case,
// so that the outcome of the request is unknown to the caller.
func (c *Client) deadline(op string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &ledger.TimeoutError{Op: op}
	}
}

// nextValidStart returns the current time, made unique among the transactions
// of the client.
func (c *Client) nextValidStart() time.Time {
	c.Lock()
	defer c.Unlock()

	start := c.now()
	if !start.After(c.lastStart) {
		start = c.lastStart.Add(time.Nanosecond)
	}

	c.lastStart = start

	return start
}

// capFee returns the transaction with its maximum fee bounded by the maximum
// of the client.
func (c *Client) capFee(tx ledger.Transaction) ledger.Transaction {
	fee := tx.GetMaxFee()
	if fee == 0 || (c.maxFee > 0 && fee > c.maxFee) {
		fee = c.maxFee
	}

	switch t := tx.(type) {
	case ledger.FileCreate:
		t.MaxFee = fee
		return t
	case ledger.FileAppend:
		t.MaxFee = fee
		return t
	case ledger.ContractCreate:
		t.MaxFee = fee
		return t
	case ledger.ContractDelete:
		t.MaxFee = fee
		return t
	case ledger.ContractExecute:
		t.MaxFee = fee
		return t
	default:
		return tx
	}
}
