// Package fake provides fake implementations for interfaces commonly used in
// the repository.
//
// The implementations offer configuration to return errors when it is needed by
// the unit test and they record the calls they receive.
package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/crypto"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the message of an error wrapping the fake error.
func Err(msg string) string {
	return fmt.Sprintf("%s: fake error", msg)
}

// Call is a tool to keep track of a function calls.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// NewCall returns a new empty call tracker.
func NewCall() *Call {
	return &Call{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	defer c.Unlock()

	c.calls = append(c.calls, args)
}

// Count returns the number of calls whose first parameter is the name.
func (c *Call) Count(name string) int {
	c.Lock()
	defer c.Unlock()

	n := 0
	for _, call := range c.calls {
		if len(call) > 0 && call[0] == name {
			n++
		}
	}

	return n
}

// Client is a fake implementation of the ledger client. Transactions are
// accepted and their receipts are successful unless an error is configured.
// Every call is recorded with its name as the first parameter ("submit",
// "receipt", "cost", "query").
//
// - implements ledger.Client
type Client struct {
	sync.Mutex

	Calls    *Call
	Operator ledger.Operator

	// ErrSubmit is returned by the submission of the transaction at index
	// ErrSubmitAt (starting from zero), or by every submission when negative.
	ErrSubmit   error
	ErrSubmitAt int

	// ErrReceipt is returned when fetching the receipt at index ErrReceiptAt,
	// or every receipt when negative.
	ErrReceipt   error
	ErrReceiptAt int

	// ReceiptStatus is the status of the receipts.
	ReceiptStatus ledger.Status

	Cost     ledger.Amount
	ErrCost  error
	Result   ledger.Result
	ErrQuery error

	submitted int
	receipts  int
	nextNum   int64
	created   map[ledger.TransactionID]ledger.Transaction
}

// NewClient returns a new fake client paid by the account 0.0.2.
func NewClient() *Client {
	return &Client{
		Calls: NewCall(),
		Operator: ledger.Operator{
			AccountID: ledger.AccountID{EntityID: ledger.EntityID{Num: 2}},
			PublicKey: PublicKey{},
		},
		ErrSubmitAt:   -1,
		ErrReceiptAt:  -1,
		ReceiptStatus: ledger.StatusSuccess,
		nextNum:       1000,
		created:       make(map[ledger.TransactionID]ledger.Transaction),
	}
}

// GetOperator implements ledger.Client.
func (c *Client) GetOperator() ledger.Operator {
	return c.Operator
}

// SubmitTransaction implements ledger.Client.
func (c *Client) SubmitTransaction(tx ledger.Transaction) (ledger.TransactionID, error) {
	c.Lock()
	defer c.Unlock()

	c.Calls.Add("submit", tx)

	index := c.submitted
	c.submitted++

	if c.ErrSubmit != nil && (c.ErrSubmitAt < 0 || c.ErrSubmitAt == index) {
		return ledger.TransactionID{}, c.ErrSubmit
	}

	id := ledger.TransactionID{
		AccountID:  c.Operator.AccountID,
		ValidStart: time.Unix(1600000000, int64(index)),
	}

	c.created[id] = tx

	return id, nil
}

// GetReceipt implements ledger.Client.
func (c *Client) GetReceipt(id ledger.TransactionID) (ledger.Receipt, error) {
	c.Lock()
	defer c.Unlock()

	c.Calls.Add("receipt", id)

	index := c.receipts
	c.receipts++

	if c.ErrReceipt != nil && (c.ErrReceiptAt < 0 || c.ErrReceiptAt == index) {
		return ledger.Receipt{}, c.ErrReceipt
	}

	receipt := ledger.Receipt{
		Status:        c.ReceiptStatus,
		TransactionID: id,
	}

	if receipt.Status != ledger.StatusSuccess {
		return receipt, nil
	}

	switch c.created[id].(type) {
	case ledger.FileCreate:
		c.nextNum++
		receipt.FileID = &ledger.FileID{EntityID: ledger.EntityID{Num: c.nextNum}}
	case ledger.ContractCreate:
		c.nextNum++
		receipt.ContractID = &ledger.ContractID{EntityID: ledger.EntityID{Num: c.nextNum}}
	}

	return receipt, nil
}

// GetQueryCost implements ledger.Client.
func (c *Client) GetQueryCost(q ledger.Query) (ledger.Amount, error) {
	c.Calls.Add("cost", q)

	return c.Cost, c.ErrCost
}

// SubmitQuery implements ledger.Client.
func (c *Client) SubmitQuery(q ledger.Query, payment ledger.Amount) (ledger.Result, error) {
	c.Calls.Add("query", q, payment)

	if c.ErrQuery != nil {
		return nil, c.ErrQuery
	}

	return c.Result, nil
}

// Submitted returns the transactions submitted so far in order.
func (c *Client) Submitted() []ledger.Transaction {
	var txs []ledger.Transaction

	for i := 0; i < c.Calls.Len(); i++ {
		if c.Calls.Get(i, 0) == "submit" {
			txs = append(txs, c.Calls.Get(i, 1).(ledger.Transaction))
		}
	}

	return txs
}

// PublicKey is a fake implementation of crypto.PublicKey.
//
// - implements crypto.PublicKey
type PublicKey struct {
	crypto.PublicKey

	Err error
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte{0xaa}, pk.Err
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("fake_pk"), pk.Err
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify([]byte, crypto.Signature) error {
	return pk.Err
}

// Equal implements crypto.PublicKey.
func (pk PublicKey) Equal(other interface{}) bool {
	_, ok := other.(PublicKey)
	return ok
}
