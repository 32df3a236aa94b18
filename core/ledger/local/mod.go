// Package local implements an in-process ledger network.
//
// The network keeps the accounts, the files, the contracts and the receipts in
// a key/value database and runs the contracts in an Ethereum virtual machine.
// A transaction reaches consensus as soon as it is submitted: it is checked,
// applied and its receipt is stored atomically. The operations applied to the
// virtual machine are journaled so that the state of the contracts survives a
// restart.
//
// The network is reached with the Client, which signs the requests with the
// operator key and enforces the deadline of every round trip.
package local

import (
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/indemnify/cman"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/store/kv"
	"github.com/indemnify/cman/crypto"
	"github.com/indemnify/cman/crypto/ed25519"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const (
	// MaxTransactionSize is the maximum size in bytes of a transaction.
	MaxTransactionSize = 6144

	// MaxFileSize is the maximum size in bytes of a file.
	MaxFileSize = 1024 * 1024

	// MinAutoRenewPeriod and MaxAutoRenewPeriod bound the auto renew period of
	// a contract.
	MinAutoRenewPeriod = 2_592_000 * time.Second
	MaxAutoRenewPeriod = 8_000_001 * time.Second

	// envelopeSize is the size of the fields common to every transaction.
	envelopeSize = 128

	// keySize is the size of an encoded public key.
	keySize = 32
)

// DefaultGenesisBalance is the balance of the operator account when the
// network is created.
var DefaultGenesisBalance = ledger.Hbar(10_000)

var (
	promTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cman_local_transactions_total",
		Help: "total number of transactions processed by the local network",
	}, []string{"type", "status"})

	promFees = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cman_local_fees_tinybars_total",
		Help: "total amount of fees charged by the local network",
	})
)

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promTransactions, promFees)
}

// Envelope is a transaction signed by its payer.
type Envelope struct {
	ID          ledger.TransactionID
	Transaction ledger.Transaction
	Signature   crypto.Signature
}

// QueryEnvelope is a query with the payment signed by the payer.
type QueryEnvelope struct {
	Payer     ledger.AccountID
	Payment   ledger.Amount
	Query     ledger.Query
	Signature crypto.Signature
}

// TransactionPayload returns the bytes signed by the payer of a transaction.
func TransactionPayload(id ledger.TransactionID, tx ledger.Transaction) ([]byte, error) {
	payload := struct {
		ID   string                 `json:"id"`
		Type ledger.TransactionType `json:"type"`
		Body ledger.Transaction     `json:"body"`
	}{
		ID:   id.String(),
		Type: tx.Type(),
		Body: tx,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode transaction: %v", err)
	}

	return data, nil
}

// QueryPayload returns the bytes signed by the payer of a query.
func QueryPayload(payer ledger.AccountID, payment ledger.Amount, q ledger.Query) ([]byte, error) {
	payload := struct {
		Payer   string           `json:"payer"`
		Payment ledger.Amount    `json:"payment"`
		Type    ledger.QueryType `json:"type"`
		Body    ledger.Query     `json:"body"`
	}{
		Payer:   payer.String(),
		Payment: payment,
		Type:    q.Type(),
		Body:    q,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode query: %v", err)
	}

	return data, nil
}

// Network is a ledger network running in the process.
type Network struct {
	sync.Mutex

	db         kv.DB
	machine    *machine
	network    ledger.Network
	fees       FeeSchedule
	latency    time.Duration
	now        func() time.Time
	keyFactory crypto.PublicKeyFactory
	logger     zerolog.Logger
}

// Option is the type of options to open a network.
type Option func(*Network)

// WithFeeSchedule sets the fees of the network.
func WithFeeSchedule(fees FeeSchedule) Option {
	return func(n *Network) {
		n.fees = fees
	}
}

// WithLatency sets the time a transaction takes to reach consensus.
func WithLatency(d time.Duration) Option {
	return func(n *Network) {
		n.latency = d
	}
}

// WithClock sets the clock of the network.
func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		n.now = now
	}
}

// Open returns the network stored in the database. The state of the contracts
// is rebuilt from the journal.
func Open(db kv.DB, network ledger.Network, opts ...Option) (*Network, error) {
	m, err := newMachine()
	if err != nil {
		return nil, xerrors.Errorf("failed to create machine: %v", err)
	}

	n := &Network{
		db:         db,
		machine:    m,
		network:    network,
		fees:       DefaultFeeSchedule,
		now:        time.Now,
		keyFactory: ed25519.NewPublicKeyFactory(),
		logger:     cman.Logger.With().Str("network", string(network)).Logger(),
	}

	for _, opt := range opts {
		opt(n)
	}

	err = db.Update(func(tx kv.WritableTx) error {
		for _, name := range buckets {
			_, err := tx.GetBucketOrCreate(name)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create buckets: %v", err)
	}

	count := 0

	err = db.View(func(tx kv.ReadableTx) error {
		return tx.GetBucket(bucketJournal).ForEach(func(k, v []byte) error {
			var entry journalEntry

			err := json.Unmarshal(v, &entry)
			if err != nil {
				return xerrors.Errorf("failed to decode entry %d: %v",
					binary.BigEndian.Uint64(k), err)
			}

			count++

			return n.machine.replay(entry)
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to replay journal: %v", err)
	}

	n.logger.Debug().Int("entries", count).Msg("journal replayed")

	return n, nil
}

// GetNetwork returns the network emulated.
func (n *Network) GetNetwork() ledger.Network {
	return n.network
}

// Genesis creates the account with the key and the balance if it does not
// exist yet.
func (n *Network) Genesis(id ledger.AccountID, key crypto.PublicKey, balance ledger.Amount) error {
	text, err := key.MarshalText()
	if err != nil {
		return xerrors.Errorf("failed to marshal key: %v", err)
	}

	n.Lock()
	defer n.Unlock()

	return n.db.Update(func(tx kv.WritableTx) error {
		w := newWriter(tx)

		rec, found, err := w.account(id)
		if err != nil {
			return err
		}

		if found {
			if rec.Key != string(text) {
				return xerrors.Errorf("account %v exists with another key", id)
			}

			return nil
		}

		n.logger.Info().Stringer("account", id).Stringer("balance", balance).Msg("genesis")

		return w.setAccount(id, accountRecord{Key: string(text), Balance: balance})
	})
}

// Balance returns the balance of the account.
func (n *Network) Balance(id ledger.AccountID) (ledger.Amount, error) {
	var balance ledger.Amount

	err := n.db.View(func(tx kv.ReadableTx) error {
		rec, found, err := store{tx: tx}.account(id)
		if err != nil {
			return err
		}

		if !found {
			return &ledger.PrecheckError{Status: ledger.StatusPayerAccountNotFound}
		}

		balance = rec.Balance

		return nil
	})

	return balance, err
}

// Submit checks the transaction and applies it. A PrecheckError is returned
// when the transaction is rejected, in which case nothing is applied nor
// charged.
func (n *Network) Submit(env Envelope) error {
	if n.latency > 0 {
		time.Sleep(n.latency)
	}

	n.Lock()
	defer n.Unlock()

	snapshot := n.machine.snapshot()

	var status ledger.Status

	err := n.db.Update(func(tx kv.WritableTx) error {
		var err error
		status, err = n.process(newWriter(tx), env)

		return err
	})
	if err != nil {
		n.machine.revert(snapshot)

		return err
	}

	n.machine.commit()

	promTransactions.WithLabelValues(string(env.Transaction.Type()), status.String()).Inc()

	return nil
}

func (n *Network) process(w writer, env Envelope) (ledger.Status, error) {
	tx := env.Transaction
	payer := env.ID.AccountID

	account, err := n.precheck(w.store, payer, env.Signature, func() ([]byte, error) {
		return TransactionPayload(env.ID, tx)
	})
	if err != nil {
		return 0, err
	}

	_, found, err := w.receipt(env.ID)
	if err != nil {
		return 0, err
	}

	if found {
		return 0, &ledger.PrecheckError{Status: ledger.StatusDuplicateTransaction}
	}

	if payloadSize(tx)+envelopeSize > MaxTransactionSize {
		return 0, &ledger.PrecheckError{Status: ledger.StatusTransactionOversize}
	}

	fee := n.fees.TransactionFee(tx)

	if fee > tx.GetMaxFee() {
		return 0, &ledger.PrecheckError{Status: ledger.StatusInsufficientTxFee}
	}

	if fee > account.Balance {
		return 0, &ledger.PrecheckError{Status: ledger.StatusInsufficientPayerBalance}
	}

	ctx := applyContext{
		writer: w,
		payer:  payer,
		key:    account.Key,
		now:    n.now(),
	}

	res, err := n.apply(ctx, tx)
	if err != nil {
		return 0, xerrors.Errorf("failed to apply %v: %v", env.ID, err)
	}

	// The payer never pays more than the maximum fee, even if the gas fee
	// exceeds it.
	fee += n.fees.GasFee(res.gasUsed)
	if fee > tx.GetMaxFee() {
		fee = tx.GetMaxFee()
	}

	if fee > account.Balance {
		fee = account.Balance
	}

	// The account might have been credited by the transaction.
	account, _, err = w.account(payer)
	if err != nil {
		return 0, err
	}

	account.Balance -= fee

	err = w.setAccount(payer, account)
	if err != nil {
		return 0, err
	}

	err = w.setReceipt(env.ID, res.receipt)
	if err != nil {
		return 0, err
	}

	promFees.Add(float64(fee))

	n.logger.Debug().
		Stringer("id", env.ID).
		Str("type", string(tx.Type())).
		Stringer("status", res.receipt.Status).
		Stringer("fee", fee).
		Msg("transaction applied")

	return res.receipt.Status, nil
}

// precheck verifies that the payer exists and that the signature of the
// payload is valid.
func (n *Network) precheck(s store, payer ledger.AccountID, sig crypto.Signature,
	payload func() ([]byte, error)) (accountRecord, error) {

	account, found, err := s.account(payer)
	if err != nil {
		return account, err
	}

	if !found {
		return account, &ledger.PrecheckError{Status: ledger.StatusPayerAccountNotFound}
	}

	key, err := n.keyFactory.FromText(account.Key)
	if err != nil {
		return account, xerrors.Errorf("invalid key of %v: %v", payer, err)
	}

	data, err := payload()
	if err != nil {
		return account, err
	}

	if sig == nil || key.Verify(data, sig) != nil {
		return account, &ledger.PrecheckError{Status: ledger.StatusInvalidSignature}
	}

	return account, nil
}

// Receipt returns the receipt of the transaction.
func (n *Network) Receipt(id ledger.TransactionID) (ledger.Receipt, error) {
	receipt := ledger.Receipt{TransactionID: id}

	err := n.db.View(func(tx kv.ReadableTx) error {
		rec, found, err := store{tx: tx}.receipt(id)
		if err != nil {
			return err
		}

		if !found {
			return &ledger.PrecheckError{Status: ledger.StatusReceiptNotFound}
		}

		receipt.Status = rec.Status

		if rec.FileID != "" {
			fileID, err := ledger.ParseFileID(rec.FileID)
			if err != nil {
				return err
			}

			receipt.FileID = &fileID
		}

		if rec.ContractID != "" {
			contractID, err := ledger.ParseContractID(rec.ContractID)
			if err != nil {
				return err
			}

			receipt.ContractID = &contractID
		}

		return nil
	})

	return receipt, err
}
