package local

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/store/kv"
	"golang.org/x/xerrors"
)

var (
	bucketAccounts  = []byte("accounts")
	bucketFiles     = []byte("files")
	bucketContracts = []byte("contracts")
	bucketReceipts  = []byte("receipts")
	bucketJournal   = []byte("journal")
	bucketMeta      = []byte("meta")

	buckets = [][]byte{
		bucketAccounts, bucketFiles, bucketContracts,
		bucketReceipts, bucketJournal, bucketMeta,
	}
)

// firstEntityNum is the number of the first entity created by the network.
// The numbers below are reserved for the system accounts.
const firstEntityNum = 1000

type accountRecord struct {
	Key     string        `json:"key"`
	Balance ledger.Amount `json:"balance"`
}

type fileRecord struct {
	Contents   []byte    `json:"contents"`
	Keys       []string  `json:"keys"`
	Expiration time.Time `json:"expiration"`
	Deleted    bool      `json:"deleted"`
}

type contractRecord struct {
	Address         string        `json:"address"`
	AdminKey        string        `json:"adminKey,omitempty"`
	BytecodeFileID  string        `json:"bytecodeFileId"`
	AutoRenewPeriod time.Duration `json:"autoRenewPeriod"`
	CreatedAt       time.Time     `json:"createdAt"`
	Deleted         bool          `json:"deleted"`
}

type receiptRecord struct {
	Status     ledger.Status `json:"status"`
	FileID     string        `json:"fileId,omitempty"`
	ContractID string        `json:"contractId,omitempty"`
}

const (
	journalCreate  = "create"
	journalExecute = "execute"
)

// journalEntry is an operation applied to the virtual machine. The journal is
// replayed at startup to rebuild the state of the contracts.
type journalEntry struct {
	Kind     string `json:"kind"`
	Origin   string `json:"origin"`
	Contract string `json:"contract,omitempty"`
	Input    []byte `json:"input"`
	Gas      uint64 `json:"gas"`
	Time     int64  `json:"time"`
}

// store wraps a transaction of the database with typed accessors.
type store struct {
	tx kv.ReadableTx
}

func (s store) read(bucket []byte, key string, v interface{}) (bool, error) {
	b := s.tx.GetBucket(bucket)
	if b == nil {
		return false, nil
	}

	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}

	err := json.Unmarshal(data, v)
	if err != nil {
		return false, xerrors.Errorf("failed to decode '%s': %v", key, err)
	}

	return true, nil
}

func (s store) account(id ledger.AccountID) (accountRecord, bool, error) {
	var rec accountRecord
	found, err := s.read(bucketAccounts, id.String(), &rec)

	return rec, found, err
}

func (s store) file(id ledger.FileID) (fileRecord, bool, error) {
	var rec fileRecord
	found, err := s.read(bucketFiles, id.String(), &rec)

	return rec, found, err
}

func (s store) contract(id ledger.ContractID) (contractRecord, bool, error) {
	var rec contractRecord
	found, err := s.read(bucketContracts, id.String(), &rec)

	return rec, found, err
}

func (s store) receipt(id ledger.TransactionID) (receiptRecord, bool, error) {
	var rec receiptRecord
	found, err := s.read(bucketReceipts, id.String(), &rec)

	return rec, found, err
}

// writer is a store that can modify the records.
type writer struct {
	store
	wtx kv.WritableTx
}

func newWriter(tx kv.WritableTx) writer {
	return writer{store: store{tx: tx}, wtx: tx}
}

func (w writer) write(bucket []byte, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("failed to encode '%s': %v", key, err)
	}

	b, err := w.wtx.GetBucketOrCreate(bucket)
	if err != nil {
		return err
	}

	return b.Set(key, data)
}

func (w writer) setAccount(id ledger.AccountID, rec accountRecord) error {
	return w.write(bucketAccounts, []byte(id.String()), rec)
}

func (w writer) setFile(id ledger.FileID, rec fileRecord) error {
	return w.write(bucketFiles, []byte(id.String()), rec)
}

func (w writer) setContract(id ledger.ContractID, rec contractRecord) error {
	return w.write(bucketContracts, []byte(id.String()), rec)
}

func (w writer) setReceipt(id ledger.TransactionID, rec receiptRecord) error {
	return w.write(bucketReceipts, []byte(id.String()), rec)
}

func (w writer) appendJournal(entry journalEntry) error {
	b, err := w.wtx.GetBucketOrCreate(bucketJournal)
	if err != nil {
		return err
	}

	seq, err := b.NextSequence()
	if err != nil {
		return xerrors.Errorf("failed to get sequence: %v", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return w.write(bucketJournal, key, entry)
}

// nextEntity returns a new entity identifier shared by the files and the
// contracts.
func (w writer) nextEntity() (ledger.EntityID, error) {
	b, err := w.wtx.GetBucketOrCreate(bucketMeta)
	if err != nil {
		return ledger.EntityID{}, err
	}

	seq, err := b.NextSequence()
	if err != nil {
		return ledger.EntityID{}, xerrors.Errorf("failed to get sequence: %v", err)
	}

	return ledger.EntityID{Num: firstEntityNum + int64(seq)}, nil
}
