package local

import (
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/indemnify/cman/core/abi"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/store/kv"
	"github.com/indemnify/cman/core/upload"
	"github.com/indemnify/cman/crypto"
	"github.com/indemnify/cman/crypto/ed25519"
	"github.com/indemnify/cman/internal/testing/contracts"
	"github.com/indemnify/cman/internal/testing/fake"
	"github.com/stretchr/testify/require"
)

var operatorID = ledger.AccountID{EntityID: ledger.EntityID{Num: 2}}

func TestNetwork_Genesis(t *testing.T) {
	network, _ := makeNetwork(t)

	balance, err := network.Balance(operatorID)
	require.NoError(t, err)
	require.Equal(t, DefaultGenesisBalance, balance)

	// again with the same key is a no-op
	signer := ed25519.NewSigner()
	err = network.Genesis(ledger.AccountID{EntityID: ledger.EntityID{Num: 3}},
		signer.GetPublicKey(), ledger.Hbar(1))
	require.NoError(t, err)
	err = network.Genesis(ledger.AccountID{EntityID: ledger.EntityID{Num: 3}},
		signer.GetPublicKey(), ledger.Hbar(1))
	require.NoError(t, err)

	err = network.Genesis(ledger.AccountID{EntityID: ledger.EntityID{Num: 3}},
		ed25519.NewSigner().GetPublicKey(), ledger.Hbar(1))
	require.EqualError(t, err, "account 0.0.3 exists with another key")

	err = network.Genesis(operatorID, fake.PublicKey{Err: fake.GetError()}, 0)
	require.EqualError(t, err, fake.Err("failed to marshal key"))

	_, err = network.Balance(ledger.AccountID{EntityID: ledger.EntityID{Num: 404}})
	require.EqualError(t, err, "precheck failed with status PAYER_ACCOUNT_NOT_FOUND")

	require.Equal(t, ledger.Testnet, network.GetNetwork())
}

func TestClient_FileCreateAndAppend(t *testing.T) {
	network, client := makeNetwork(t)

	receipt, err := ledger.Execute(client, ledger.FileCreate{
		Contents:       []byte("abc"),
		Keys:           []crypto.PublicKey{client.GetOperator().PublicKey},
		ExpirationTime: time.Now().Add(time.Hour),
		MaxFee:         ledger.Hbar(5),
	})
	require.NoError(t, err)
	require.NotNil(t, receipt.FileID)
	require.Equal(t, "0.0.1001", receipt.FileID.String())

	_, err = ledger.Execute(client, ledger.FileAppend{
		FileID:   *receipt.FileID,
		Contents: []byte("def"),
		MaxFee:   ledger.Hbar(5),
	})
	require.NoError(t, err)

	network.db.View(func(tx kv.ReadableTx) error {
		rec, found, err := store{tx: tx}.file(*receipt.FileID)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("abcdef"), rec.Contents)

		return nil
	})

	// fees of the create, with its key, and of the append
	balance, err := network.Balance(operatorID)
	require.NoError(t, err)
	require.Equal(t, DefaultGenesisBalance-ledger.Amount(50_035_000+40_003_000), balance)
}

func TestClient_FileFailures(t *testing.T) {
	_, client := makeNetwork(t)

	_, err := ledger.Execute(client, ledger.FileCreate{
		ExpirationTime: time.Now().Add(-time.Hour),
		MaxFee:         ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInvalidExpirationTime)

	_, err = ledger.Execute(client, ledger.FileAppend{
		FileID: ledger.FileID{EntityID: ledger.EntityID{Num: 5000}},
		MaxFee: ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInvalidFileID)

	// A file without keys is immutable.
	receipt, err := ledger.Execute(client, ledger.FileCreate{
		ExpirationTime: time.Now().Add(time.Hour),
		MaxFee:         ledger.Hbar(5),
	})
	require.NoError(t, err)

	_, err = ledger.Execute(client, ledger.FileAppend{
		FileID:   *receipt.FileID,
		Contents: []byte{1},
		MaxFee:   ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInvalidSignature)
}

func TestClient_Prechecks(t *testing.T) {
	network, client := makeNetwork(t)

	_, err := client.SubmitTransaction(ledger.FileCreate{
		Contents:       make([]byte, MaxTransactionSize),
		ExpirationTime: time.Now().Add(time.Hour),
		MaxFee:         ledger.Hbar(5),
	})
	requirePrecheck(t, err, ledger.StatusTransactionOversize)

	_, err = client.SubmitTransaction(ledger.FileCreate{
		ExpirationTime: time.Now().Add(time.Hour),
		MaxFee:         1,
	})
	requirePrecheck(t, err, ledger.StatusInsufficientTxFee)

	other := NewClient(network, ledger.AccountID{EntityID: ledger.EntityID{Num: 404}},
		ed25519.NewSigner())
	_, err = other.SubmitTransaction(ledger.FileCreate{MaxFee: ledger.Hbar(5)})
	requirePrecheck(t, err, ledger.StatusPayerAccountNotFound)

	// the operator account with a wrong key
	other = NewClient(network, operatorID, ed25519.NewSigner())
	_, err = other.SubmitTransaction(ledger.FileCreate{MaxFee: ledger.Hbar(5)})
	requirePrecheck(t, err, ledger.StatusInvalidSignature)

	poor := ed25519.NewSigner()
	poorID := ledger.AccountID{EntityID: ledger.EntityID{Num: 3}}
	require.NoError(t, network.Genesis(poorID, poor.GetPublicKey(), 10))

	_, err = NewClient(network, poorID, poor).SubmitTransaction(ledger.FileCreate{
		MaxFee: ledger.Hbar(5),
	})
	requirePrecheck(t, err, ledger.StatusInsufficientPayerBalance)

	_, err = client.GetReceipt(ledger.TransactionID{AccountID: operatorID})
	requirePrecheck(t, err, ledger.StatusReceiptNotFound)

	// Nothing has been charged.
	balance, err := network.Balance(operatorID)
	require.NoError(t, err)
	require.Equal(t, DefaultGenesisBalance, balance)
}

func TestClient_MaxTransactionFee(t *testing.T) {
	network, client := makeNetwork(t)

	capped := NewClient(network, operatorID, client.signer,
		WithMaxTransactionFee(ledger.Amount(1_000_000)))

	// The fee of the upload is lowered to the maximum of the client, which is
	// not enough to create the file.
	_, err := upload.NewUploader(capped).Upload(make([]byte, 12_000))
	requirePrecheck(t, err, ledger.StatusInsufficientTxFee)

	balance, err := network.Balance(operatorID)
	require.NoError(t, err)
	require.Equal(t, DefaultGenesisBalance, balance)

	// A transaction without a fee uses the maximum of the client.
	capped = NewClient(network, operatorID, client.signer, WithMaxTransactionFee(ledger.Hbar(1)))

	receipt, err := ledger.Execute(capped, ledger.FileCreate{
		Contents:       []byte("abc"),
		ExpirationTime: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, receipt.FileID)

	balance, err = network.Balance(operatorID)
	require.NoError(t, err)
	require.Less(t, int64(DefaultGenesisBalance-balance), int64(ledger.Hbar(1)))

	// Without a cap, the fee of the transaction is kept.
	uncapped := NewClient(network, operatorID, client.signer, WithMaxTransactionFee(0))

	_, err = upload.NewUploader(uncapped).Upload(make([]byte, 12_000))
	require.NoError(t, err)
}

func TestClient_DuplicateTransaction(t *testing.T) {
	network, client := makeNetwork(t)

	start := time.Unix(1600000000, 0)
	client.now = func() time.Time { return start }

	tx := ledger.FileCreate{ExpirationTime: time.Now().Add(time.Hour), MaxFee: ledger.Hbar(5)}

	id, err := client.SubmitTransaction(tx)
	require.NoError(t, err)

	payload, err := TransactionPayload(id, tx)
	require.NoError(t, err)

	sig, err := client.signer.Sign(payload)
	require.NoError(t, err)

	err = network.Submit(Envelope{ID: id, Transaction: tx, Signature: sig})
	requirePrecheck(t, err, ledger.StatusDuplicateTransaction)

	next, err := client.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Nanosecond), next.ValidStart)
}

func TestClient_Timeout(t *testing.T) {
	network, client := makeNetwork(t)

	network.latency = 200 * time.Millisecond
	client.timeout = 10 * time.Millisecond

	_, err := client.SubmitTransaction(ledger.FileCreate{MaxFee: ledger.Hbar(5)})
	require.True(t, ledger.IsTimeout(err))
	require.EqualError(t, err, "submit FileCreate timed out")
}

func TestClient_Contract(t *testing.T) {
	network, client := makeNetwork(t)

	contractID := deploy(t, client, contracts.Greeter("hello"))
	require.Equal(t, "0.0.1002", contractID.String())

	cost, err := client.GetQueryCost(ledger.ContractInfoQuery{ContractID: contractID})
	require.NoError(t, err)
	require.Equal(t, ledger.Amount(1_000_000), cost)

	res, err := client.SubmitQuery(ledger.ContractInfoQuery{ContractID: contractID}, cost)
	require.NoError(t, err)

	info := res.(ledger.ContractInfo)
	require.Equal(t, contractID, info.ContractID)
	require.Equal(t, "0.0.1002", info.AccountID.String())
	require.Len(t, info.ContractAccountID, 40)
	require.True(t, client.GetOperator().PublicKey.Equal(info.AdminKey))
	require.Equal(t, int64(108), info.Storage)
	require.Equal(t, "0x01", info.LedgerID)
	require.False(t, info.Deleted)
	require.Empty(t, info.TokenRelationships)

	res, err = client.SubmitQuery(ledger.ContractBytecodeQuery{ContractID: contractID},
		ledger.Hbar(1))
	require.NoError(t, err)
	require.Len(t, res.(ledger.ContractBytecode), 108)

	params, err := abi.NewFunctionParameters().AddString("x").Encode("greet")
	require.NoError(t, err)

	res, err = client.SubmitQuery(ledger.ContractCallQuery{
		ContractID:         contractID,
		Gas:                100_000,
		FunctionParameters: params,
	}, ledger.Hbar(1))
	require.NoError(t, err)

	value, err := abi.FunctionResult(res.(ledger.ContractFunctionResult).Result).GetString(0)
	require.NoError(t, err)
	require.Equal(t, "hello", value)

	// An overpayment is refunded.
	before, err := network.Balance(operatorID)
	require.NoError(t, err)

	_, err = client.SubmitQuery(ledger.ContractInfoQuery{ContractID: contractID}, ledger.Hbar(2))
	require.NoError(t, err)

	after, err := network.Balance(operatorID)
	require.NoError(t, err)
	require.Equal(t, before-cost, after)

	_, err = client.SubmitQuery(ledger.ContractInfoQuery{ContractID: contractID}, cost-1)
	requirePrecheck(t, err, ledger.StatusInsufficientTxFee)

	_, err = client.SubmitQuery(ledger.ContractInfoQuery{ContractID: contractID}, ledger.Hbar(4))
	requirePrecheck(t, err, ledger.StatusMaxQueryPaymentExceeded)

	_, err = client.GetQueryCost(ledger.ContractInfoQuery{})
	requirePrecheck(t, err, ledger.StatusInvalidContractID)
}

func TestClient_Revert(t *testing.T) {
	_, client := makeNetwork(t)

	contractID := deploy(t, client, contracts.Reverter("nope"))

	res, err := client.SubmitQuery(ledger.ContractCallQuery{
		ContractID: contractID,
		Gas:        100_000,
	}, ledger.Hbar(1))
	require.NoError(t, err)
	require.Equal(t, "execution reverted: nope", res.(ledger.ContractFunctionResult).ErrorMessage)

	_, err = ledger.Execute(client, ledger.ContractExecute{
		ContractID: contractID,
		Gas:        100_000,
		MaxFee:     ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusContractRevertExecuted)

	_, err = ledger.Execute(client, ledger.ContractExecute{
		ContractID: contractID,
		Gas:        1,
		MaxFee:     ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInsufficientGas)
}

func TestClient_ContractCreateFailures(t *testing.T) {
	_, client := makeNetwork(t)

	create := func(contents string, period time.Duration) error {
		receipt, err := ledger.Execute(client, ledger.FileCreate{
			Contents:       []byte(contents),
			Keys:           []crypto.PublicKey{client.GetOperator().PublicKey},
			ExpirationTime: time.Now().Add(time.Hour),
			MaxFee:         ledger.Hbar(5),
		})
		require.NoError(t, err)

		_, err = ledger.Execute(client, ledger.ContractCreate{
			BytecodeFileID:  *receipt.FileID,
			Gas:             100_000,
			AutoRenewPeriod: period,
			MaxFee:          ledger.Hbar(20),
		})

		return err
	}

	requireReceipt(t, create("zz", 8_000_000*time.Second), ledger.StatusErrorDecodingBytestring)
	requireReceipt(t, create("", 8_000_000*time.Second), ledger.StatusContractBytecodeEmpty)
	requireReceipt(t, create("6080", time.Second), ledger.StatusInvalidAutoRenewPeriod)
	requireReceipt(t, create(contracts.Greeter("hi"), 8_000_000*time.Second+2*time.Second),
		ledger.StatusInvalidAutoRenewPeriod)

	_, err := ledger.Execute(client, ledger.ContractCreate{
		BytecodeFileID:  ledger.FileID{EntityID: ledger.EntityID{Num: 9999}},
		AutoRenewPeriod: 8_000_000 * time.Second,
		MaxFee:          ledger.Hbar(20),
	})
	requireReceipt(t, err, ledger.StatusInvalidFileID)
}

func TestClient_ContractDelete(t *testing.T) {
	network, client := makeNetwork(t)

	contractID := deploy(t, client, contracts.Counter())

	// Only the admin can delete the contract.
	otherID := ledger.AccountID{EntityID: ledger.EntityID{Num: 3}}
	other := ed25519.NewSigner()
	require.NoError(t, network.Genesis(otherID, other.GetPublicKey(), ledger.Hbar(100)))

	_, err := ledger.Execute(NewClient(network, otherID, other), ledger.ContractDelete{
		ContractID:        contractID,
		TransferAccountID: otherID,
		MaxFee:            ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInvalidSignature)

	_, err = ledger.Execute(client, ledger.ContractDelete{
		ContractID:        contractID,
		TransferAccountID: ledger.AccountID{EntityID: ledger.EntityID{Num: 404}},
		MaxFee:            ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusInvalidTransferAccountID)

	_, err = ledger.Execute(client, ledger.ContractDelete{
		ContractID:        contractID,
		TransferAccountID: operatorID,
		MaxFee:            ledger.Hbar(5),
	})
	require.NoError(t, err)

	_, err = ledger.Execute(client, ledger.ContractDelete{
		ContractID:        contractID,
		TransferAccountID: operatorID,
		MaxFee:            ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusContractDeleted)

	_, err = ledger.Execute(client, ledger.ContractExecute{
		ContractID: contractID,
		Gas:        100_000,
		MaxFee:     ledger.Hbar(5),
	})
	requireReceipt(t, err, ledger.StatusContractDeleted)

	_, err = client.GetQueryCost(ledger.ContractCallQuery{ContractID: contractID})
	requirePrecheck(t, err, ledger.StatusContractDeleted)

	_, err = client.GetQueryCost(ledger.ContractInfoQuery{ContractID: contractID})
	requirePrecheck(t, err, ledger.StatusContractDeleted)

	_, err = client.SubmitQuery(ledger.ContractBytecodeQuery{ContractID: contractID}, ledger.Hbar(1))
	requirePrecheck(t, err, ledger.StatusContractDeleted)
}

func TestClient_ContractStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := kv.New(path)
	require.NoError(t, err)

	network, client := openNetwork(t, db, ed25519.NewSigner())

	contractID := deploy(t, client, contracts.Counter())

	code := contractStorage(t, client, contractID)
	require.Positive(t, code)

	// A call query does not write the storage.
	callCounter(t, client, contractID)
	require.Equal(t, code, contractStorage(t, client, contractID))

	for i := 0; i < 3; i++ {
		_, err = ledger.Execute(client, ledger.ContractExecute{
			ContractID: contractID,
			Gas:        100_000,
			MaxFee:     ledger.Hbar(5),
		})
		require.NoError(t, err)
	}

	// The counter is kept in a single slot.
	require.Equal(t, "4", callCounter(t, client, contractID))
	require.Equal(t, code+SlotSize, contractStorage(t, client, contractID))

	signer := client.signer
	require.NoError(t, network.db.Close())

	db, err = kv.New(path)
	require.NoError(t, err)

	_, client = openNetwork(t, db, signer)
	require.Equal(t, code+SlotSize, contractStorage(t, client, contractID))
}

func TestNetwork_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := kv.New(path)
	require.NoError(t, err)

	network, client := openNetwork(t, db, ed25519.NewSigner())

	contractID := deploy(t, client, contracts.Counter())

	// A call query does not change the state.
	require.Equal(t, "1", callCounter(t, client, contractID))
	require.Equal(t, "1", callCounter(t, client, contractID))

	_, err = ledger.Execute(client, ledger.ContractExecute{
		ContractID: contractID,
		Gas:        100_000,
		MaxFee:     ledger.Hbar(5),
	})
	require.NoError(t, err)

	require.Equal(t, "2", callCounter(t, client, contractID))

	signer := client.signer
	require.NoError(t, network.db.Close())

	db, err = kv.New(path)
	require.NoError(t, err)

	_, client = openNetwork(t, db, signer)
	require.Equal(t, "2", callCounter(t, client, contractID))

	// A new contract gets a different address after the replay.
	other := deploy(t, client, contracts.Counter())
	require.Equal(t, "1", callCounter(t, client, other))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeNetwork(t *testing.T) (*Network, *Client) {
	db, err := kv.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	return openNetwork(t, db, ed25519.NewSigner())
}

func openNetwork(t *testing.T, db kv.DB, signer crypto.Signer) (*Network, *Client) {
	t.Cleanup(func() { db.Close() })

	network, err := Open(db, ledger.Testnet)
	require.NoError(t, err)

	require.NoError(t, network.Genesis(operatorID, signer.GetPublicKey(), DefaultGenesisBalance))

	return network, NewClient(network, operatorID, signer)
}

func deploy(t *testing.T, client *Client, code string) ledger.ContractID {
	_, err := hex.DecodeString(code)
	require.NoError(t, err)

	receipt, err := ledger.Execute(client, ledger.FileCreate{
		Contents:       []byte(code),
		Keys:           []crypto.PublicKey{client.GetOperator().PublicKey},
		ExpirationTime: time.Now().Add(time.Hour),
		MaxFee:         ledger.Hbar(5),
	})
	require.NoError(t, err)

	receipt, err = ledger.Execute(client, ledger.ContractCreate{
		BytecodeFileID:  *receipt.FileID,
		AdminKey:        client.GetOperator().PublicKey,
		Gas:             1_000_000,
		AutoRenewPeriod: 8_000_000 * time.Second,
		MaxFee:          ledger.Hbar(20),
	})
	require.NoError(t, err)

	return *receipt.ContractID
}

func callCounter(t *testing.T, client *Client, id ledger.ContractID) string {
	res, err := client.SubmitQuery(ledger.ContractCallQuery{
		ContractID: id,
		Gas:        100_000,
	}, ledger.Hbar(1))
	require.NoError(t, err)

	result := res.(ledger.ContractFunctionResult)
	require.Empty(t, result.ErrorMessage)

	value, err := abi.FunctionResult(result.Result).GetString(0)
	require.NoError(t, err)

	return value
}

func contractStorage(t *testing.T, client *Client, id ledger.ContractID) int64 {
	res, err := client.SubmitQuery(ledger.ContractInfoQuery{ContractID: id}, ledger.Hbar(1))
	require.NoError(t, err)

	return res.(ledger.ContractInfo).Storage
}

func requirePrecheck(t *testing.T, err error, status ledger.Status) {
	precheck, ok := ledger.IsPrecheck(err)
	require.True(t, ok, "expected precheck but got %v", err)
	require.Equal(t, status, precheck.Status)
}

func requireReceipt(t *testing.T, err error, status ledger.Status) {
	receipt, ok := ledger.IsReceipt(err)
	require.True(t, ok, "expected receipt error but got %v", err)
	require.Equal(t, status, receipt.Status)
}
