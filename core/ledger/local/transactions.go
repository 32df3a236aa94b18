package local

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/indemnify/cman/core/ledger"
	"golang.org/x/xerrors"
)

// applyContext is the environment of a transaction being applied.
type applyContext struct {
	writer
	payer ledger.AccountID
	key   string
	now   time.Time
}

type applyResult struct {
	receipt receiptRecord
	gasUsed uint64
}

func withStatus(status ledger.Status) (applyResult, error) {
	return applyResult{receipt: receiptRecord{Status: status}}, nil
}

func (n *Network) apply(ctx applyContext, tx ledger.Transaction) (applyResult, error) {
	switch t := tx.(type) {
	case ledger.FileCreate:
		return n.applyFileCreate(ctx, t)
	case ledger.FileAppend:
		return n.applyFileAppend(ctx, t)
	case ledger.ContractCreate:
		return n.applyContractCreate(ctx, t)
	case ledger.ContractDelete:
		return n.applyContractDelete(ctx, t)
	case ledger.ContractExecute:
		return n.applyContractExecute(ctx, t)
	default:
		return withStatus(ledger.StatusInvalidTransaction)
	}
}

func (n *Network) applyFileCreate(ctx applyContext, tx ledger.FileCreate) (applyResult, error) {
	if !tx.ExpirationTime.After(ctx.now) {
		return withStatus(ledger.StatusInvalidExpirationTime)
	}

	if len(tx.Contents) > MaxFileSize {
		return withStatus(ledger.StatusMaxFileSizeExceeded)
	}

	keys := make([]string, len(tx.Keys))
	for i, key := range tx.Keys {
		text, err := key.MarshalText()
		if err != nil {
			return withStatus(ledger.StatusInvalidFileWACL)
		}

		keys[i] = string(text)
	}

	id, err := ctx.nextEntity()
	if err != nil {
		return applyResult{}, err
	}

	fileID := ledger.FileID{EntityID: id}

	rec := fileRecord{
		Contents:   tx.Contents,
		Keys:       keys,
		Expiration: tx.ExpirationTime,
	}

	err = ctx.setFile(fileID, rec)
	if err != nil {
		return applyResult{}, err
	}

	res := applyResult{
		receipt: receiptRecord{Status: ledger.StatusSuccess, FileID: fileID.String()},
	}

	return res, nil
}

func (n *Network) applyFileAppend(ctx applyContext, tx ledger.FileAppend) (applyResult, error) {
	rec, status, err := ctx.liveFile(tx.FileID)
	if err != nil || status != ledger.StatusSuccess {
		return applyResult{receipt: receiptRecord{Status: status}}, err
	}

	if !containsKey(rec.Keys, ctx.key) {
		return withStatus(ledger.StatusInvalidSignature)
	}

	if len(rec.Contents)+len(tx.Contents) > MaxFileSize {
		return withStatus(ledger.StatusMaxFileSizeExceeded)
	}

	rec.Contents = append(rec.Contents, tx.Contents...)

	err = ctx.setFile(tx.FileID, rec)
	if err != nil {
		return applyResult{}, err
	}

	return withStatus(ledger.StatusSuccess)
}

func (n *Network) applyContractCreate(ctx applyContext, tx ledger.ContractCreate) (applyResult, error) {
	file, status, err := ctx.liveFile(tx.BytecodeFileID)
	if err != nil || status != ledger.StatusSuccess {
		return applyResult{receipt: receiptRecord{Status: status}}, err
	}

	if tx.AutoRenewPeriod < MinAutoRenewPeriod || tx.AutoRenewPeriod > MaxAutoRenewPeriod {
		return withStatus(ledger.StatusInvalidAutoRenewPeriod)
	}

	text := strings.TrimPrefix(strings.TrimSpace(string(file.Contents)), "0x")

	code, err := hex.DecodeString(text)
	if err != nil {
		return withStatus(ledger.StatusErrorDecodingBytestring)
	}

	if len(code) == 0 {
		return withStatus(ledger.StatusContractBytecodeEmpty)
	}

	var adminKey string
	if tx.AdminKey != nil {
		data, err := tx.AdminKey.MarshalText()
		if err != nil {
			return withStatus(ledger.StatusInvalidTransaction)
		}

		adminKey = string(data)
	}

	origin := accountAddress(ctx.payer)

	exec := n.machine.create(origin, code, tx.Gas, ctx.now)

	// The nonce of the origin changes even if the creation fails, therefore
	// every attempt is journaled.
	err = ctx.appendJournal(journalEntry{
		Kind:   journalCreate,
		Origin: origin.Hex(),
		Input:  code,
		Gas:    tx.Gas,
		Time:   ctx.now.Unix(),
	})
	if err != nil {
		return applyResult{}, err
	}

	if exec.Err != nil {
		n.logger.Debug().Err(exec.Err).Msg("contract creation failed")

		return applyResult{
			receipt: receiptRecord{Status: exec.status()},
			gasUsed: exec.GasUsed,
		}, nil
	}

	id, err := ctx.nextEntity()
	if err != nil {
		return applyResult{}, err
	}

	contractID := ledger.ContractID{EntityID: id}

	rec := contractRecord{
		Address:         exec.Address.Hex(),
		AdminKey:        adminKey,
		BytecodeFileID:  tx.BytecodeFileID.String(),
		AutoRenewPeriod: tx.AutoRenewPeriod,
		CreatedAt:       ctx.now,
	}

	err = ctx.setContract(contractID, rec)
	if err != nil {
		return applyResult{}, err
	}

	// A contract also owns an account with the same number.
	err = ctx.setAccount(ledger.AccountID{EntityID: id}, accountRecord{Key: adminKey})
	if err != nil {
		return applyResult{}, err
	}

	res := applyResult{
		receipt: receiptRecord{Status: ledger.StatusSuccess, ContractID: contractID.String()},
		gasUsed: exec.GasUsed,
	}

	return res, nil
}

func (n *Network) applyContractDelete(ctx applyContext, tx ledger.ContractDelete) (applyResult, error) {
	rec, status, err := ctx.liveContract(tx.ContractID)
	if err != nil || status != ledger.StatusSuccess {
		return applyResult{receipt: receiptRecord{Status: status}}, err
	}

	if rec.AdminKey == "" {
		return withStatus(ledger.StatusModifyingImmutableContract)
	}

	if rec.AdminKey != ctx.key {
		return withStatus(ledger.StatusInvalidSignature)
	}

	target, found, err := ctx.account(tx.TransferAccountID)
	if err != nil {
		return applyResult{}, err
	}

	if !found || tx.TransferAccountID.EntityID == tx.ContractID.EntityID {
		return withStatus(ledger.StatusInvalidTransferAccountID)
	}

	contractAccount := ledger.AccountID{EntityID: tx.ContractID.EntityID}

	account, _, err := ctx.account(contractAccount)
	if err != nil {
		return applyResult{}, err
	}

	target.Balance += account.Balance
	account.Balance = 0
	rec.Deleted = true

	err = ctx.setAccount(tx.TransferAccountID, target)
	if err != nil {
		return applyResult{}, err
	}

	err = ctx.setAccount(contractAccount, account)
	if err != nil {
		return applyResult{}, err
	}

	err = ctx.setContract(tx.ContractID, rec)
	if err != nil {
		return applyResult{}, err
	}

	return withStatus(ledger.StatusSuccess)
}

func (n *Network) applyContractExecute(ctx applyContext, tx ledger.ContractExecute) (applyResult, error) {
	rec, status, err := ctx.liveContract(tx.ContractID)
	if err != nil || status != ledger.StatusSuccess {
		return applyResult{receipt: receiptRecord{Status: status}}, err
	}

	origin := accountAddress(ctx.payer)
	addr := common.HexToAddress(rec.Address)

	exec := n.machine.call(origin, addr, tx.FunctionParameters, tx.Gas, ctx.now)

	res := applyResult{
		receipt: receiptRecord{Status: exec.status()},
		gasUsed: exec.GasUsed,
	}

	if exec.Err != nil {
		n.logger.Debug().Err(exec.Err).Str("reason", exec.errorMessage()).Msg("execution failed")

		return res, nil
	}

	err = ctx.appendJournal(journalEntry{
		Kind:     journalExecute,
		Origin:   origin.Hex(),
		Contract: rec.Address,
		Input:    tx.FunctionParameters,
		Gas:      tx.Gas,
		Time:     ctx.now.Unix(),
	})
	if err != nil {
		return applyResult{}, err
	}

	return res, nil
}

// liveFile returns the file if it exists and is neither deleted nor expired.
func (ctx applyContext) liveFile(id ledger.FileID) (fileRecord, ledger.Status, error) {
	rec, found, err := ctx.file(id)
	if err != nil {
		return rec, 0, xerrors.Errorf("failed to read file: %v", err)
	}

	if !found {
		return rec, ledger.StatusInvalidFileID, nil
	}

	if rec.Deleted || !rec.Expiration.After(ctx.now) {
		return rec, ledger.StatusFileDeleted, nil
	}

	return rec, ledger.StatusSuccess, nil
}

// liveContract returns the contract if it exists and is not deleted.
func (ctx applyContext) liveContract(id ledger.ContractID) (contractRecord, ledger.Status, error) {
	rec, found, err := ctx.contract(id)
	if err != nil {
		return rec, 0, xerrors.Errorf("failed to read contract: %v", err)
	}

	if !found {
		return rec, ledger.StatusInvalidContractID, nil
	}

	if rec.Deleted {
		return rec, ledger.StatusContractDeleted, nil
	}

	return rec, ledger.StatusSuccess, nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}

	return false
}
