package local

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/store/kv"
	"golang.org/x/xerrors"
)

// QueryCost returns the cost of the query. Estimating the cost is free.
func (n *Network) QueryCost(q ledger.Query) (ledger.Amount, error) {
	n.Lock()
	defer n.Unlock()

	var cost ledger.Amount

	err := n.db.View(func(tx kv.ReadableTx) error {
		var err error
		cost, err = n.cost(store{tx: tx}, q)

		return err
	})

	return cost, err
}

func (n *Network) cost(s store, q ledger.Query) (ledger.Amount, error) {
	switch t := q.(type) {
	case ledger.ContractInfoQuery:
		_, err := n.readContract(s, t.ContractID, true)
		if err != nil {
			return 0, err
		}

		return n.fees.QueryCost(t.Type(), 0), nil
	case ledger.ContractBytecodeQuery:
		rec, err := n.readContract(s, t.ContractID, true)
		if err != nil {
			return 0, err
		}

		code := n.machine.code(common.HexToAddress(rec.Address))

		return n.fees.QueryCost(t.Type(), len(code)), nil
	case ledger.ContractCallQuery:
		_, err := n.readContract(s, t.ContractID, true)
		if err != nil {
			return 0, err
		}

		return n.fees.QueryCost(t.Type(), len(t.FunctionParameters)), nil
	default:
		return 0, &ledger.PrecheckError{Status: ledger.StatusInvalidTransaction}
	}
}

// Query answers the query after charging the payer. Only the cost is charged
// when the payment is above it.
func (n *Network) Query(env QueryEnvelope) (ledger.Result, error) {
	n.Lock()
	defer n.Unlock()

	var res ledger.Result

	err := n.db.Update(func(tx kv.WritableTx) error {
		w := newWriter(tx)

		account, err := n.precheck(w.store, env.Payer, env.Signature, func() ([]byte, error) {
			return QueryPayload(env.Payer, env.Payment, env.Query)
		})
		if err != nil {
			return err
		}

		cost, err := n.cost(w.store, env.Query)
		if err != nil {
			return err
		}

		if env.Payment < cost {
			return &ledger.PrecheckError{Status: ledger.StatusInsufficientTxFee}
		}

		if account.Balance < cost {
			return &ledger.PrecheckError{Status: ledger.StatusInsufficientPayerBalance}
		}

		res, err = n.answer(w.store, env.Payer, env.Query)
		if err != nil {
			return err
		}

		account.Balance -= cost

		promFees.Add(float64(cost))

		return w.setAccount(env.Payer, account)
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (n *Network) answer(s store, payer ledger.AccountID, q ledger.Query) (ledger.Result, error) {
	switch t := q.(type) {
	case ledger.ContractInfoQuery:
		return n.info(s, t.ContractID)
	case ledger.ContractBytecodeQuery:
		rec, err := n.readContract(s, t.ContractID, true)
		if err != nil {
			return nil, err
		}

		return ledger.ContractBytecode(n.machine.code(common.HexToAddress(rec.Address))), nil
	case ledger.ContractCallQuery:
		rec, err := n.readContract(s, t.ContractID, true)
		if err != nil {
			return nil, err
		}

		exec := n.machine.staticCall(accountAddress(payer), common.HexToAddress(rec.Address),
			t.FunctionParameters, t.Gas, n.now())

		res := ledger.ContractFunctionResult{
			ContractID:   t.ContractID,
			Result:       exec.Output,
			ErrorMessage: exec.errorMessage(),
			GasUsed:      exec.GasUsed,
		}

		return res, nil
	default:
		return nil, &ledger.PrecheckError{Status: ledger.StatusInvalidTransaction}
	}
}

func (n *Network) info(s store, id ledger.ContractID) (ledger.ContractInfo, error) {
	rec, err := n.readContract(s, id, true)
	if err != nil {
		return ledger.ContractInfo{}, err
	}

	accountID := ledger.AccountID{EntityID: id.EntityID}

	account, _, err := s.account(accountID)
	if err != nil {
		return ledger.ContractInfo{}, err
	}

	addr := common.HexToAddress(rec.Address)

	info := ledger.ContractInfo{
		ContractID:         id,
		AccountID:          accountID,
		ContractAccountID:  strings.TrimPrefix(strings.ToLower(rec.Address), "0x"),
		ExpirationTime:     rec.CreatedAt.Add(rec.AutoRenewPeriod),
		AutoRenewPeriod:    rec.AutoRenewPeriod,
		Storage:            n.machine.storageSize(addr),
		Balance:            account.Balance,
		Deleted:            rec.Deleted,
		LedgerID:           n.network.LedgerID(),
		TokenRelationships: map[ledger.TokenID]ledger.TokenRelationship{},
	}

	if rec.AdminKey != "" {
		info.AdminKey, err = n.keyFactory.FromText(rec.AdminKey)
		if err != nil {
			return info, xerrors.Errorf("invalid admin key: %v", err)
		}
	}

	return info, nil
}

// readContract returns the contract or a precheck error if it does not exist,
// or if it is deleted and live is true.
func (n *Network) readContract(s store, id ledger.ContractID, live bool) (contractRecord, error) {
	rec, found, err := s.contract(id)
	if err != nil {
		return rec, err
	}

	if !found {
		return rec, &ledger.PrecheckError{Status: ledger.StatusInvalidContractID}
	}

	if live && rec.Deleted {
		return rec, &ledger.PrecheckError{Status: ledger.StatusContractDeleted}
	}

	return rec, nil
}
