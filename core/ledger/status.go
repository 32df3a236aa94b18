package ledger

// Status is the response code of the network to a transaction or a query.
type Status int

const (
	// StatusOK means the request passed the precheck of the node.
	StatusOK Status = iota
	// StatusSuccess means the transaction reached consensus and was applied.
	StatusSuccess
	StatusInvalidSignature
	StatusInsufficientTxFee
	StatusInsufficientPayerBalance
	StatusPayerAccountNotFound
	StatusTransactionOversize
	StatusInvalidFileID
	StatusFileDeleted
	StatusInvalidExpirationTime
	StatusMaxFileSizeExceeded
	StatusInvalidContractID
	StatusContractDeleted
	StatusContractBytecodeEmpty
	StatusErrorDecodingBytestring
	StatusContractRevertExecuted
	StatusContractExecutionException
	StatusInsufficientGas
	StatusModifyingImmutableContract
	StatusInvalidTransferAccountID
	StatusInvalidAutoRenewPeriod
	StatusInvalidTransaction
	StatusMaxQueryPaymentExceeded
	StatusDuplicateTransaction
	StatusReceiptNotFound
	StatusInvalidFileWACL
)

var statusNames = map[Status]string{
	StatusOK:                         "OK",
	StatusSuccess:                    "SUCCESS",
	StatusInvalidSignature:           "INVALID_SIGNATURE",
	StatusInsufficientTxFee:          "INSUFFICIENT_TX_FEE",
	StatusInsufficientPayerBalance:   "INSUFFICIENT_PAYER_BALANCE",
	StatusPayerAccountNotFound:       "PAYER_ACCOUNT_NOT_FOUND",
	StatusTransactionOversize:        "TRANSACTION_OVERSIZE",
	StatusInvalidFileID:              "INVALID_FILE_ID",
	StatusFileDeleted:                "FILE_DELETED",
	StatusInvalidExpirationTime:      "INVALID_EXPIRATION_TIME",
	StatusMaxFileSizeExceeded:        "MAX_FILE_SIZE_EXCEEDED",
	StatusInvalidContractID:          "INVALID_CONTRACT_ID",
	StatusContractDeleted:            "CONTRACT_DELETED",
	StatusContractBytecodeEmpty:      "CONTRACT_BYTECODE_EMPTY",
	StatusErrorDecodingBytestring:    "ERROR_DECODING_BYTESTRING",
	StatusContractRevertExecuted:     "CONTRACT_REVERT_EXECUTED",
	StatusContractExecutionException: "CONTRACT_EXECUTION_EXCEPTION",
	StatusInsufficientGas:            "INSUFFICIENT_GAS",
	StatusModifyingImmutableContract: "MODIFYING_IMMUTABLE_CONTRACT",
	StatusInvalidTransferAccountID:   "INVALID_TRANSFER_ACCOUNT_ID",
	StatusInvalidAutoRenewPeriod:     "INVALID_RENEWAL_PERIOD",
	StatusInvalidTransaction:         "INVALID_TRANSACTION",
	StatusMaxQueryPaymentExceeded:    "MAX_QUERY_PAYMENT_EXCEEDED",
	StatusDuplicateTransaction:       "DUPLICATE_TRANSACTION",
	StatusReceiptNotFound:            "RECEIPT_NOT_FOUND",
	StatusInvalidFileWACL:            "INVALID_FILE_WACL",
}

// String implements fmt.Stringer. It returns the name of the status as the
// network prints it.
func (s Status) String() string {
	name, found := statusNames[s]
	if !found {
		return "UNKNOWN"
	}

	return name
}
