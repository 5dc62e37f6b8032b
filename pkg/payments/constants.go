package payments

const (
	operationCreatePending = "create_pending"
	operationRecordDirect  = "record_direct"
	operationMarkOutcome   = "mark_outcome"
	operationTotal         = "total_for_account"
	operationVerify        = "verify"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
