package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldKind          = "kind"
	FieldPocketID      = "pocket_id"
	FieldToPocketID    = "to_pocket_id"
	FieldGoalID        = "goal_id"
	FieldAmountCents   = "amount_cents"
	FieldDeletions     = "deletions"
	FieldInsertions    = "insertions"
	FieldBackend       = "backend"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpIncome       = "record_income"
	OpExpense      = "record_expense"
	OpTransfer     = "transfer_between_pockets"
	OpAllocate     = "allocate_to_goal"
	OpWithdraw     = "withdraw_from_goal"
	OpUpdate       = "update_transaction"
	OpRemove       = "remove_transaction"
	OpDeletePocket = "delete_pocket"
	OpSync         = "sync"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of a ledger record. Empty ids are skipped.
func (f LogFields) WithTransaction(id, kind string, amountCents int64) LogFields {
	if id != "" {
		f[FieldTransactionID] = id
	}
	if kind != "" {
		f[FieldKind] = kind
	}
	f[FieldAmountCents] = amountCents
	return f
}

// WithPocket adds source and destination pocket fields. Empty ids are skipped.
func (f LogFields) WithPocket(pocketID, toPocketID string) LogFields {
	if pocketID != "" {
		f[FieldPocketID] = pocketID
	}
	if toPocketID != "" {
		f[FieldToPocketID] = toPocketID
	}
	return f
}

// WithGoal adds goal field
func (f LogFields) WithGoal(goalID string) LogFields {
	if goalID != "" {
		f[FieldGoalID] = goalID
	}
	return f
}

// ToSlice converts LogFields to a slice for slog, in key order.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}
