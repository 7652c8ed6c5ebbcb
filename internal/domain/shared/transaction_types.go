package shared

// TransactionState defines the lifecycle of a card charge
type TransactionState string

const (
	TransactionStatePending TransactionState = "PENDING"
	TransactionStateDone    TransactionState = "DONE"
	TransactionStateTimeout TransactionState = "TIMEOUT"
	TransactionStateError   TransactionState = "ERROR"
)

// IsFinal reports whether the state is terminal. Terminal states never change.
func (s TransactionState) IsFinal() bool {
	switch s {
	case TransactionStateDone, TransactionStateTimeout, TransactionStateError:
		return true
	default:
		return false
	}
}

// ExchangeOperation names a call made to (or received from) the terminal gateway
type ExchangeOperation string

const (
	ExchangeOperationAddRequest   ExchangeOperation = "AddRequest"
	ExchangeOperationCheckRequest ExchangeOperation = "CheckRequest"
	ExchangeOperationCallback     ExchangeOperation = "Callback"
)
