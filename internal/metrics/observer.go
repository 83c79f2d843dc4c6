package metrics

import (
	"github.com/vietddude/walletguard/internal/security/engine"
)

// Observer feeds engine notifications into the collectors.
type Observer struct{}

func (Observer) OperationDone(op string, err error) {
	if err == nil {
		OperationsTotal.WithLabelValues(op, "ok").Inc()
		return
	}
	OperationsTotal.WithLabelValues(op, "error").Inc()
	RejectionsTotal.WithLabelValues(op, string(engine.Classify(err))).Inc()
}

func (Observer) StateChanged(pendingQueued, activeRecoveries int) {
	QueuedTransactions.Set(float64(pendingQueued))
	ActiveRecoveries.Set(float64(activeRecoveries))
}
