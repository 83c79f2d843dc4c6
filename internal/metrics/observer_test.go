package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vietddude/walletguard/internal/security/engine"
)

func TestObserverCountsOperations(t *testing.T) {
	var o Observer
	okBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues("deposit", "ok"))
	lockedBefore := testutil.ToFloat64(RejectionsTotal.WithLabelValues("deposit", "state"))

	o.OperationDone("deposit", nil)
	o.OperationDone("deposit", engine.ErrWalletLocked)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("deposit", "ok")))
	assert.Equal(t, lockedBefore+1, testutil.ToFloat64(RejectionsTotal.WithLabelValues("deposit", "state")))
}

func TestObserverGauges(t *testing.T) {
	var o Observer
	o.StateChanged(3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(QueuedTransactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(ActiveRecoveries))
}
