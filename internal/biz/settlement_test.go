package biz

import (
	"context"
	"testing"

	"payment-service/internal/constants"
	"payment-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettlementLog struct {
	seen map[string]bool
}

func (m *memSettlementLog) Record(_ context.Context, events []*SettledEvent) ([]*SettledEvent, error) {
	var fresh []*SettledEvent
	for _, e := range events {
		if m.seen[e.TradeNo] {
			continue
		}
		m.seen[e.TradeNo] = true
		fresh = append(fresh, e)
	}
	return fresh, nil
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestSettlementConsumeRecordsMetrics(t *testing.T) {
	hooks := NewPaymentHooks(nil, log.DefaultLogger)
	uc := NewSettlementUseCase(&memSettlementLog{seen: map[string]bool{}}, hooks, log.DefaultLogger)
	m := metrics.GetMetrics()
	ctx := context.Background()

	count := counterValue(m.SettledConsumedTotal.WithLabelValues("deposit"))
	amount := counterValue(m.SettledAmountTotal.WithLabelValues("deposit"))

	events := []*SettledEvent{
		{TradeNo: "M1", Type: constants.OrderTypeDeposit, TotalAmount: 1000, HandlingAmount: 25},
		{TradeNo: "M2", Type: constants.OrderTypeDeposit, TotalAmount: 500},
	}
	require.NoError(t, uc.Consume(ctx, events))
	assert.Equal(t, count+2, counterValue(m.SettledConsumedTotal.WithLabelValues("deposit")))
	assert.Equal(t, amount+1525, counterValue(m.SettledAmountTotal.WithLabelValues("deposit")))

	// 重复投递不重复计数
	require.NoError(t, uc.Consume(ctx, events[:1]))
	assert.Equal(t, count+2, counterValue(m.SettledConsumedTotal.WithLabelValues("deposit")))
}

func TestOrderTypeLabel(t *testing.T) {
	assert.Equal(t, "deposit", OrderTypeLabel(constants.OrderTypeDeposit))
	assert.Equal(t, "subscribe", OrderTypeLabel(constants.OrderTypeSubscribe))
	assert.Equal(t, "other", OrderTypeLabel(42))
}
