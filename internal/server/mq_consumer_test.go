package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payment-service/internal/biz"
	"payment-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettlementLog struct {
	seen map[string]bool
	err  error
}

func (m *memSettlementLog) Record(_ context.Context, events []*biz.SettledEvent) ([]*biz.SettledEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	var fresh []*biz.SettledEvent
	for _, e := range events {
		if m.seen[e.TradeNo] {
			continue
		}
		m.seen[e.TradeNo] = true
		fresh = append(fresh, e)
	}
	return fresh, nil
}

func settledMsg(t *testing.T, tradeNo string) *primitive.MessageExt {
	body, err := json.Marshal(&biz.SettledEvent{TradeNo: tradeNo, TotalAmount: 100})
	require.NoError(t, err)
	return &primitive.MessageExt{Message: primitive.Message{Body: body}, MsgId: tradeNo}
}

func TestMQConsumerHandle(t *testing.T) {
	repo := &memSettlementLog{seen: map[string]bool{}}
	hooks := biz.NewPaymentHooks(nil, log.DefaultLogger)
	var got []string
	hooks.SettledAsync.On("test", func(_ context.Context, e *biz.SettledEvent) error {
		got = append(got, e.TradeNo)
		return nil
	})
	uc := biz.NewSettlementUseCase(repo, hooks, log.DefaultLogger)
	s := NewMQConsumerServer(&conf.Bootstrap{}, uc, log.DefaultLogger)

	ctx := context.Background()
	broken := &primitive.MessageExt{Message: primitive.Message{Body: []byte("{")}, MsgId: "bad"}
	res, err := s.handle(ctx, settledMsg(t, "T1"), broken, settledMsg(t, "T2"))
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeSuccess, res)
	assert.Equal(t, []string{"T1", "T2"}, got)

	// 重复投递不再触发订阅方
	res, err = s.handle(ctx, settledMsg(t, "T1"))
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeSuccess, res)
	assert.Len(t, got, 2)

	res, err = s.handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeSuccess, res)
}

func TestMQConsumerRetryOnStoreError(t *testing.T) {
	repo := &memSettlementLog{seen: map[string]bool{}, err: errors.New("db down")}
	uc := biz.NewSettlementUseCase(repo, biz.NewPaymentHooks(nil, log.DefaultLogger), log.DefaultLogger)
	s := NewMQConsumerServer(&conf.Bootstrap{}, uc, log.DefaultLogger)

	res, err := s.handle(context.Background(), settledMsg(t, "T9"))
	require.NoError(t, err)
	assert.Equal(t, consumer.ConsumeRetryLater, res)
}

func TestMQConsumerDisabled(t *testing.T) {
	s := NewMQConsumerServer(&conf.Bootstrap{}, nil, log.DefaultLogger)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
