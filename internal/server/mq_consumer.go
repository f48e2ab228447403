package server

import (
	"context"
	"encoding/json"

	"payment-service/internal/biz"
	"payment-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer consumes payment.settled events from RocketMQ
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	uc      *biz.SettlementUseCase
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Bootstrap, uc *biz.SettlementUseCase, logger log.Logger) *MQConsumerServer {
	s := &MQConsumerServer{
		uc:  uc,
		log: log.NewHelper(logger),
	}
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return s
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(100),
	)
	if err != nil {
		s.log.Errorf("init consumer error: %v", err)
		return s
	}

	s.c = r
	s.conf = c.Data
	s.enabled = true
	return s
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.Topic)

	if err := s.c.Subscribe(s.conf.Rocketmq.Topic, consumer.MessageSelector{}, s.handle); err != nil {
		// RocketMQ 不可用时不阻塞主服务启动
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.Topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handle(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	if len(msgs) == 0 {
		return consumer.ConsumeSuccess, nil
	}

	events := make([]*biz.SettledEvent, 0, len(msgs))
	for _, msg := range msgs {
		var event biz.SettledEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal message failed: msg_id=%s, error=%v", msg.MsgId, err)
			continue
		}
		events = append(events, &event)
	}

	if err := s.uc.Consume(ctx, events); err != nil {
		s.log.Errorf("consume settled events failed: count=%d, error=%v", len(events), err)
		return consumer.ConsumeRetryLater, nil
	}
	return consumer.ConsumeSuccess, nil
}
