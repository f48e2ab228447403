package data

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/biz"
	"payment-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
)

// settledPublisher 将 payment.settled 事件投递到 RocketMQ
type settledPublisher struct {
	mq    rocketmq.Producer
	topic string
	log   *log.Helper
}

// NewSettledPublisher 创建结算事件生产者；未启用 RocketMQ 时只记录日志
func NewSettledPublisher(c *conf.Bootstrap, logger log.Logger) (biz.SettledPublisher, func(), error) {
	helper := log.NewHelper(logger)
	p := &settledPublisher{log: helper}
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return p, func() {}, nil
	}
	mq := c.Data.Rocketmq

	group := mq.ProducerGroup
	if group == "" {
		group = mq.GroupName + "_producer"
	}
	pr, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		producer.WithGroupName(group),
		producer.WithRetry(int(mq.RetryTimes)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init rocketmq producer: %w", err)
	}
	if err := pr.Start(); err != nil {
		return nil, nil, fmt.Errorf("start rocketmq producer: %w", err)
	}
	p.mq = pr
	p.topic = mq.Topic

	cleanup := func() {
		if err := pr.Shutdown(); err != nil {
			helper.Errorf("failed to shutdown rocketmq producer: %v", err)
		}
	}
	return p, cleanup, nil
}

func (p *settledPublisher) PublishSettled(ctx context.Context, event *biz.SettledEvent) error {
	if p.mq == nil {
		p.log.WithContext(ctx).Debugf("rocketmq disabled, settled event not published: trade_no=%s", event.TradeNo)
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(p.topic, body)
	msg.WithKeys([]string{event.TradeNo})
	if _, err := p.mq.SendSync(ctx, msg); err != nil {
		p.log.WithContext(ctx).Errorf("Send RocketMQ failed: trade_no=%s, error=%v", event.TradeNo, err)
		return err
	}
	return nil
}
