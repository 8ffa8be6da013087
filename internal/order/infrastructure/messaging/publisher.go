// Package messaging 订单事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/pkg/mq"
)

// KafkaEventPublisher 将订单事件发布到 Kafka
// 以 order_id 作为分区键，保证同一订单的事件有序
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaEventPublisher 创建订单事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// Publish 发布订单事件
func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	return p.producer.SendMessage(ctx, p.topic, event.OrderID, event)
}

var _ domain.EventPublisher = (*KafkaEventPublisher)(nil)
