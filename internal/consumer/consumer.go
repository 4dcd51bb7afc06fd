package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/services"
	logger "github.com/parleychat/parley/middleware/log"
	"github.com/parleychat/parley/pkg/mq"
)

// MessageConsumer 消费实时消息：重新校验成员资格、落库、触发广播。
// 校验失败或业务错误的消息直接标记消费，不进死循环。
type MessageConsumer struct {
	messageService *services.MessageService
	logger         *logger.Logger
}

func NewMessageConsumer(messageService *services.MessageService, log *logger.Logger) *MessageConsumer {
	return &MessageConsumer{
		messageService: messageService,
		logger:         log,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *MessageConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *MessageConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (c *MessageConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var envelope mq.MessageEnvelope
		if err := json.Unmarshal(message.Value, &envelope); err != nil {
			c.logger.Warn("failed to decode kafka envelope", zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}

		caller := services.Caller{ID: envelope.UserID, Name: envelope.UserName}
		_, err := c.messageService.SendMessageRealtime(session.Context(), envelope.GroupID, caller, envelope.Content)
		if err != nil {
			if errors.Is(err, services.ErrNotMember) || errors.Is(err, services.ErrBadRequest) {
				c.logger.Warn("dropping rejected realtime message",
					zap.Uint("user_id", envelope.UserID),
					zap.Uint("group_id", envelope.GroupID),
					zap.Error(err))
			} else {
				c.logger.Error("failed to persist realtime message",
					zap.Uint("group_id", envelope.GroupID),
					zap.Error(err))
			}
			session.MarkMessage(message, "")
			continue
		}

		session.MarkMessage(message, "")
	}
	return nil
}

// StartConsumer 启动消费者组循环
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, consumer *MessageConsumer) error {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}

	go func() {
		defer client.Close()
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				consumer.logger.Error("kafka consume error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}
