package mq

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// MessageEnvelope 实时消息在 Kafka 上的载体。身份字段来自发送连接的
// JWT，消费端落库前仍会重新校验群组成员资格。
type MessageEnvelope struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"user_name"`
	GroupID  uint   `json:"group_id"`
	Content  string `json:"content"`
}

// KafkaProducer 同步生产者
type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer 连接 broker 并创建生产者
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaProducer{
		producer: producer,
		topic:    topic,
	}, nil
}

// SendEnvelope 按群组作为分区键发送一条消息
func (k *KafkaProducer) SendEnvelope(envelope *MessageEnvelope) error {
	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("group-%d", envelope.GroupID)),
		Value: sarama.ByteEncoder(bytes),
	}

	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to kafka: %w", err)
	}
	return nil
}

func (k *KafkaProducer) Close() error {
	return k.producer.Close()
}
