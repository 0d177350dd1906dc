package broker

import (
	"log"
	"strings"

	"github.com/k0msak007/jobber-chat/internal/config"
)

// NewBroker creates a Broker based on the application configuration. AMQP_URL
// selects the RabbitMQ backend; otherwise KAFKA_BROKERS selects Kafka; with
// neither set an InMemoryBroker is used for single-node deployments.
func NewBroker(cfg *config.Config) (Broker, error) {
	if cfg.AMQPURL != "" {
		log.Printf("broker: using AMQPBroker at %s", cfg.AMQPURL)
		return NewAMQPBroker(cfg.AMQPURL)
	}

	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		log.Printf("broker: using KafkaBroker with brokers=%v group=%s", brokers, cfg.KafkaConsumerGroup)
		return NewKafkaBroker(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		})
	}

	log.Println("broker: using InMemoryBroker (AMQP_URL and KAFKA_BROKERS not set)")
	return NewInMemoryBroker(), nil
}
