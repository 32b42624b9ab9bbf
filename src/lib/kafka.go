package lib

import (
	"encoding/json"
	"log"
	"os"

	"vms/src/types"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// KafkaProduceMessage publishes a JSON payload to the given topic. Callers on
// the reconciliation path fire this in a goroutine; delivery is best-effort.
func KafkaProduceMessage(clientId string, topic string, payload types.JSONB) error {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	})
	if err != nil {
		log.Printf("Error on producer: %s\n", err.Error())
		return err
	}
	defer p.Close()

	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error encoding payload: %s\n", err.Error())
		return err
	}

	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("Error sending message to %s: %s\n", topic, err.Error())
		return err
	}
	return nil
}
