package kafka_test

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ragchat/pkg/eventstream"
	"github.com/papercomputeco/ragchat/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Brokers: " , ", Topic: "t"})
		Expect(err).To(MatchError(ContainSubstring("brokers")))

		_, err = kafka.NewPublisher(kafka.Config{Brokers: "localhost:9092"})
		Expect(err).To(MatchError(ContainSubstring("topic")))
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: "localhost:9092", Topic: "t"})
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("writes events keyed by thread", func() {
		brokers := os.Getenv("RAGCHAT_TEST_KAFKA_BROKERS")
		if brokers == "" {
			Skip("RAGCHAT_TEST_KAFKA_BROKERS not set, skipping Kafka tests")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		topic := "ragchat-test-" + uuid.NewString()
		p, err := kafka.NewPublisher(kafka.Config{Brokers: brokers, Topic: topic})
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		event := eventstream.NewTurnCompletedEvent("thread-1")
		Expect(p.PublishTurn(ctx, event)).To(Succeed())

		r := kafkago.NewReader(kafkago.ReaderConfig{Brokers: []string{brokers}, Topic: topic})
		defer r.Close()

		msg, err := r.ReadMessage(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(msg.Key)).To(Equal("thread-1"))

		var got eventstream.TurnCompletedEvent
		Expect(json.Unmarshal(msg.Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal(event.EventID))
	})
})
