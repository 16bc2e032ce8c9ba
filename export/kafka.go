// Package export mirrors flushed event batches to a central Kafka broker.
// The sink is optional: it stays disabled unless TCPSNITCH_KAFKA_BROKER_URL
// is set, and a broker failure never disturbs event collection.
package export

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tcpsnitch/tcpsnitch/config"
	"github.com/tcpsnitch/tcpsnitch/logger"
)

const (
	EnvBrokerURL     = "TCPSNITCH_KAFKA_BROKER_URL"
	EnvTopic         = "TCPSNITCH_KAFKA_TOPIC"
	EnvBatchSize     = "TCPSNITCH_KAFKA_BATCH_SIZE"
	EnvBatchTimeSecs = "TCPSNITCH_KAFKA_BATCH_TIME_SECS"
)

var (
	mu          sync.Mutex
	kafkaWriter *kafka.Writer
)

// Init builds the writer from the environment. A missing broker URL leaves
// the sink disabled.
func Init() {
	brokerURL := ""
	topic := "tcpsnitch.events"
	batchSize := 100
	batchTimeSecs := 2
	config.InitVar(EnvBrokerURL, &brokerURL)
	config.InitVar(EnvTopic, &topic)
	config.InitVar(EnvBatchSize, &batchSize)
	config.InitVar(EnvBatchTimeSecs, &batchTimeSecs)
	if brokerURL == "" {
		return
	}

	timeout := time.Duration(batchTimeSecs) * time.Second
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokerURL),
		Topic:        topic,
		BatchSize:    batchSize,
		BatchTimeout: timeout,
		MaxAttempts:  1,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("kafka delivery failed for %d messages: %v", len(messages), err)
			}
		},
	}

	mu.Lock()
	kafkaWriter = w
	mu.Unlock()
	logger.Infof("kafka export enabled: broker %s topic %s", brokerURL, topic)
}

// Enabled reports whether a broker was configured.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return kafkaWriter != nil
}

// batchMessage is the wire format of one flushed batch.
type batchMessage struct {
	Connection int               `json:"connection"`
	Events     []json.RawMessage `json:"events"`
}

// ProduceEvents ships one connection's flushed batch. Errors are log-only.
func ProduceEvents(conID int, batch [][]byte) {
	mu.Lock()
	w := kafkaWriter
	mu.Unlock()
	if w == nil {
		return
	}

	msg := batchMessage{Connection: conID, Events: make([]json.RawMessage, len(batch))}
	for i, buf := range batch {
		msg.Events[i] = json.RawMessage(buf)
	}
	out, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("kafka batch for connection %d not encodable: %v", conID, err)
		return
	}
	if err := w.WriteMessages(context.Background(), kafka.Message{Value: out}); err != nil {
		logger.Warnf("kafka write for connection %d failed: %v", conID, err)
	}
}

// Reset abandons the writer without flushing, for post-fork use: the child
// must not drain batches the parent queued.
func Reset() {
	mu.Lock()
	kafkaWriter = nil
	mu.Unlock()
}

// Close flushes and releases the writer.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if kafkaWriter != nil {
		kafkaWriter.Close()
		kafkaWriter = nil
	}
}
