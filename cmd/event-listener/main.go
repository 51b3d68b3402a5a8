package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igwedaniel/dripper/internal/types"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const exchange = "dripper.events"

type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// EventListener tails the dripper event exchange and logs every event
type EventListener struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logrus.Logger
}

func NewEventListener(rabbitURL string, logger *logrus.Logger) (*EventListener, error) {
	conn, err := amqp091.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &EventListener{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

func (l *EventListener) Start(ctx context.Context, routingKey string) error {
	// Must match the publisher's declaration
	err := l.channel.ExchangeDeclare(
		exchange, // exchange name
		"topic",  // exchange type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := l.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := l.channel.QueueBind(queue.Name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := l.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"exchange": exchange,
		"route":    routingKey,
		"queue":    queue.Name,
	}).Info("Event listener started")

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					l.logger.Warn("Delivery channel closed")
					return
				}
				l.handleMessage(msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (l *EventListener) handleMessage(msg amqp091.Delivery) {
	var env EventEnvelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		l.logger.WithFields(logrus.Fields{
			"error": err.Error(),
			"body":  string(msg.Body),
		}).Error("Failed to parse event envelope")
		return
	}

	entry := l.logger.WithFields(logrus.Fields{
		"routing_key": msg.RoutingKey,
		"id":          env.ID,
		"source":      env.Source,
		"delay":       time.Since(env.Timestamp).Round(time.Millisecond),
	})

	switch env.Type {
	case types.EventTypeFaucetClaim:
		var claim types.ClaimEvent
		if err := json.Unmarshal(env.Payload, &claim); err != nil {
			entry.Errorf("Failed to parse claim payload: %v", err)
			return
		}
		entry.WithFields(logrus.Fields{
			"address": claim.Address,
			"success": claim.Success,
			"tx_hash": claim.TxHash,
			"error":   claim.Error,
		}).Info("Faucet claim")
	case types.EventTypeTransfer:
		var transfer types.TransferEvent
		if err := json.Unmarshal(env.Payload, &transfer); err != nil {
			entry.Errorf("Failed to parse transfer payload: %v", err)
			return
		}
		entry.WithFields(logrus.Fields{
			"from":    transfer.From,
			"to":      transfer.To,
			"amount":  transfer.AmountWei,
			"tx_hash": transfer.TxHash,
			"index":   fmt.Sprintf("%d/%d", transfer.Index, transfer.Total),
		}).Info("Transfer confirmed")
	case types.EventTypeStakeAttempt:
		var stake types.StakeEvent
		if err := json.Unmarshal(env.Payload, &stake); err != nil {
			entry.Errorf("Failed to parse stake payload: %v", err)
			return
		}
		entry.WithFields(logrus.Fields{
			"wallet":     stake.Wallet,
			"success":    stake.Success,
			"tx_hash":    stake.TxHash,
			"error":      stake.Error,
			"next_sleep": stake.NextSleep,
		}).Info("Staking attempt")
	default:
		entry.WithField("type", env.Type).Info(string(env.Payload))
	}
}

func (l *EventListener) Close() error {
	if l.channel != nil {
		l.channel.Close()
	}
	if l.conn != nil {
		l.conn.Close()
	}
	return nil
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
	logger.SetLevel(logrus.InfoLevel)

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Fatal("RABBITMQ_URL is not set")
	}
	routingKey := "#"
	if len(os.Args) > 1 {
		routingKey = os.Args[1]
	}

	listener, err := NewEventListener(rabbitURL, logger)
	if err != nil {
		logger.Fatalf("Failed to create event listener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := listener.Start(ctx, routingKey); err != nil {
		logger.Fatalf("Failed to start event listener: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Received shutdown signal, stopping event listener...")
}
