package broker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/probelab/reporter/log"
)

// connectionName identifies this tool in the broker's connection listing.
const connectionName = "reporter.event_feed"

// terminationHeader marks the poison pill message.
const terminationHeader = "termination"

// Client owns one AMQP connection, one channel, and the declared fanout
// exchange. It is used exclusively by the acquisition worker.
type Client struct {
	config ServerConfig
	logger *log.Logger
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed atomic.Bool
}

// Connect dials the broker, opens a channel, and declares the exchange as
// fanout, durable. Connection attempts are bounded by
// config.ConnectionAttempts with config.RetryDelay seconds between them;
// failures that cannot heal on retry (credentials, permissions, protocol)
// abort immediately. All failures surface as a BrokerError.
func Connect(ctx context.Context, config ServerConfig, logger *log.Logger) (*Client, error) {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     config.Host,
		Port:     config.Port,
		Username: config.User,
		Password: config.Password,
		Vhost:    "/",
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	amqpConfig := amqp.Config{
		Heartbeat:  time.Duration(config.Heartbeat) * time.Second,
		Properties: props,
	}

	var conn *amqp.Connection
	operation := func() error {
		var err error
		conn, err = amqp.DialConfig(uri.String(), amqpConfig)
		if err == nil {
			return nil
		}
		kind := Classify(err)
		logger.Error("broker connect attempt failed", map[string]any{
			"host":  config.Host,
			"port":  config.Port,
			"kind":  kind.String(),
			"error": err.Error(),
		})
		if !retryable(kind) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempts := config.ConnectionAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(time.Duration(config.RetryDelay)*time.Second),
			uint64(attempts-1),
		),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, wrap("connect", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, wrap("channel", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, wrap("exchange_declare", err)
	}

	logger.Info("broker connection established", map[string]any{
		"host":     config.Host,
		"port":     config.Port,
		"exchange": config.Exchange,
	})

	return &Client{config: config, logger: logger, conn: conn, ch: ch}, nil
}

// Exchange returns the declared exchange name.
func (c *Client) Exchange() string {
	return c.config.Exchange
}

// Publish sends one persistent message to the fanout exchange with an empty
// routing key. Publication order matches call order.
func (c *Client) Publish(ctx context.Context, contentType string, body []byte) error {
	err := c.ch.PublishWithContext(ctx, c.config.Exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentType,
		Body:         body,
	})
	return wrap("publish", err)
}

// PublishTermination sends the poison pill: an empty body with the
// termination header set, telling consumers the event stream has ended.
func (c *Client) PublishTermination(ctx context.Context) error {
	err := c.ch.PublishWithContext(ctx, c.config.Exchange, "", false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{terminationHeader: true},
	})
	return wrap("publish_termination", err)
}

// Close shuts down the channel, then the connection. Idempotent; failures
// during close are logged, not raised.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.ch.Close(); err != nil {
		c.logger.Warn("broker channel close failed", map[string]any{
			"error": err.Error(),
		})
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("broker connection close failed", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

// String describes the broker endpoint for log and error messages.
func (c *Client) String() string {
	return fmt.Sprintf("%s:%d/%s", c.config.Host, c.config.Port, c.config.Exchange)
}
