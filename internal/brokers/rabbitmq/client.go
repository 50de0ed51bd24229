package rabbitmq

import (
	"sync"

	"github.com/streadway/amqp"

	"edge-gateway/internal/common/errors"
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a connection to url.
type Dialer func(url string) (connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (amqpChannel, error) {
	return c.Connection.Channel()
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// Client owns one connection and one channel. AMQP channels are not safe for
// concurrent use, so every operation holds mu.
type Client struct {
	url   string
	queue string
	dial  Dialer

	mu     sync.Mutex
	conn   connection
	ch     amqpChannel
	closed bool
}

func NewClient(url, queue string, dial Dialer) *Client {
	if dial == nil {
		dial = dialAMQP
	}
	return &Client{url: url, queue: queue, dial: dial}
}

// channel returns a live channel, reconnecting if needed. Caller holds mu.
func (c *Client) channel() (amqpChannel, error) {
	if c.closed {
		return nil, errors.ConnectionError("RabbitMQ client closed", nil)
	}
	if c.ch != nil && c.conn != nil && !c.conn.IsClosed() {
		return c.ch, nil
	}
	c.reset()

	conn, err := c.dial(c.url)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.ConnectionError("failed to declare RabbitMQ queue", err)
	}

	c.conn, c.ch = conn, ch
	return ch, nil
}

// reset drops the current connection. Caller holds mu.
func (c *Client) reset() {
	if c.ch != nil {
		c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Do runs fn on a live channel. A failing fn drops the connection so the
// next call redials.
func (c *Client) Do(fn func(ch amqpChannel) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := fn(ch); err != nil {
		c.reset()
		return err
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reset()
	return nil
}
