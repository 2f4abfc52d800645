// Package rabbitmq publishes JSON events to topic exchanges.
package rabbitmq

import (
    "context"
    "encoding/json"
    "errors"
    "net/url"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rabbitmq/amqp091-go"
)

type EventProducer struct {
    conn    *amqp091.Connection
    channel *amqp091.Channel

    mu       sync.Mutex
    declared map[string]bool
}

func sanitizeAMQPURL(raw string) (string, error) {
    clean := strings.TrimSpace(raw)
    clean = strings.Trim(clean, "\"'")
    u, err := url.Parse(clean)
    if err != nil {
        return "", err
    }
    if u.Scheme != "amqp" && u.Scheme != "amqps" {
        return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
    }
    // An empty path selects the default vhost; anything else is kept as given.
    if u.Path == "" {
        u.Path = "/"
        return u.String(), nil
    }
    return clean, nil
}

// MaskURL hides credentials so the URL can be logged.
func MaskURL(raw string) string {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil {
        return "<unparseable>"
    }
    if u.User != nil {
        u.User = url.UserPassword("****", "****")
    }
    return u.String()
}

func NewEventProducer(amqpURL string) (*EventProducer, error) {
    cleanURL, err := sanitizeAMQPURL(amqpURL)
    if err != nil {
        return nil, err
    }

    conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{
        Dial: amqp091.DefaultDial(10 * time.Second),
    })
    if err != nil {
        return nil, err
    }

    channel, err := conn.Channel()
    if err != nil {
        conn.Close()
        return nil, err
    }

    return &EventProducer{
        conn:     conn,
        channel:  channel,
        declared: map[string]bool{},
    }, nil
}

// Publish marshals body to JSON and sends it as a persistent message.
// The topic exchange is declared on first use.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body any) error {
    if err := p.ensureExchange(exchange); err != nil {
        return err
    }

    jsonBody, err := json.Marshal(body)
    if err != nil {
        return err
    }

    return p.channel.PublishWithContext(ctx,
        exchange,   // exchange
        routingKey, // routing key
        false,      // mandatory
        false,      // immediate
        amqp091.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp091.Persistent,
            MessageId:    uuid.NewString(),
            Timestamp:    time.Now().UTC(),
            Body:         jsonBody,
        })
}

func (p *EventProducer) ensureExchange(exchange string) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.declared[exchange] {
        return nil
    }
    err := p.channel.ExchangeDeclare(
        exchange, // name
        "topic",  // type
        true,     // durable
        false,    // auto-deleted
        false,    // internal
        false,    // no-wait
        nil,      // arguments
    )
    if err != nil {
        return err
    }
    p.declared[exchange] = true
    return nil
}

func (p *EventProducer) Close() {
    if p.channel != nil {
        p.channel.Close()
    }
    if p.conn != nil {
        p.conn.Close()
    }
}
