// Package brokers отправляет событие о завершении дампа в очередь сообщений.
package brokers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resultlog"
)

// ContentType событий дампа
const ContentType = "application/json"

// MessageBroker - публикация сообщений в RabbitMQ или Apache Kafka
type MessageBroker interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщение. key - ключ партиционирования (Kafka)
	// или message id (RabbitMQ).
	Send(ctx context.Context, key string, message []byte) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// GetBrokerType возвращает тип брокера (rabbitmq, kafka)
	GetBrokerType() string
}

// Config содержит параметры подключения к брокеру
type Config struct {
	Type       string `yaml:"type"` // rabbitmq, kafka
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Queue      string `yaml:"queue"`
	VHost      string `yaml:"vhost"`       // по умолчанию "/"
	UseTLS     bool   `yaml:"tls"`         // amqps://
	Exchange   string `yaml:"exchange"`    // пустая строка = default exchange
	RoutingKey string `yaml:"routing_key"` // пусто = имя очереди

	// Параметры очереди RabbitMQ должны совпадать с существующей очередью
	Durable    bool `yaml:"durable"`
	AutoDelete bool `yaml:"auto_delete"`
	Exclusive  bool `yaml:"exclusive"`

	// Kafka
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// New создает MessageBroker на основе конфигурации
func New(cfg Config) (MessageBroker, error) {
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported broker type: %s (supported: rabbitmq, kafka)",
			dumperr.ErrConfig, cfg.Type)
	}
}

// Notify отправляет итог дампа как JSON, ключ сообщения - id дампа
func Notify(ctx context.Context, b MessageBroker, ev resultlog.DumpResult) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal dump event: %w", err)
	}
	if err := b.Send(ctx, ev.DumpID, payload); err != nil {
		return dumperr.Connection(b.GetBrokerType()+" send", err)
	}
	return nil
}
