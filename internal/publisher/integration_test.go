//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"apod_pipeline/internal/domain"
	"apod_pipeline/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) testRecord(date string) *domain.Record {
	return &domain.Record{
		Date:           date,
		Title:          utils.Ptr("Test Title"),
		Explanation:    utils.Ptr("Test Explanation"),
		URL:            "https://example.com/img.jpg",
		MediaType:      domain.MediaTypeImage,
		HDURL:          utils.Ptr("https://example.com/img_hd.jpg"),
		Copyright:      utils.Ptr("Someone"),
		ServiceVersion: utils.Ptr("v1"),
		ExtractedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishCreate() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-create",
		RoutingKey: "test-routing-key-create",
		QueueName:  "test-queue-create",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, s.testRecord("2024-01-01"), true)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	var received RecordMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("create", received.Action)
	s.Equal("2024-01-01", received.Record.Date)
	s.Equal("Test Title", *received.Record.Title)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishUpdate() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-update",
		RoutingKey: "test-routing-key-update",
		QueueName:  "test-queue-update",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, s.testRecord("2024-01-02"), false)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	var received RecordMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("update", received.Action)
	s.Equal("2024-01-02", received.Record.Date)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-persist",
		RoutingKey: "test-routing-key-persist",
		QueueName:  "test-queue-persist",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, s.testRecord("2024-01-03"), true)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
