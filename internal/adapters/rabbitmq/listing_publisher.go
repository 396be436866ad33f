package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"leboncoin-parser-service/internal/contextkeys"
	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/port"
)

// ListingEventDTO is the wire shape of one published listing. It is decoupled
// from the domain struct so the event contract can evolve separately.
type ListingEventDTO struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        *float64 `json:"price,omitempty"`
	Rent         *float64 `json:"rent,omitempty"`
	Surface      *float64 `json:"surface,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`

	Address    string   `json:"address,omitempty"`
	City       string   `json:"city"`
	PostalCode string   `json:"postal_code,omitempty"`
	Department string   `json:"department,omitempty"`
	Region     string   `json:"region,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`

	PublishedAt time.Time  `json:"published_at"`
	ExpiresAt   *time.Time `json:"expiration_date,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      string     `json:"status"`
	Favorites   int        `json:"favorites"`

	SellerName string `json:"seller_name,omitempty"`
	SellerKind string `json:"seller_kind"`
	HasPhone   bool   `json:"has_phone"`

	URL    string   `json:"url"`
	Images []string `json:"images,omitempty"`

	EnergyClass string `json:"energy_class,omitempty"`
	GES         string `json:"ges,omitempty"`
	Furnished   string `json:"furnished,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// RabbitMQListingPublisherAdapter publishes each written listing to a durable
// direct exchange. It satisfies the listing sink contract so it can be fanned
// together with the file sink.
type RabbitMQListingPublisherAdapter struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewRabbitMQListingPublisherAdapter(amqpURL, exchange, routingKey string) (*RabbitMQListingPublisherAdapter, error) {
	if amqpURL == "" {
		return nil, fmt.Errorf("rabbitmq listing publisher: amqp URL cannot be empty")
	}
	if exchange == "" {
		return nil, fmt.Errorf("rabbitmq listing publisher: exchange cannot be empty")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq listing publisher: routing key cannot be empty")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq listing publisher: dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq listing publisher: open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq listing publisher: declare exchange %q: %w", exchange, err)
	}

	return &RabbitMQListingPublisherAdapter{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (a *RabbitMQListingPublisherAdapter) Write(ctx context.Context, listing *domain.Listing) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "RabbitMQListingPublisherAdapter",
		"routing_key": a.routingKey,
		"listing_id":  listing.ID,
	})

	body, err := json.Marshal(toListingEventDTO(listing))
	if err != nil {
		logger.Error("Failed to marshal listing event to JSON", err, nil)
		return fmt.Errorf("failed to marshal listing event for %s: %w", listing.URL, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"event-type":    "CommercialListingScrapedEvent",
			"event-version": "1.0.0",
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.channel.PublishWithContext(publishCtx, a.exchange, a.routingKey, false, false, msg); err != nil {
		logger.Error("Failed to publish listing event", err, nil)
		return err
	}

	logger.Debug("Published listing event", nil)
	return nil
}

// Flush is a no-op; every publish is sent immediately.
func (a *RabbitMQListingPublisherAdapter) Flush() error { return nil }

func (a *RabbitMQListingPublisherAdapter) Close() error {
	if err := a.channel.Close(); err != nil {
		_ = a.conn.Close()
		return fmt.Errorf("rabbitmq listing publisher: close channel: %w", err)
	}
	return a.conn.Close()
}

func toListingEventDTO(l *domain.Listing) ListingEventDTO {
	return ListingEventDTO{
		ID:           l.ID,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		Rent:         l.Rent,
		Surface:      l.Surface,
		PropertyType: l.PropertyType,

		Address:    l.Location.Address,
		City:       l.Location.City,
		PostalCode: l.Location.PostalCode,
		Department: l.Location.Department,
		Region:     l.Location.Region,
		Latitude:   l.Location.Latitude,
		Longitude:  l.Location.Longitude,

		PublishedAt: l.PublishedAt,
		ExpiresAt:   l.ExpiresAt,
		Category:    l.Category,
		Status:      l.Status,
		Favorites:   l.Favorites,

		SellerName: l.SellerName,
		SellerKind: l.SellerKind,
		HasPhone:   l.HasPhone,

		URL:    l.URL,
		Images: l.Images,

		EnergyClass: l.EnergyClass,
		GES:         l.GES,
		Furnished:   l.Furnished,

		ScrapedAt: l.ScrapedAt,
	}
}
