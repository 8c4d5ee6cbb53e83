// Package kafka publishes booking lifecycle events. The notification
// service consumes them to send confirmation and cancellation emails, so
// publish failures are reported to the caller but must never be treated as
// booking failures.
package kafka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/qr"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

type Producer struct {
	Writer *kafka.Writer
	QR     *qr.Generator
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, qrGen *qr.Generator, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, QR: qrGen, Logger: log}
}

// PublishBookingConfirmed streams a confirmation event, carrying the
// encrypted check-in QR when a generator is configured.
func (p *Producer) PublishBookingConfirmed(booking models.Booking) error {
	event := p.newEvent(EventBookingConfirmed, booking)

	if p.QR != nil {
		png, err := p.QR.GenerateCheckInQR(booking)
		if err != nil {
			p.Logger.Warn("KAFKA", fmt.Sprintf("QR generation failed for booking %s: %v", booking.ID, err))
		} else {
			event.CheckInQR = base64.StdEncoding.EncodeToString(png)
		}
	}

	return p.publish(event)
}

// PublishBookingCancelled streams a cancellation event including the
// refund amount the guest is owed.
func (p *Producer) PublishBookingCancelled(booking models.Booking) error {
	event := p.newEvent(EventBookingCancelled, booking)
	event.RefundAmount = booking.RefundAmount
	return p.publish(event)
}

func (p *Producer) newEvent(eventType string, booking models.Booking) models.BookingEvent {
	return models.BookingEvent{
		Type:         eventType,
		BookingID:    booking.ID,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
		GuestCount:   booking.GuestCount,
		TotalPrice:   booking.TotalPrice,
		ContactEmail: booking.ContactEmail,
		Timestamp:    time.Now(),
	}
}

func (p *Producer) publish(event models.BookingEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.Logger.Info("KAFKA", fmt.Sprintf("Publishing [%s] for booking %s", event.Type, event.BookingID))

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.BookingID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
