// Package extract reads the legacy JSON dump and yields typed source records.
// Parsing stays here; downstream components consume the typed output only.
package extract

import (
	"encoding/json"
	"os"
	"time"

	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/identity"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/media"
)

// SourceAddress is a raw legacy address record.
type SourceAddress struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// SourceService is a raw legacy service listing.
type SourceService struct {
	ID              string    `json:"id"`
	StylistID       string    `json:"stylist_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	PriceCents      int       `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SourceBooking is a raw legacy booking record.
type SourceBooking struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	BuyerID   string    `json:"buyer_id"`
	StartsAt  time.Time `json:"starts_at"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceChatMessage is a raw legacy chat message.
type SourceChatMessage struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Dump is the full typed content of one legacy dump file.
type Dump struct {
	Buyers       []identity.SourceBuyer   `json:"buyers"`
	Stylists     []identity.SourceStylist `json:"stylists"`
	Addresses    []SourceAddress          `json:"addresses"`
	Services     []SourceService          `json:"services"`
	Bookings     []SourceBooking          `json:"bookings"`
	ChatMessages []SourceChatMessage      `json:"chat_messages"`
	MediaFiles   []media.SourceFile       `json:"media_files"`
}

// Read parses the dump file at path. A missing or malformed dump is fatal:
// nothing useful can run without it.
func Read(path string, log logger.Logger) (*Dump, error) {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	log = log.Module("extract")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf("reading dump file: %w", err).
			Component("extract").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, errors.Newf("parsing dump file: %w", err).
			Component("extract").
			Category(errors.CategoryExtraction).
			Context("path", path).
			Build()
	}

	log.Info("dump loaded",
		logger.String("path", path),
		logger.Int("buyers", len(dump.Buyers)),
		logger.Int("stylists", len(dump.Stylists)),
		logger.Int("addresses", len(dump.Addresses)),
		logger.Int("services", len(dump.Services)),
		logger.Int("bookings", len(dump.Bookings)),
		logger.Int("chat_messages", len(dump.ChatMessages)),
		logger.Int("media_files", len(dump.MediaFiles)))

	return &dump, nil
}
