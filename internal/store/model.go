// model.go defines the target-schema entities written by the migration.
package store

import "time"

// User is the canonical consolidated identity in the target database.
type User struct {
	ID                 string `gorm:"primaryKey;size:36"`
	Name               string `gorm:"size:255"`
	Email              string `gorm:"uniqueIndex;size:255;not null"`
	Role               string `gorm:"size:16;index"`
	StripeCustomerID   string `gorm:"size:64"`
	EmailNotifications bool
	SMSNotifications   bool
	MarketingEmails    bool
	SourceTable        string `gorm:"size:16"` // legacy table the winning record came from
	OriginalID         string `gorm:"index;size:36"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	StylistDetail *StylistDetail `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// StylistDetail carries the role-specific block for stylist users.
type StylistDetail struct {
	ID               uint   `gorm:"primaryKey"`
	UserID           string `gorm:"uniqueIndex;size:36;not null"`
	Bio              string `gorm:"type:text"`
	InstagramURL     string `gorm:"size:255"`
	FacebookURL      string `gorm:"size:255"`
	WebsiteURL       string `gorm:"size:255"`
	PayoutAccountID  string `gorm:"size:64"`
	TravelsToClients bool
}

// Address is a migrated user address.
type Address struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"index;size:36;not null"`
	Street     string `gorm:"size:255"`
	City       string `gorm:"size:128"`
	PostalCode string `gorm:"size:16"`
	Country    string `gorm:"size:64"`
	OriginalID string `gorm:"index;size:36"`
	CreatedAt  time.Time
}

// Service is a migrated stylist service listing.
type Service struct {
	ID              string `gorm:"primaryKey;size:36"`
	StylistID       string `gorm:"index;size:36;not null"`
	Title           string `gorm:"size:255"`
	Description     string `gorm:"type:text"`
	PriceCents      int
	DurationMinutes int
	OriginalID      string `gorm:"index;size:36"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Booking is a migrated booking between a buyer and a service.
type Booking struct {
	ID         string `gorm:"primaryKey;size:36"`
	ServiceID  string `gorm:"index;size:36;not null"`
	BuyerID    string `gorm:"index;size:36;not null"`
	StartsAt   time.Time
	Status     string `gorm:"size:32"`
	OriginalID string `gorm:"index;size:36"`
	CreatedAt  time.Time
}

// ChatMessage is a migrated chat message.
type ChatMessage struct {
	ID                 string `gorm:"primaryKey;size:36"`
	ChatID             string `gorm:"index;size:36;not null"`
	SenderID           string `gorm:"size:36"`
	Body               string `gorm:"type:text"`
	SentAt             time.Time
	ProcessedMessageID string `gorm:"index;size:36"` // legacy message id for downstream key-matching
}

// Media type values for MediaRecord.
const (
	MediaTypeAvatar       = "avatar"
	MediaTypeServiceImage = "service_image"
	MediaTypeChatImage    = "chat_image"
)

// MediaRecord is written only after a successful storage upload; a failed
// upload never produces a record.
type MediaRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	MediaType      string `gorm:"size:24;index;not null"`
	StoragePath    string `gorm:"size:512;not null"`
	UserID         string `gorm:"index;size:36"`
	ServiceID      string `gorm:"index;size:36"`
	StylistID      string `gorm:"index;size:36"`
	ChatID         string `gorm:"index;size:36"`
	MessageID      string `gorm:"size:36"`
	IsPreview      bool   `gorm:"index"`
	OriginalSize   int64
	CompressedSize int64
	CreatedAt      time.Time
}
