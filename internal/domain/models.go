// Package domain defines the persistence models for cart tracking, cart
// items, and the catalog snapshot consumed by recovery emails. These types
// are mapped with GORM and form the core data layer of the cart recovery
// engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of a tracked cart.
//
// Transitions: active → abandoned → recovered. There is no reverse edge;
// a fresh activity write may still reset an abandoned cart to active, but
// that is a recorder-level business rule, not a sweeper transition.
type CartStatus string

const (
	// CartStatusActive marks a cart with recent shopper activity.
	CartStatusActive CartStatus = "active"
	// CartStatusAbandoned marks a cart whose last activity exceeded the TTL.
	CartStatusAbandoned CartStatus = "abandoned"
	// CartStatusRecovered is terminal: the cart converted or an operator
	// resolved it. Recovered rows are never swept or reminded again.
	CartStatusRecovered CartStatus = "recovered"
)

// MaxReminderStage caps the escalation ladder; stage N's email is sent at
// most once per record and the counter never decreases.
const MaxReminderStage = 3

// CartTracking represents one tracked shopping session. At most one
// non-recovered row exists per session id; the recorder enforces this by
// upserting against the (session_id, status != recovered) filter.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SessionID: opaque cookie-carried session key; indexed with status.
//   - UserID: optional authenticated identity; when present it takes
//     precedence over SessionID for contact resolution.
//   - Status: lifecycle state, see CartStatus.
//   - CartTotal: monetary snapshot of cart value at last update.
//   - CustomerEmail / CustomerName / CustomerPhone: resolved contact info
//     (explicit payload value wins over the authenticated profile value).
//   - LastActivityAt: advanced on every recorder/heartbeat write.
//   - ReminderStage: 0..3, gates which recovery notification is next due.
//   - RecoveryEmailSentAt: timestamp of the most recent stage notification.
//   - Notes: append-only audit trail.
type CartTracking struct {
	ID                  string          `json:"id"                       gorm:"type:char(36);primaryKey"`
	SessionID           string          `json:"session_id"               gorm:"type:varchar(64);not null;index:idx_session_status,priority:1"`
	UserID              *string         `json:"user_id,omitempty"        gorm:"type:varchar(64);index"`
	Status              CartStatus      `json:"status"                   gorm:"type:varchar(16);not null;default:'active';index:idx_session_status,priority:2;check:status IN ('active','abandoned','recovered')"`
	CartTotal           decimal.Decimal `json:"cart_total"               gorm:"type:decimal(12,2);not null"`
	CustomerEmail       *string         `json:"customer_email,omitempty" gorm:"type:varchar(255)"`
	CustomerName        *string         `json:"customer_name,omitempty"  gorm:"type:varchar(255)"`
	CustomerPhone       *string         `json:"customer_phone,omitempty" gorm:"type:varchar(64)"`
	LastActivityAt      time.Time       `json:"last_activity_at"         gorm:"not null;index"`
	ReminderStage       int             `json:"reminder_stage"           gorm:"not null;default:0;check:reminder_stage BETWEEN 0 AND 3"`
	RecoveryEmailSentAt *time.Time      `json:"recovery_email_sent_at,omitempty"`
	Notes               string          `json:"notes"                    gorm:"type:text"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	// Items are the tracked line items. They carry only the product
	// reference and quantity; display data is rejoined against the catalog
	// when a reminder is rendered.
	Items []CartItem `json:"items" gorm:"foreignKey:CartID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CartTracking.
func (CartTracking) TableName() string { return "cart_tracking" }

// HasContact reports whether the record carries any resolvable contact
// information. Records without it are never persisted: an uncontactable
// cart cannot be recovered.
func (c *CartTracking) HasContact() bool {
	return deref(c.CustomerEmail) != "" || deref(c.CustomerName) != "" || deref(c.CustomerPhone) != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CartItem is a single tracked line item: a catalog product reference and
// a positive quantity. Items with non-positive quantity or unresolvable
// product ids are dropped at the recorder boundary and never persisted.
type CartItem struct {
	ID        uint   `json:"-"          gorm:"primaryKey"`
	CartID    string `json:"-"          gorm:"type:char(36);not null;index"`
	ProductID uint   `json:"product_id" gorm:"not null"`
	Quantity  int    `json:"quantity"   gorm:"not null;check:quantity > 0"`
}

// TableName returns the database table name for CartItem.
func (CartItem) TableName() string { return "cart_items" }

// Product is the catalog collaborator's read model. The catalog itself is
// owned by an external system; this engine only reads it to normalize item
// references and to rebuild display data for reminder emails.
type Product struct {
	ID       uint            `json:"id"        gorm:"primaryKey"`
	Name     string          `json:"name"      gorm:"type:varchar(255);not null"`
	Price    decimal.Decimal `json:"price"     gorm:"type:decimal(12,2);not null"`
	ImageURL string          `json:"image_url" gorm:"type:varchar(512)"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }
