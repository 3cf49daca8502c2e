package model

import (
	"time"

	"github.com/google/uuid"
)

type CartStatus string

const (
	CartInProgress CartStatus = "in_progress"
	CartPaid       CartStatus = "paid"
)

// CartItem is a single (product, quantity) line inside a cart.
// (cart_id, product_id) is unique: one line per product.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
}

type Cart struct {
	BaseModel
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status CartStatus `gorm:"type:varchar(20);not null;default:'in_progress'" json:"status"`
	Items  []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"products"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// Item returns the line for productID, or nil if the product is not in the cart.
func (c *Cart) Item(productID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
