// Package story contains the editorial story read model and the partner
// coupon catalog entry.
package story

import (
	"time"

	"github.com/sardegnaricette/v2/internal/domain/user"
)

// Story is an editorial post from the redazione.
type Story struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      user.User `json:"author"`
	Image       string    `json:"image,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	IsPublished bool      `json:"is_published"`
}

// Coupon is a partner discount shown on the coupons page. The catalog is
// hardcoded; there is no redemption logic.
type Coupon struct {
	ID          string `json:"id"`
	Partner     string `json:"partner"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Discount    string `json:"discount"`
}
