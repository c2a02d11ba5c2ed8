package domain

import (
	"strings"
	"time"
)

// User is a registered shopper. Email is the stable identity handed over by the auth layer.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Country      string    `json:"country,omitempty"`
	City         string    `json:"city,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ShippingAddress renders the "country, city" form stored on orders.
func (u User) ShippingAddress() string {
	return strings.TrimSpace(u.Country) + ", " + strings.TrimSpace(u.City)
}
