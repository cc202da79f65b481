package entity

import "time"

// Client is a saved customer that can be billed
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	VatID     string    `json:"vatId"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
