package models

import "time"

type Catch struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	Species    string    `json:"species"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Buyer      string    `json:"buyer"`
	Date       time.Time `json:"date"`
	PaymentRef string    `json:"payment_ref,omitempty"`
}
