package models

import (
	"errors"
	"fmt"
)

// Restaurant is the venue part of a booking payload.
type Restaurant struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Phone    string `json:"phone,omitempty"`
}

// BookingPayload is the booking data a caller hands to the scheduler.
// Date is YYYY-MM-DD, Time is a display string such as "7:00 PM".
type BookingPayload struct {
	CustomerName  string      `json:"customerName"`
	CustomerEmail string      `json:"customerEmail"`
	CustomerPhone string      `json:"customerPhone"`
	Restaurant    *Restaurant `json:"restaurant"`
	Date          string      `json:"date"`
	Time          string      `json:"time"`
	Guests        int         `json:"guests"`
	ReservationID string      `json:"reservationId"`
}

var ErrMissingRestaurant = errors.New("restaurant name is required")

// RestaurantName returns the restaurant name or ErrMissingRestaurant.
func (b BookingPayload) RestaurantName() (string, error) {
	if b.Restaurant == nil || b.Restaurant.Name == "" {
		return "", fmt.Errorf("reservation %s: %w", b.ReservationID, ErrMissingRestaurant)
	}
	return b.Restaurant.Name, nil
}

// RestaurantPhone falls back to a fixed hint when the venue has no phone.
func (b BookingPayload) RestaurantPhone() string {
	if b.Restaurant == nil || b.Restaurant.Phone == "" {
		return "Contact restaurant directly"
	}
	return b.Restaurant.Phone
}

func (b BookingPayload) RestaurantLocation() string {
	if b.Restaurant == nil {
		return ""
	}
	return b.Restaurant.Location
}

// Clone returns a deep copy so retained task payloads are never shared.
func (b BookingPayload) Clone() BookingPayload {
	if b.Restaurant != nil {
		r := *b.Restaurant
		b.Restaurant = &r
	}
	return b
}
