package models

import "time"

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	MobileNumber string    `json:"mobile_number"`
	CreatedAt    time.Time `json:"created_at"`
}
