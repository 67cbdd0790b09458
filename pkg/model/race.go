package model

import "time"

type Race struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

type Countdown struct {
	Race
	DaysRemaining int `json:"daysRemaining"`
}
