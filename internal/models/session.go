package models

import "time"

// ActiveSession is a running occupancy of a station by one customer.
// Deadline anchors the countdown: TimeRemaining is always recomputable as
// the whole minutes between now and Deadline, so a suspended process does
// not drift.
type ActiveSession struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customerName"`
	StartTime     time.Time `json:"startTime"`
	TimeRemaining int       `json:"timeRemaining"`
	Deadline      time.Time `json:"deadline"`
}

// PastSession is an archived occupancy. Entries are immutable once appended.
type PastSession struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}
