// Package model defines the core domain types for the course registration system.
package model

import "time"

// Student is a person who can register for courses. Students are created
// during onboarding and are read-only here.
type Student struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Course is a time-boxed offering with a list price.
type Course struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Price     int64     `json:"price"`
}

// HasStarted reports whether the course start time is before now.
// A course starting exactly at now has not started.
func (c *Course) HasStarted(now time.Time) bool {
	return c.StartTime.Before(now)
}

// Registration links a student to a course at the price charged when the
// registration was made.
type Registration struct {
	ID             string    `json:"id"`
	StudentID      int64     `json:"studentId"`
	CourseID       int64     `json:"courseId"`
	Price          int64     `json:"price"`
	RegisteredDate time.Time `json:"registeredDate"`

	// Populated by listing queries, not stored with the registration.
	Course *Course `json:"course,omitempty"`
}

// RegisterRequest is the payload for registering for a course.
type RegisterRequest struct {
	Email    string `json:"email"`
	CourseID int64  `json:"courseId"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
