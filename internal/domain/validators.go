package domain

import (
	"fmt"
	"regexp"
)

var (
	pinRegex  = regexp.MustCompile(`^[0-9]{4}$`)
	dateRegex = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
	timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Literal phrases that confirm destructive actions.
const (
	DeleteMatchPhrase  = "ELIMINAR PARTIDO"
	DeletePlayerPhrase = "ELIMINAR JUGADOR"
)

// ValidatePIN checks that a PIN is exactly four digits.
func ValidatePIN(pin string) error {
	if pin == "" {
		return fmt.Errorf("pin is required")
	}
	if !pinRegex.MatchString(pin) {
		return fmt.Errorf("pin must be 4 digits")
	}
	return nil
}

// ValidateDate checks the YYYY-MM-DD shape.
func ValidateDate(date string) error {
	if !dateRegex.MatchString(date) {
		return fmt.Errorf("invalid date format: %s", date)
	}
	return nil
}

// ValidateKickoff checks the HH:MM shape. Empty is allowed.
func ValidateKickoff(t string) error {
	if t == "" {
		return nil
	}
	if !timeRegex.MatchString(t) {
		return fmt.Errorf("invalid time format: %s", t)
	}
	return nil
}

// ValidateAmount checks that a payment amount is not negative.
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative, got %v", amount)
	}
	return nil
}

// ValidateRating checks a 1..10 score.
func ValidateRating(score float64) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("rating must be between 1 and 10, got %v", score)
	}
	return nil
}

// CheckConfirmation compares the typed phrase with the expected literal.
func CheckConfirmation(typed, expected string) error {
	if typed != expected {
		return ErrConfirmation(expected)
	}
	return nil
}
