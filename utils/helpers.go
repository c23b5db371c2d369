package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Roles of console users
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleTeacher = "teacher"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateRandomString returns length hex characters.
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:length], nil
}

func IsValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleStaff, RoleTeacher:
		return true
	}
	return false
}

func IsValidUserStatus(status string) bool {
	return status == "active" || status == "inactive"
}

// IsValidFileExtension checks if file extension is allowed
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// SanitizeString strips null bytes and surrounding whitespace.
func SanitizeString(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}

// ParseDate parses a yyyy-MM-dd date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-MM-dd", value)
	}
	return t, nil
}

// ParseDateRange parses from/to query values. Either may be empty; to is
// made inclusive by moving it to the end of its day.
func ParseDateRange(from, to string, loc *time.Location) (start, end time.Time, err error) {
	if from != "" {
		if start, err = ParseDate(from, loc); err != nil {
			return
		}
	}
	if to != "" {
		if end, err = ParseDate(to, loc); err != nil {
			return
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = fmt.Errorf("end date must not be before start date")
	}
	return
}
