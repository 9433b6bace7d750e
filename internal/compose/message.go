package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyderes/facebook-auto-poster/internal/models"
)

const (
	// SourceDateLayout is the feed's date format. The fractional part is
	// accepted with any number of digits.
	SourceDateLayout = "2006-01-02 15:04:05.999999"
	bookedLayout     = "01-02-2006 03:04 PM"
)

const messageTemplate = `Name: %s
Age: %d
Booked: %s

What did they do?? Follow the link for more details.
%s%s`

// Compose renders the post text for a record. now is the reference time for
// the age calculation.
func Compose(r models.ArrestRecord, bookingURLBase string, now time.Time) (string, error) {
	if err := requireFields(r); err != nil {
		return "", err
	}

	booked, err := parseDate("bookingDate", r.BookingDate)
	if err != nil {
		return "", err
	}
	birth, err := parseDate("birthDate", r.BirthDate)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(messageTemplate,
		FullName(r.GivenName, r.MiddleName, r.SurName),
		Age(birth, now),
		booked.Format(bookedLayout),
		bookingURLBase,
		r.Identifier,
	), nil
}

// Age returns the number of completed years between birth and now
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// FullName joins the trimmed name parts, omitting an empty middle name
func FullName(given, middle, sur string) string {
	given, middle, sur = strings.TrimSpace(given), strings.TrimSpace(middle), strings.TrimSpace(sur)
	if middle == "" {
		return given + " " + sur
	}
	return given + " " + middle + " " + sur
}

func requireFields(r models.ArrestRecord) error {
	required := []struct {
		name  string
		value string
	}{
		{"identifier", r.Identifier},
		{"givenName", r.GivenName},
		{"surName", r.SurName},
		{"bookingDate", r.BookingDate},
		{"birthDate", r.BirthDate},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: missing %s", models.ErrMalformedRecord, f.name)
		}
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(SourceDateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", models.ErrMalformedRecord, field, value)
	}
	return t, nil
}
