package compose

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/facebook-auto-poster/internal/models"
)

func sampleRecord() models.ArrestRecord {
	return models.ArrestRecord{
		Identifier:  "2024-00123",
		Image:       "aW1n",
		GivenName:   " Jane ",
		MiddleName:  "Quinn",
		SurName:     "Doe ",
		BookingDate: "2024-06-14 13:05:42.123456",
		BirthDate:   "1990-06-15 00:00:00.000000",
	}
}

func TestCompose(t *testing.T) {
	now := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)

	msg, err := Compose(sampleRecord(), "https://records.example.com/booking/", now)

	require.NoError(t, err)
	assert.Equal(t, "Name: Jane Quinn Doe\n"+
		"Age: 33\n"+
		"Booked: 06-14-2024 01:05 PM\n"+
		"\n"+
		"What did they do?? Follow the link for more details.\n"+
		"https://records.example.com/booking/2024-00123", msg)
}

func TestCompose_Deterministic(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := Compose(sampleRecord(), "base/", now)
	require.NoError(t, err)
	second, err := Compose(sampleRecord(), "base/", now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompose_MorningBooking(t *testing.T) {
	r := sampleRecord()
	r.BookingDate = "2024-01-05 00:30:00.000000"

	msg, err := Compose(r, "", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Contains(t, msg, "Booked: 01-05-2024 12:30 AM\n")
}

func TestCompose_Malformed(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(r *models.ArrestRecord)
		want   string
	}{
		{name: "missing identifier", mutate: func(r *models.ArrestRecord) { r.Identifier = "" }, want: "missing identifier"},
		{name: "missing given name", mutate: func(r *models.ArrestRecord) { r.GivenName = "  " }, want: "missing givenName"},
		{name: "missing surname", mutate: func(r *models.ArrestRecord) { r.SurName = "" }, want: "missing surName"},
		{name: "missing booking date", mutate: func(r *models.ArrestRecord) { r.BookingDate = "" }, want: "missing bookingDate"},
		{name: "missing birth date", mutate: func(r *models.ArrestRecord) { r.BirthDate = "" }, want: "missing birthDate"},
		{name: "bad booking date", mutate: func(r *models.ArrestRecord) { r.BookingDate = "06/14/2024" }, want: "invalid bookingDate"},
		{name: "bad birth date", mutate: func(r *models.ArrestRecord) { r.BirthDate = "1990-13-45 00:00:00.0" }, want: "invalid birthDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRecord()
			tt.mutate(&r)

			msg, err := Compose(r, "", now)

			assert.Empty(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedRecord))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAge(t *testing.T) {
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 33, Age(birth, time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 34, Age(birth, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 33, Age(birth, time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 34, Age(birth, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Jane Doe", FullName("Jane", "", "Doe"))
	assert.Equal(t, "Jane Doe", FullName(" Jane", "   ", "Doe "))
	assert.Equal(t, "Jane Q Doe", FullName("Jane ", " Q ", " Doe"))
}
