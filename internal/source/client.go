package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// Upper bound on the feed body size.
const maxBodyBytes = 64 << 20

// Keys checked, in order, when the feed wraps its records in an object.
var wrapperKeys = []string{"results", "data"}

// Client fetches arrest records from the public records API
type Client struct {
	config     config.SourceConfig
	httpClient *http.Client
	logger     logrus.FieldLogger
	maxBody    int64
}

// NewClient creates a new arrests API client
func NewClient(cfg config.SourceConfig, logger logrus.FieldLogger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		maxBody: maxBodyBytes,
	}
}

// Fetch performs a single request against the feed and decodes its records.
// An unrecognised payload shape yields no records rather than an error.
func (c *Client) Fetch(ctx context.Context) ([]models.ArrestRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", models.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make request: %v", models.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: API returned status %d", models.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", models.ErrFetch, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", models.ErrFetch, c.maxBody)
	}

	return c.decode(body)
}

func (c *Client) decode(body []byte) ([]models.ArrestRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", models.ErrParse, err)
	}

	entries, ok := extractEntries(payload)
	if !ok {
		c.logger.WithField("payload_type", fmt.Sprintf("%T", payload)).
			Warn("unexpected arrests payload structure, expected a list of records")
		return []models.ArrestRecord{}, nil
	}

	records := make([]models.ArrestRecord, 0, len(entries))
	for _, entry := range entries {
		fields, isObject := entry.(map[string]interface{})
		if !isObject {
			continue
		}
		records = append(records, recordFromFields(fields))
	}

	return records, nil
}

func extractEntries(payload interface{}) ([]interface{}, bool) {
	switch v := payload.(type) {
	case []interface{}:
		return v, true
	case map[string]interface{}:
		var found []interface{}
		ok := false
		for _, key := range wrapperKeys {
			list, isList := v[key].([]interface{})
			if !isList {
				continue
			}
			if len(list) > 0 {
				return list, true
			}
			found, ok = list, true
		}
		return found, ok
	}
	return nil, false
}

// recordFromFields maps a decoded JSON object onto an ArrestRecord. Absent or
// non-string fields become empty strings; an empty middle name is the normal
// case for records without one. The identifier is trimmed here so it matches
// the form the batch stores persist.
func recordFromFields(fields map[string]interface{}) models.ArrestRecord {
	return models.ArrestRecord{
		Identifier:  strings.TrimSpace(stringField(fields, "identifier")),
		Image:       stringField(fields, "image"),
		GivenName:   stringField(fields, "givenName"),
		MiddleName:  stringField(fields, "middleName"),
		SurName:     stringField(fields, "surName"),
		BookingDate: stringField(fields, "bookingDate"),
		BirthDate:   stringField(fields, "birthDate"),
	}
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case json.Number:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}
