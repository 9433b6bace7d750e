package facebook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// Publisher posts photo+caption entries to a page through the Graph API.
// Each publish uploads the photo unpublished, then attaches it to a feed post.
type Publisher struct {
	config     config.FacebookConfig
	httpClient *http.Client
	logger     logrus.FieldLogger
}

type graphResponse struct {
	ID    string      `json:"id"`
	Error *graphError `json:"error,omitempty"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// NewPublisher creates a Graph API publisher for the configured page
func NewPublisher(cfg config.FacebookConfig, logger logrus.FieldLogger) *Publisher {
	return &Publisher{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Publish uploads the image and creates the feed post for one record. A
// failed feed post leaves the uploaded photo unattached; the upload is not
// repeated.
func (p *Publisher) Publish(ctx context.Context, message, identifier, imageBase64 string) (models.PublishResult, error) {
	result := models.PublishResult{Identifier: identifier}
	logger := p.logger.WithField("identifier", identifier)

	image, err := DecodeImage(imageBase64)
	if err != nil {
		result.Err = err
		logger.WithError(err).Error("failed to decode record image")
		return result, err
	}

	photoID, status, err := p.uploadPhoto(ctx, identifier, image)
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", models.ErrUpload, err)
		logger.WithError(err).WithField("status", status).Error("failed to upload photo")
		return result, result.Err
	}
	result.PhotoID = photoID

	postID, status, err := p.createFeedPost(ctx, message, photoID)
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", models.ErrPublish, err)
		logger.WithError(err).WithFields(logrus.Fields{
			"status":   status,
			"photo_id": photoID,
		}).Error("failed to create feed post, uploaded photo left unattached")
		return result, result.Err
	}
	result.PostID = postID

	logger.WithField("post_id", postID).Info("successfully posted to Facebook")
	return result, nil
}

// DecodeImage decodes a base64 image payload, tolerating a data URI prefix
// and unpadded or URL-safe encodings.
func DecodeImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty image payload", models.ErrImageDecode)
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", models.ErrImageDecode, lastErr)
}

func (p *Publisher) uploadPhoto(ctx context.Context, identifier string, image []byte) (string, int, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="source"; filename="%s.jpg"`, identifier))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", 0, fmt.Errorf("failed to write image: %w", err)
	}

	fields := map[string]string{
		"published":    "false",
		"access_token": p.config.AccessToken,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", 0, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finalise multipart body: %w", err)
	}

	return p.post(ctx, p.endpoint("photos"), writer.FormDataContentType(), body)
}

func (p *Publisher) createFeedPost(ctx context.Context, message, photoID string) (string, int, error) {
	media, err := json.Marshal(map[string]string{"media_fbid": photoID})
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode attached media: %w", err)
	}

	form := url.Values{}
	form.Set("message", message)
	form.Set("attached_media[0]", string(media))
	form.Set("access_token", p.config.AccessToken)

	return p.post(ctx, p.endpoint("feed"), "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (p *Publisher) endpoint(edge string) string {
	return fmt.Sprintf("%s/%s/%s", p.config.GraphURL, url.PathEscape(p.config.PageID), edge)
}

// post sends a Graph API request and returns the created object id along
// with the HTTP status code (0 when no response was received).
func (p *Publisher) post(ctx context.Context, endpoint, contentType string, body io.Reader) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, which never includes the token.
		return "", 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload graphResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && payload.Error != nil {
			return "", resp.StatusCode, fmt.Errorf("graph API returned status %d: %s (type=%s code=%d)",
				resp.StatusCode, payload.Error.Message, payload.Error.Type, payload.Error.Code)
		}
		return "", resp.StatusCode, fmt.Errorf("graph API returned status %d", resp.StatusCode)
	}

	if decodeErr != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", decodeErr)
	}
	if payload.ID == "" {
		return "", resp.StatusCode, fmt.Errorf("graph API response missing id")
	}

	return payload.ID, resp.StatusCode, nil
}
