package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"prepcal/internal/models"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// MailClient fetches notification emails through the Gmail API.
type MailClient struct {
	service      *gmail.Service
	logger       *slog.Logger
	fromAddress  string
	lookbackDays int
}

// NewMailClient creates a Gmail client for one authenticated account,
// watching emails from the given sender address.
func NewMailClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName, fromAddress string, lookbackDays int) (*MailClient, error) {
	ts, err := tokenSource(ctx, clientID, clientSecret, accountName)
	if err != nil {
		return nil, err
	}

	service, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &MailClient{
		service:      service,
		logger:       logger,
		fromAddress:  fromAddress,
		lookbackDays: lookbackDays,
	}, nil
}

// FetchOrderEmails lists recent emails from the configured sender and returns
// their decoded HTML bodies. A single email that fails to fetch or decode is
// logged and skipped; it never fails the whole batch.
func (c *MailClient) FetchOrderEmails(ctx context.Context) ([]*models.Email, error) {
	after := time.Now().AddDate(0, 0, -c.lookbackDays).Format("2006/01/02")
	query := fmt.Sprintf("from:%s after:%s", c.fromAddress, after)
	c.logger.Debug("Listing mailbox", "query", query)

	list, err := c.service.Users.Messages.List("me").Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var emails []*models.Email
	for _, ref := range list.Messages {
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			c.logger.Error("Failed to fetch message", "id", ref.Id, "error", err)
			continue
		}

		body := htmlBody(msg.Payload)
		if body == "" {
			c.logger.Debug("Message has no decodable HTML body, skipping", "id", ref.Id)
			continue
		}

		emails = append(emails, &models.Email{
			ID:      ref.Id,
			From:    header(msg.Payload, "From"),
			Subject: header(msg.Payload, "Subject"),
			HTML:    body,
		})
	}

	c.logger.Info("Fetched notification emails", "count", len(emails), "listed", len(list.Messages))
	return emails, nil
}

// htmlBody decodes the message body, preferring the top-level payload and
// falling back to the first text/html part of a multipart message.
func htmlBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if body := htmlBody(part); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody handles the URL-safe base64 Gmail uses, padded or not.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

func header(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
