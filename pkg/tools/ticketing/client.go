// Package ticketing implements the ticket-creation and ticket-status tools
// backed by a Zoho-Desk-style ticketing API.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// RefusalMessage is returned when the caller's email does not match the
// ticket's contact email. The ticket's data is never included.
const RefusalMessage = "The email address you provided is not associated with the ticket you are trying to access. " +
	"Please use the correct email address linked to the ticket or create a new ticket using your email."

// Config holds the desk API settings.
type Config struct {
	BaseURL      string
	OrgID        string
	DepartmentID string
	ContactID    string
	Credentials  CredentialConfig
}

// Client calls the ticketing API with cached credentials.
type Client struct {
	cfg   Config
	creds *CredentialCache
	hc    *http.Client
}

// NewClient creates a ticketing client. A nil http client uses the default.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		cfg:   cfg,
		creds: NewCredentialCache(cfg.Credentials, hc),
		hc:    hc,
	}
}

// do issues the request built by newReq with a cached token. On a 401 that
// reports an invalid OAuth token it refreshes credentials and retries exactly
// once; any further failure propagates.
func (c *Client) do(ctx context.Context, newReq func(token string) (*http.Request, error)) ([]byte, error) {
	token, err := c.creds.Get(ctx, false)
	if err != nil {
		return nil, err
	}

	status, body, err := c.issue(newReq, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && strings.Contains(string(body), "INVALID_OAUTH") {
		slog.Info("Desk API token invalid, refreshing")
		token, err = c.creds.Get(ctx, true)
		if err != nil {
			return nil, err
		}
		status, body, err = c.issue(newReq, token)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("desk API returned %d: %s", status, body)
	}
	return body, nil
}

func (c *Client) issue(newReq func(token string) (*http.Request, error), token string) (int, []byte, error) {
	req, err := newReq(token)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("orgId", c.cfg.OrgID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// CreateTicket opens a ticket with the given subject for the given email and
// returns a confirmation message.
func (c *Client) CreateTicket(ctx context.Context, subject, email string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"subject":      subject,
		"departmentId": c.cfg.DepartmentID,
		"contactId":    c.cfg.ContactID,
		"email":        email,
	})
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/api/v1/tickets", bytes.NewReader(payload))
	})
	if err != nil {
		return "", err
	}

	var ticket struct {
		ID           string `json:"id"`
		TicketNumber string `json:"ticketNumber"`
	}
	if err := json.Unmarshal(body, &ticket); err != nil {
		return "", fmt.Errorf("decoding ticket response: %w", err)
	}

	return fmt.Sprintf("Ticket created for email ID %s with ticket ID %s and ticket number %s.",
		email, ticket.ID, ticket.TicketNumber), nil
}

// TicketStatus fetches a ticket and returns its status, but only when the
// provided email matches the ticket's contact email. A mismatch yields the
// refusal message as a normal result.
func (c *Client) TicketStatus(ctx context.Context, ticketID, email string) (string, error) {
	body, err := c.do(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/api/v1/tickets/"+ticketID+"?include=contacts", nil)
	})
	if err != nil {
		return "", err
	}

	var ticket struct {
		Email      string `json:"email"`
		Subject    string `json:"subject"`
		StatusType string `json:"statusType"`
	}
	if err := json.Unmarshal(body, &ticket); err != nil {
		return "", fmt.Errorf("decoding ticket response: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(ticket.Email)) {
		return RefusalMessage, nil
	}

	subject := ticket.Subject
	if subject == "" {
		subject = "No subject provided"
	}
	status := ticket.StatusType
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("The current status of your ticket regarding '%s' is: **%s**.", subject, status), nil
}
