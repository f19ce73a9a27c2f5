package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agrivoice/internal/domain"
)

const (
	defaultURL = "https://api.pushover.net/1/messages.json"

	maxTitle   = 250
	maxMessage = 1024
)

// Client pushes saved listings to the farmer's phone.
type Client struct {
	token      string
	userKey    string
	url        string
	httpClient *http.Client
}

func NewClient(token, userKey string) *Client {
	return NewClientWithURL(token, userKey, defaultURL)
}

func NewClientWithURL(token, userKey, endpoint string) *Client {
	return &Client{
		token:      token,
		userKey:    userKey,
		url:        endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ListingSaved is a no-op when credentials are missing.
func (c *Client) ListingSaved(ctx context.Context, sub domain.Submission) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	title, message := listingMessage(sub)

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("title", title)
	data.Set("message", message)
	data.Set("timestamp", fmt.Sprint(time.Now().Unix()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}
	return nil
}

func listingMessage(sub domain.Submission) (string, string) {
	d := sub.Draft
	title := "Listing saved: " + d.ProductName

	lines := []string{
		"Quantity: " + d.Quantity,
		"Price: " + d.Price,
	}
	if d.Category != "" {
		lines = append(lines, "Category: "+d.Category)
	}
	if sub.Result.WhereToSell != "" {
		lines = append(lines, "Where to sell: "+sub.Result.WhereToSell)
	}
	if d.Description != "" {
		lines = append(lines, "", d.Description)
	}

	return truncate(title, maxTitle), truncate(strings.Join(lines, "\n"), maxMessage)
}

// truncate cuts s to n runes; Pushover counts characters, not bytes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
