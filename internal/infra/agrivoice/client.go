package agrivoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agrivoice/internal/application"
	"agrivoice/internal/domain"
)

const DefaultBaseURL = "http://localhost:8000/api"

// Client talks to the AgriVoice backend. It implements
// application.Transcriber through the complete-voice-process endpoint and
// exposes the narrower transcribe and generate-description endpoints for
// the two-step flow.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type voiceProcessRequest struct {
	AudioData    string `json:"audio_data"`
	Language     string `json:"language"`
	FarmerMobile string `json:"farmer_mobile,omitempty"`
}

type voiceProcessResponse struct {
	Success             *bool  `json:"success"`
	Error               string `json:"error"`
	TranscribedText     string `json:"transcribed_text"`
	Product             string `json:"product"`
	Quantity            string `json:"quantity"`
	Price               string `json:"price"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	SuggestedPriceRange string `json:"suggested_price_range"`
	MarketSuggestion    string `json:"market_suggestion"`
	SellingTip          string `json:"selling_tip"`
}

type transcribeRequest struct {
	AudioData string `json:"audio_data"`
	Language  string `json:"language"`
}

type transcribeResponse struct {
	Success         *bool  `json:"success"`
	Error           string `json:"error"`
	Text            string `json:"text"`
	TranscribedText string `json:"transcribed_text"`
}

type describeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type describeResponse struct {
	Success     *bool  `json:"success"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

type storeRequest struct {
	ProductInfo     productInfo `json:"product_info"`
	AIResponse      aiResponse  `json:"ai_response"`
	TranscribedText string      `json:"transcribed_text"`
	Language        string      `json:"language"`
	FarmerMobile    string      `json:"farmer_mobile"`
}

type productInfo struct {
	Product  string `json:"product"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Category string `json:"category,omitempty"`
}

type aiResponse struct {
	Description string `json:"description"`
	PriceRange  string `json:"price_range"`
	WhereToSell string `json:"where_to_sell"`
	SellingTip  string `json:"selling_tip"`
}

type storeResponse struct {
	Success   *bool  `json:"success"`
	Error     string `json:"error"`
	ProductID string `json:"product_id"`
}

// Transcribe runs the whole voice pipeline in one round-trip. The backend
// reports success with empty product fields when extraction fails; those
// are left for the user to fill in.
func (c *Client) Transcribe(ctx context.Context, req application.TranscribeRequest) (*domain.TranscriptionResult, error) {
	const op = "complete voice process"

	var resp voiceProcessResponse
	err := c.postJSON(ctx, op, "/complete-voice-process", voiceProcessRequest{
		AudioData:    base64.StdEncoding.EncodeToString(req.Audio),
		Language:     req.Language.String(),
		FarmerMobile: req.FarmerMobile,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if err := checkSuccess(op, resp.Success, resp.Error); err != nil {
		return nil, err
	}
	return &domain.TranscriptionResult{
		TranscribedText: resp.TranscribedText,
		Description:     resp.Description,
		ProductName:     resp.Product,
		Quantity:        resp.Quantity,
		Price:           resp.Price,
		Category:        resp.Category,
		PriceRange:      resp.SuggestedPriceRange,
		WhereToSell:     resp.MarketSuggestion,
		SellingTip:      resp.SellingTip,
	}, nil
}

// Recognize sends audio to the transcribe endpoint. Both the "text" and
// "transcribed_text" response fields are accepted.
func (c *Client) Recognize(ctx context.Context, audio []byte, lang domain.Language) (string, error) {
	const op = "transcribe"

	var resp transcribeResponse
	err := c.postJSON(ctx, op, "/transcribe", transcribeRequest{
		AudioData: base64.StdEncoding.EncodeToString(audio),
		Language:  lang.String(),
	}, &resp)
	if err != nil {
		return "", err
	}

	if err := checkSuccess(op, resp.Success, resp.Error); err != nil {
		return "", err
	}

	text := resp.Text
	if text == "" {
		text = resp.TranscribedText
	}
	if text == "" {
		return "", domain.MalformedResponse(op, errors.New("missing text"))
	}
	return text, nil
}

func (c *Client) GenerateDescription(ctx context.Context, text string, lang domain.Language) (string, error) {
	const op = "generate description"

	var resp describeResponse
	err := c.postJSON(ctx, op, "/generate-description", describeRequest{
		Text:     text,
		Language: lang.String(),
	}, &resp)
	if err != nil {
		return "", err
	}

	if err := checkSuccess(op, resp.Success, resp.Error); err != nil {
		return "", err
	}
	if resp.Description == "" {
		return "", domain.MalformedResponse(op, errors.New("missing description"))
	}
	return resp.Description, nil
}

func (c *Client) StoreProduct(ctx context.Context, sub domain.Submission) error {
	const op = "store product"

	r := sub.Result
	body := storeRequest{
		ProductInfo: productInfo{
			Product:  sub.Draft.ProductName,
			Quantity: sub.Draft.Quantity,
			Price:    sub.Draft.Price,
			Category: sub.Draft.Category,
		},
		AIResponse: aiResponse{
			Description: sub.Draft.Description,
			PriceRange:  orDefault(r.PriceRange, "Market price"),
			WhereToSell: orDefault(r.WhereToSell, "Local market"),
			SellingTip:  orDefault(r.SellingTip, "Highlight freshness"),
		},
		TranscribedText: sub.TranscribedText(),
		Language:        sub.Language.String(),
		FarmerMobile:    sub.FarmerMobile,
	}

	var resp storeResponse
	if err := c.postJSON(ctx, op, "/store-product", body, &resp); err != nil {
		return err
	}
	return checkSuccess(op, resp.Success, resp.Error)
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NetworkFailure("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ServerRejected("health", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NetworkFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.ServerRejected(op, fmt.Errorf("agrivoice API error %d: %s", resp.StatusCode, string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.MalformedResponse(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func checkSuccess(op string, success *bool, message string) error {
	if success == nil {
		return domain.MalformedResponse(op, errors.New("missing success marker"))
	}
	if !*success {
		if message == "" {
			message = "success=false"
		}
		return domain.ServerRejected(op, errors.New(message))
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
