package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable means the payment gateway could not be reached
	// or answered with a server error. Retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidRequest means the gateway rejected the payment parameters
	ErrInvalidRequest = errors.New("payment gateway rejected request")
)

// GoPayClient talks to the GoPay REST API. GetStatus is the only
// authoritative source of paid/not-paid truth; webhook payloads are
// treated as hints to call it.
type GoPayClient struct {
	baseURL      string
	goID         string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGoPayClient creates a new gateway client
func NewGoPayClient(baseURL, goID, clientID, clientSecret string) *GoPayClient {
	return &GoPayClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		goID:         goID,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentRequest describes one payment intent
type CreatePaymentRequest struct {
	OrderID     string
	Amount      decimal.Decimal // major units, converted to minor units on the wire
	Currency    string
	Description string
	ReturnURL   string
	NotifyURL   string
}

// CreatePaymentResponse references the gateway-side intent
type CreatePaymentResponse struct {
	IntentID    string
	State       string
	RedirectURL string
}

type gopayPaymentBody struct {
	Target struct {
		Type string `json:"type"`
		GoID string `json:"goid"`
	} `json:"target"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderNumber string `json:"order_number"`
	OrderDesc   string `json:"order_description"`
	Callback    struct {
		ReturnURL       string `json:"return_url"`
		NotificationURL string `json:"notification_url"`
	} `json:"callback"`
}

type gopayPaymentResponse struct {
	ID     int64  `json:"id"`
	State  string `json:"state"`
	GwURL  string `json:"gw_url"`
	Errors []struct {
		ErrorCode   int    `json:"error_code"`
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"errors"`
}

// CreatePayment creates a payment intent. No local state is touched;
// the caller persists the returned intent id.
func (c *GoPayClient) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	log.Printf("[GoPay] Creating payment for order %s (%s %s)", req.OrderID, req.Amount, req.Currency)

	var body gopayPaymentBody
	body.Target.Type = "ACCOUNT"
	body.Target.GoID = c.goID
	// GoPay expects minor units
	body.Amount = req.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	body.Currency = req.Currency
	body.OrderNumber = req.OrderID
	body.OrderDesc = req.Description
	body.Callback.ReturnURL = req.ReturnURL
	body.Callback.NotificationURL = req.NotifyURL

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}

	respBody, status, err := c.doAuthorized(ctx, http.MethodPost, "/payments/payment", payload)
	if err != nil {
		return nil, err
	}

	var result gopayPaymentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode payment response: %w (body: %s)", err, string(respBody))
	}

	if status >= 500 {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, status)
	}
	if status >= 400 {
		msg := ""
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidRequest, status, msg)
	}

	log.Printf("[GoPay] Payment created: %d (state: %s)", result.ID, result.State)
	return &CreatePaymentResponse{
		IntentID:    strconv.FormatInt(result.ID, 10),
		State:       result.State,
		RedirectURL: result.GwURL,
	}, nil
}

// GetStatus fetches the authoritative payment state by intent id
func (c *GoPayClient) GetStatus(ctx context.Context, intentID string) (string, error) {
	respBody, status, err := c.doAuthorized(ctx, http.MethodGet, "/payments/payment/"+intentID, nil)
	if err != nil {
		return "", err
	}

	if status >= 500 {
		return "", fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, status)
	}
	if status >= 400 {
		return "", fmt.Errorf("%w: status %d for payment %s", ErrInvalidRequest, status, intentID)
	}

	var result gopayPaymentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode status response: %w (body: %s)", err, string(respBody))
	}

	return result.State, nil
}

// doAuthorized sends a request with a valid OAuth token, fetching one first
// when the cached token is missing or expired
func (c *GoPayClient) doAuthorized(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

type gopayTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *GoPayClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "payment-all")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	httpReq.SetBasicAuth(c.clientID, c.clientSecret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result gopayTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = result.AccessToken
	// renew slightly early
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn-30) * time.Second)
	return c.accessToken, nil
}
