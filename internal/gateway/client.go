// Package gateway is the HTTP client for the payment gateway: order
// creation on the gateway side and local verification of the signatures
// the gateway attaches to completed payments.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

var (
	ErrInvalidConfig = errors.New("invalid gateway config")
)

const (
	defaultTimeout = 10 * time.Second
	ordersPath     = "/v1/orders"

	errorOperationGateway = "gateway"
	errorSubjectOrder     = "order"
	errorCodeRequest      = "request"
	errorCodeStatus       = "status"
	errorCodeDecode       = "decode"
)

// Config carries the gateway credentials and endpoint.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Validate reports the missing fields.
func (config Config) Validate() error {
	var missing []string
	if strings.TrimSpace(config.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(config.KeyID) == "" {
		missing = append(missing, "key id")
	}
	if strings.TrimSpace(config.KeySecret) == "" {
		missing = append(missing, "key secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Order is the gateway's view of a created order.
type Order struct {
	OrderRef    string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type orderRequest struct {
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// Client talks to the payment gateway over HTTP and checks payment
// signatures locally. It implements payments.SignatureChecker.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient validates the config and returns a ready client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
			},
		},
	}, nil
}

// CreateOrder registers a new order with the gateway and returns its
// reference. Network and non-2xx failures surface as gateway-unavailable
// so callers never mistake them for a declined payment.
func (client *Client) CreateOrder(ctx context.Context, amountPaise int64, currency string, receipt string) (Order, error) {
	payload, err := json.Marshal(orderRequest{
		AmountPaise: amountPaise,
		Currency:    currency,
		Receipt:     receipt,
	})
	if err != nil {
		return Order{}, wrapGatewayError(errorCodeRequest, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(client.config.BaseURL, "/")+ordersPath, bytes.NewReader(payload))
	if err != nil {
		return Order{}, wrapGatewayError(errorCodeRequest, err)
	}
	request.SetBasicAuth(client.config.KeyID, client.config.KeySecret)
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return Order{}, wrapGatewayError(errorCodeRequest, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err))
	}
	defer response.Body.Close()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return Order{}, wrapGatewayError(errorCodeStatus, fmt.Errorf("%w: status %d", payments.ErrGatewayUnavailable, response.StatusCode))
	}

	var order Order
	if err := json.NewDecoder(response.Body).Decode(&order); err != nil {
		return Order{}, wrapGatewayError(errorCodeDecode, err)
	}
	return order, nil
}

// VerifySignature recomputes the gateway's HMAC-SHA256 over
// "<orderRef>|<paymentRef>" and compares in constant time.
func (client *Client) VerifySignature(orderRef string, paymentRef string, signature string) (bool, error) {
	expected := signPayload(client.config.KeySecret, orderRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

func signPayload(secret string, orderRef string, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func wrapGatewayError(code string, err error) error {
	return payments.WrapError(errorOperationGateway, errorSubjectOrder, code, err)
}
