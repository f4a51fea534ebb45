package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/metrics"
)

const (
	createPaymentPath = "/api-payment/V4/Charge/CreatePayment"
	orderGetPath      = "/api-payment/V4/Order/Get"

	statusSuccess  = "SUCCESS"
	billingCountry = "PE"
	maxBodySize    = 1 << 20

	operationCreateCharge = "create_charge"
	operationFetchStatus  = "fetch_status"
)

// Client exposes the payment gateway operations the service relies on.
type Client interface {
	CreateChargeSession(ctx context.Context, req model.ChargeRequest) (*model.ChargeSession, error)
	FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error)
}

// Options configures credentials and the retry policy.
type Options struct {
	Username   string
	Password   string
	PublicKey  string
	Timeout    time.Duration
	RetryDelay time.Duration
	Attempts   int
}

// HTTPClient implements Client over the gateway REST API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
	metrics    *metrics.Recorder
	tracer     trace.Tracer
}

type envelope struct {
	Status string          `json:"status"`
	Answer json.RawMessage `json:"answer"`
}

type errorAnswer struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type billingDetails struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhoneNumber  string `json:"phoneNumber"`
	IdentityType string `json:"identityType"`
	IdentityCode string `json:"identityCode"`
	Address      string `json:"address"`
	Country      string `json:"country"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"orderId"`
	Customer struct {
		Email          string         `json:"email"`
		BillingDetails billingDetails `json:"billingDetails"`
	} `json:"customer"`
}

type chargeAnswer struct {
	FormToken string `json:"formToken"`
}

type permanentError struct {
	err error
}

// NewHTTPClient creates gateway client for an absolute base URL.
func NewHTTPClient(baseURL string, opts Options, logger *slog.Logger, recorder *metrics.Recorder) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &HTTPClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     logger,
		metrics:    recorder,
		tracer:     otel.Tracer("github.com/polkiloo/draftpay/internal/adapter/gateway"),
	}, nil
}

// CreateChargeSession asks the gateway for a form token bound to the frozen total.
func (c *HTTPClient) CreateChargeSession(ctx context.Context, req model.ChargeRequest) (*model.ChargeSession, error) {
	body := chargeRequest{
		Amount:   req.AmountCents,
		Currency: req.Currency,
		OrderID:  req.OrderRef,
	}
	body.Customer.Email = req.Contact.Email
	body.Customer.BillingDetails = billingDetails{
		FirstName:    req.Contact.FirstName,
		LastName:     req.Contact.LastName,
		PhoneNumber:  req.Contact.Phone,
		IdentityType: req.Contact.DocumentType,
		IdentityCode: req.Contact.DocumentNumber,
		Address:      req.Billing.Line,
		Country:      billingCountry,
		City:         req.Billing.City,
		State:        req.Billing.District,
		ZipCode:      req.Billing.PostalCode,
	}

	raw, err := c.call(ctx, operationCreateCharge, createPaymentPath, body, req.OrderRef)
	if err != nil {
		return nil, err
	}

	var answer chargeAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: decode charge answer: %v", domainErrors.ErrPaymentGateway, err)
	}
	if answer.FormToken == "" {
		return nil, fmt.Errorf("%w: empty form token", domainErrors.ErrPaymentGateway)
	}
	return &model.ChargeSession{Token: answer.FormToken, PublicKey: c.opts.PublicKey}, nil
}

// FetchPaymentStatus returns the raw answer document for reservationNumber.
func (c *HTTPClient) FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error) {
	body := map[string]string{"orderId": reservationNumber}
	raw, err := c.call(ctx, operationFetchStatus, orderGetPath, body, reservationNumber)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *HTTPClient) call(ctx context.Context, operation, endpointPath string, body any, ref string) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+operation, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("reservation.number", ref)))
	defer span.End()

	started := time.Now()
	answer, err := c.callWithRetry(ctx, operation, endpointPath, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
	}
	c.metrics.ObserveGateway(operation, outcome, time.Since(started))

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domainErrors.ErrPaymentGateway, operation, err)
	}
	return answer, nil
}

func (c *HTTPClient) callWithRetry(ctx context.Context, operation, endpointPath string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, endpointPath)

	var answer json.RawMessage
	attempt := func() error {
		result, err := c.do(ctx, endpoint.String(), payload)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(perm.err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		answer = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryDelay
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.Attempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("gateway request failed, retrying",
			slog.String("operation", operation),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	if err := backoff.RetryNotify(attempt, retries, notify); err != nil {
		return nil, err
	}
	return answer, nil
}

func (c *HTTPClient) do(ctx context.Context, endpoint string, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &permanentError{err: err}
	}
	req.SetBasicAuth(c.opts.Username, c.opts.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("gateway responded %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		c.logger.Error("gateway rejected request", slog.Int("status", resp.StatusCode))
		return nil, &permanentError{err: fmt.Errorf("gateway responded %s", resp.Status)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &permanentError{err: fmt.Errorf("decode gateway envelope: %w", err)}
	}
	if !strings.EqualFold(env.Status, statusSuccess) {
		var detail errorAnswer
		_ = json.Unmarshal(env.Answer, &detail)
		return nil, &permanentError{err: fmt.Errorf("gateway status %s: %s %s", env.Status, detail.ErrorCode, detail.ErrorMessage)}
	}
	return env.Answer, nil
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}
