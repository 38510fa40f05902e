package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nana-k-osei/LAGC/pkg/circuitbreaker"
	"github.com/nana-k-osei/LAGC/pkg/pricing"
)

const SignatureHeader = "X-Paystack-Signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// APIError is a non-2xx answer from Paystack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack error %d: %s", e.StatusCode, e.Message)
}

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
}

// OrphanHandler settles a verified charge that no pending Charge call in
// this process is waiting for.
type OrphanHandler func(ctx context.Context, reference, paymentReference string, amountMinor int64) error

type Paystack struct {
	cfg     PaystackConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker[json.RawMessage]
	waiters *waiters
	orphan  OrphanHandler
	logger  *slog.Logger
}

func NewPaystack(cfg PaystackConfig, client *http.Client, logger *slog.Logger) *Paystack {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Paystack{
		cfg:    cfg,
		client: client,
		breaker: circuitbreaker.New[json.RawMessage](circuitbreaker.Config{
			Name:         "paystack",
			IsSuccessful: isClientError,
		}, logger),
		waiters: newWaiters(),
		logger:  logger,
	}
}

func (p *Paystack) Name() string { return "paystack" }

// OnOrphanCharge registers h. It must be called before webhooks are served.
func (p *Paystack) OnOrphanCharge(h OrphanHandler) {
	p.orphan = h
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type transactionData struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

func (p *Paystack) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	amount := pricing.ToMinorUnits(req.Amount)
	ch := p.waiters.register(req.Reference, amount, req.Currency)
	defer p.waiters.forget(req.Reference)

	raw, err := p.call(ctx, http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:       req.Email,
		Amount:      strconv.FormatInt(amount, 10),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: p.cfg.CallbackURL,
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("initialize transaction: %w", err)
	}
	var init initializeData
	if err := json.Unmarshal(raw, &init); err != nil {
		return ChargeResult{}, fmt.Errorf("decode initialize response: %w", err)
	}

	p.logger.InfoContext(ctx, "paystack transaction initialized", "reference", req.Reference, "amount_minor", amount)
	if req.OnAuthorize != nil {
		req.OnAuthorize(init.AuthorizationURL)
	}
	return p.waiters.await(ctx, req.Reference, ch), nil
}

// Cancel resolves a pending charge as cancelled, as when the shopper closes
// the payment page.
func (p *Paystack) Cancel(reference string) bool {
	return p.waiters.resolve(reference, ChargeResult{Status: StatusCancelled, Reason: "closed by customer"})
}

type webhookEvent struct {
	Event string          `json:"event"`
	Data  transactionData `json:"data"`
}

// HandleWebhook verifies a Paystack event and resolves the matching pending
// charge. A successful charge nobody waits for goes to the orphan handler;
// other events for unknown references are ignored.
func (p *Paystack) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if !p.validSignature(signature, body) {
		return ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}

	w, ok := p.waiters.lookup(ev.Data.Reference)
	if !ok {
		if ev.Event != "charge.success" || p.orphan == nil {
			p.logger.InfoContext(ctx, "webhook for unknown reference", "event", ev.Event, "reference", ev.Data.Reference)
			return nil
		}
		return p.settleOrphan(ctx, ev.Data.Reference)
	}

	switch ev.Event {
	case "charge.success":
		verified, err := p.verify(ctx, ev.Data.Reference)
		if err != nil {
			return err
		}
		res := ChargeResult{Status: StatusSuccess, PaymentReference: strconv.FormatInt(verified.ID, 10)}
		switch {
		case verified.Status != "success":
			res = ChargeResult{Status: StatusFailed, Reason: "verification returned " + verified.Status}
		case verified.Amount != w.amount || !strings.EqualFold(verified.Currency, w.currency):
			p.logger.ErrorContext(ctx, "paystack amount mismatch",
				"reference", ev.Data.Reference, "expected", w.amount, "got", verified.Amount, "currency", verified.Currency)
			res = ChargeResult{Status: StatusFailed, Reason: "amount mismatch"}
		}
		p.waiters.resolve(ev.Data.Reference, res)
	case "charge.failed":
		p.waiters.resolve(ev.Data.Reference, ChargeResult{Status: StatusFailed, Reason: ev.Data.GatewayResponse})
	default:
		p.logger.DebugContext(ctx, "ignoring webhook event", "event", ev.Event)
	}
	return nil
}

func (p *Paystack) settleOrphan(ctx context.Context, reference string) error {
	verified, err := p.verify(ctx, reference)
	if err != nil {
		return err
	}
	if verified.Status != "success" {
		return nil
	}
	if err := p.orphan(ctx, reference, strconv.FormatInt(verified.ID, 10), verified.Amount); err != nil {
		p.logger.ErrorContext(ctx, "failed to settle orphaned charge", "reference", reference, "error", err)
	}
	return nil
}

func (p *Paystack) verify(ctx context.Context, reference string) (transactionData, error) {
	raw, err := p.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return transactionData{}, fmt.Errorf("verify transaction %s: %w", reference, err)
	}
	var data transactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return transactionData{}, fmt.Errorf("decode verify response: %w", err)
	}
	return data, nil
}

func (p *Paystack) validSignature(signature string, body []byte) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (p *Paystack) call(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	return p.breaker.Execute(func() (json.RawMessage, error) {
		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		var env envelope
		if resp.StatusCode >= 300 {
			_ = json.Unmarshal(respBody, &env)
			if env.Message == "" {
				env.Message = string(respBody)
			}
			return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		}
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if !env.Status {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		}
		return env.Data, nil
	})
}

// isClientError keeps 4xx answers from a healthy Paystack from tripping the
// breaker.
func isClientError(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500
	}
	return errors.Is(err, context.Canceled)
}
