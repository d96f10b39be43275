package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusExpired = "expired"
)

// SessionItem carries the unit amount in baisa (1000 baisa = 1 OMR) so the
// charge never goes through floating point.
type SessionItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

type Session struct {
	SessionID         string        `json:"session_id"`
	ClientReferenceID string        `json:"client_reference_id"`
	PaymentStatus     string        `json:"payment_status"`
	TotalAmount       int64         `json:"total_amount"`
	Products          []SessionItem `json:"products"`
	PaymentLink       string        `json:"-"`
}

type PaymentClient interface {
	CreateSession(ctx context.Context, items []SessionItem, clientReferenceID string) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// FindSessionByClientReference lists recent sessions and linear-scans for
	// the reference. Fallback only; the session id is normally cached on the
	// order at creation time.
	FindSessionByClientReference(ctx context.Context, clientReferenceID string) (*Session, error)
}

type ThawaniConfig struct {
	APIURL         string
	PayBaseURL     string
	APIKey         string
	PublishableKey string
	SuccessURL     string
	CancelURL      string
}

type thawaniHTTPClient struct {
	cfg    ThawaniConfig
	client *http.Client
	log    *logrus.Logger
}

func NewThawaniClient(cfg ThawaniConfig, client *http.Client, logger *logrus.Logger) PaymentClient {
	return &thawaniHTTPClient{
		cfg:    cfg,
		client: client,
		log:    logger,
	}
}

type sessionEnvelope struct {
	Success bool    `json:"success"`
	Code    int     `json:"code"`
	Data    Session `json:"data"`
}

type sessionListEnvelope struct {
	Success bool      `json:"success"`
	Code    int       `json:"code"`
	Data    []Session `json:"data"`
}

func (c *thawaniHTTPClient) CreateSession(ctx context.Context, items []SessionItem, clientReferenceID string) (*Session, error) {
	payload := map[string]interface{}{
		"client_reference_id": clientReferenceID,
		"mode":                "payment",
		"products":            items,
		"success_url":         c.cfg.SuccessURL,
		"cancel_url":          c.cfg.CancelURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare checkout session payload: %w", err)
	}

	endpoint := c.cfg.APIURL + "/checkout/session"
	c.log.Infof("ThawaniClient: Creating checkout session (reference: %s, items: %d)", clientReferenceID, len(items))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("thawani-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("ThawaniClient: Failed to execute CreateSession request (reference %s): %v", clientReferenceID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Errorf("ThawaniClient: CreateSession returned status %d (reference %s)", resp.StatusCode, clientReferenceID)
		return nil, fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.log.Errorf("ThawaniClient: Failed to decode CreateSession response (reference %s): %v", clientReferenceID, err)
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	if envelope.Data.SessionID == "" {
		c.log.Errorf("ThawaniClient: CreateSession response missing session_id (reference %s)", clientReferenceID)
		return nil, fmt.Errorf("%w: response missing session id", domain.ErrGatewayUnavailable)
	}

	session := envelope.Data
	session.PaymentLink = fmt.Sprintf("%s/pay/%s?key=%s",
		c.cfg.PayBaseURL, session.SessionID, c.cfg.PublishableKey)

	c.log.Infof("ThawaniClient: Session created: %s", session.SessionID)
	return &session, nil
}

func (c *thawaniHTTPClient) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	endpoint := fmt.Sprintf("%s/checkout/session/%s", c.cfg.APIURL, url.PathEscape(sessionID))
	c.log.Infof("ThawaniClient: Fetching session %s", sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session fetch request: %w", err)
	}
	req.Header.Set("thawani-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("ThawaniClient: Failed to execute GetSession request for %s: %v", sessionID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.log.Warnf("ThawaniClient: Session %s not found", sessionID)
		return nil, domain.ErrPaymentNotConfirmed
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Errorf("ThawaniClient: GetSession for %s returned status %d", sessionID, resp.StatusCode)
		return nil, fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.log.Errorf("ThawaniClient: Failed to decode GetSession response for %s: %v", sessionID, err)
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGatewayUnavailable, err)
	}

	session := envelope.Data
	return &session, nil
}

func (c *thawaniHTTPClient) FindSessionByClientReference(ctx context.Context, clientReferenceID string) (*Session, error) {
	// The gateway has no server-side filter on client_reference_id, so this
	// pages through recent sessions and scans.
	endpoint := fmt.Sprintf("%s/checkout/session/?limit=%d&skip=0", c.cfg.APIURL, 100)
	c.log.Infof("ThawaniClient: Scanning recent sessions for reference %s", clientReferenceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session list request: %w", err)
	}
	req.Header.Set("thawani-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("ThawaniClient: Failed to execute session list request: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Errorf("ThawaniClient: Session list returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope sessionListEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.log.Errorf("ThawaniClient: Failed to decode session list response: %v", err)
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrGatewayUnavailable, err)
	}

	for i := range envelope.Data {
		if envelope.Data[i].ClientReferenceID == clientReferenceID {
			session := envelope.Data[i]
			c.log.Infof("ThawaniClient: Found session %s for reference %s", session.SessionID, clientReferenceID)
			return &session, nil
		}
	}

	c.log.Warnf("ThawaniClient: No session found for reference %s", clientReferenceID)
	return nil, domain.ErrPaymentNotConfirmed
}
