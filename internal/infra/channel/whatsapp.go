package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/infra/resilience"
)

// WhatsAppSender delivers messages through an UltraMsg instance.
type WhatsAppSender struct {
	httpClient *http.Client
	baseURL    string
	instanceID string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewWhatsAppSender creates an UltraMsg-backed sender.
func NewWhatsAppSender(httpClient *http.Client, baseURL, instanceID, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		httpClient: httpClient,
		baseURL:    baseURL,
		instanceID: instanceID,
		token:      token,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type ultraMsgRequest struct {
	Token    string `json:"token"`
	To       string `json:"to"`
	Body     string `json:"body"`
	Priority int    `json:"priority"`
}

type ultraMsgResponse struct {
	Sent    string `json:"sent"`
	Message string `json:"message"`
	Error   any    `json:"error"`
}

// Send delivers one chat message to a phone number.
func (s *WhatsAppSender) Send(ctx context.Context, destination, text string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			return s.send(ctx, destination, text)
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "ultramsg"}
	}
	if err != nil {
		return &domain.ErrExternalService{Service: "ultramsg", Err: err}
	}
	return nil
}

func (s *WhatsAppSender) send(ctx context.Context, destination, text string) error {
	payload, err := json.Marshal(ultraMsgRequest{
		Token:    s.token,
		To:       destination,
		Body:     text,
		Priority: 10,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages/chat", s.baseURL, s.instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("whatsapp request failed",
			zap.String("to", destination),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("whatsapp non-2xx response",
			zap.String("to", destination),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("ultramsg returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ultraMsgResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode ultramsg response: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("ultramsg error: %v", result.Error)
	}

	s.logger.Debug("whatsapp sent", zap.String("to", destination))
	return nil
}
