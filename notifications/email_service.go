package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/Logan-Myn/dancehub-v3-sub000/configs"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

const brevoURL = "https://api.brevo.com/v3/smtp/email"

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error
}

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string

	endpoint string
	client   *http.Client
	log      logger.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns a mailer. Without an API key every send is
// skipped and logged, which is what local development wants.
func NewBrevoService(cfg config.EmailConfig, log logger.Logger) *BrevoService {
	if cfg.BrevoAPIKey == "" || cfg.Sender == "" {
		log.Warn("email service not configured, emails will be skipped", nil)
	}
	return &BrevoService{
		APIKey:      cfg.BrevoAPIKey,
		SenderEmail: cfg.Sender,
		SenderName:  cfg.SenderName,
		endpoint:    brevoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

func (s *BrevoService) Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error {
	if s.APIKey == "" || s.SenderEmail == "" {
		s.log.Info("email client not configured, skipping email send", map[string]interface{}{"subject": subject})
		return nil
	}
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		s.log.Error("brevo api error", map[string]interface{}{"status": resp.StatusCode, "body": string(bodyBytes)})
		return fmt.Errorf("failed to send email via Brevo: status %d", resp.StatusCode)
	}

	s.log.Debug("email sent", map[string]interface{}{"to": toEmail, "subject": subject})
	return nil
}
