package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	config "github.com/Logan-Myn/dancehub-v3-sub000/configs"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
)

// ErrAccountNotFound is returned when Stripe no longer knows the account.
var ErrAccountNotFound = errors.New("stripe account not found")

// PaymentIntentInput describes a direct charge on a connected account.
type PaymentIntentInput struct {
	ConnectedAccount string
	Amount           int64
	ApplicationFee   int64
	Currency         string
	Description      string
	ReceiptEmail     string
	Metadata         map[string]string
}

type PaymentIntentResult struct {
	ID           string
	ClientSecret string
	Status       string
}

// WebhookEvent is the part of a Stripe event the booking reconciliation needs.
type WebhookEvent struct {
	ID               string
	Type             string
	PaymentIntentID  string
	ConnectedAccount string
	Status           string
}

type StripeClient struct {
	api           *client.API
	webhookSecret string
	now           func() time.Time
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
	}
}

func (s *StripeClient) CreateAccount(ctx context.Context, req onboarding.CreateAccountRequest) (string, error) {
	params := CreateAccountParams(req)
	params.Context = ctx
	acct, err := s.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe account: %w", err)
	}
	return acct.ID, nil
}

func (s *StripeClient) GetAccount(ctx context.Context, accountID string) (onboarding.AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := s.api.Accounts.GetByID(accountID, params)
	if err != nil {
		if isResourceMissing(err) {
			return onboarding.AccountStatus{}, ErrAccountNotFound
		}
		return onboarding.AccountStatus{}, fmt.Errorf("get stripe account: %w", err)
	}
	return AccountStatusFrom(acct), nil
}

// UpdateAccountStep pushes one wizard step to the connected account.
// The verification step carries no data.
func (s *StripeClient) UpdateAccountStep(ctx context.Context, accountID string, step onboarding.Step, data onboarding.OnboardingData) error {
	var err error
	switch step {
	case onboarding.StepBusinessInfo:
		params := BusinessInfoParams(data.BusinessInfo)
		params.Context = ctx
		_, err = s.api.Accounts.Update(accountID, params)
	case onboarding.StepPersonalInfo:
		if data.BusinessInfo.BusinessType == onboarding.BusinessCompany {
			params := RepresentativeParams(accountID, data.PersonalInfo)
			params.Context = ctx
			_, err = s.api.Persons.New(params)
		} else {
			params := &stripe.AccountParams{Individual: PersonalInfoParams(data.PersonalInfo)}
			params.Context = ctx
			_, err = s.api.Accounts.Update(accountID, params)
		}
	case onboarding.StepBankAccount:
		params, perr := BankAccountParams(accountID, data.BankAccount)
		if perr != nil {
			return perr
		}
		params.Context = ctx
		_, err = s.api.BankAccounts.New(params)
	case onboarding.StepDocuments:
		params := DocumentParams(data.BusinessInfo.BusinessType, data.Documents)
		if params == nil {
			return nil
		}
		params.Context = ctx
		_, err = s.api.Accounts.Update(accountID, params)
	case onboarding.StepVerification:
		return nil
	default:
		return fmt.Errorf("unknown onboarding step %d", int(step))
	}
	if err != nil {
		return fmt.Errorf("update stripe account %s: %w", step, err)
	}
	return nil
}

// AcceptTerms records the platform terms acceptance, which is what the
// final verification submission amounts to for a custom account.
func (s *StripeClient) AcceptTerms(ctx context.Context, accountID, ip string) error {
	params := &stripe.AccountParams{
		TOSAcceptance: &stripe.AccountTOSAcceptanceParams{
			Date: stripe.Int64(s.now().Unix()),
			IP:   stripe.String(ip),
		},
	}
	params.Context = ctx
	if _, err := s.api.Accounts.Update(accountID, params); err != nil {
		return fmt.Errorf("accept terms for %s: %w", accountID, err)
	}
	return nil
}

// UploadIdentityFile stores a file on the connected account and returns its file id.
func (s *StripeClient) UploadIdentityFile(ctx context.Context, accountID, fileName string, r io.Reader) (string, error) {
	params := &stripe.FileParams{
		FileReader: r,
		Filename:   stripe.String(fileName),
		Purpose:    stripe.String(string(stripe.FilePurposeIdentityDocument)),
	}
	params.Context = ctx
	params.SetStripeAccount(accountID)
	f, err := s.api.Files.New(params)
	if err != nil {
		return "", fmt.Errorf("upload identity file: %w", err)
	}
	return f.ID, nil
}

func (s *StripeClient) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (PaymentIntentResult, error) {
	params := PaymentIntentParams(in)
	params.Context = ctx
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("create payment intent: %w", err)
	}
	return PaymentIntentResult{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (s *StripeClient) ConfirmPaymentIntent(ctx context.Context, connectedAccount, intentID, paymentMethodID string) (PaymentIntentResult, error) {
	params := &stripe.PaymentIntentConfirmParams{PaymentMethod: stripe.String(paymentMethodID)}
	params.Context = ctx
	params.SetStripeAccount(connectedAccount)
	pi, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("confirm payment intent %s: %w", intentID, err)
	}
	return PaymentIntentResult{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment intent the event refers to.
func (s *StripeClient) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	return ParseWebhook(payload, signature, s.webhookSecret)
}

func ParseWebhook(payload []byte, signature, secret string) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("invalid webhook: %w", err)
	}
	out := WebhookEvent{ID: event.ID, Type: string(event.Type), ConnectedAccount: event.Account}
	if strings.HasPrefix(out.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentIntentID = pi.ID
		out.Status = string(pi.Status)
	}
	return out, nil
}

// IntentIDFromClientSecret recovers "pi_123" from "pi_123_secret_abc".
func IntentIDFromClientSecret(secret string) (string, bool) {
	i := strings.Index(secret, "_secret_")
	if i <= 0 {
		return "", false
	}
	return secret[:i], true
}

func isResourceMissing(err error) bool {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return serr.Code == stripe.ErrorCodeResourceMissing || serr.HTTPStatusCode == 404
	}
	return false
}
