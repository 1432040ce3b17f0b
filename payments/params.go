package payments

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"

	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
)

// zero-decimal currencies are charged in whole units
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func IsZeroDecimal(currency string) bool {
	return zeroDecimal[strings.ToLower(currency)]
}

// MinorUnits converts a decimal amount to the integer Stripe charges.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// PlatformFee is percent of amount, rounded half up to the minor unit.
func PlatformFee(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

func CreateAccountParams(req onboarding.CreateAccountRequest) *stripe.AccountParams {
	businessType := string(req.BusinessType)
	if businessType == "" {
		businessType = string(onboarding.BusinessIndividual)
	}
	params := &stripe.AccountParams{
		Type:         stripe.String(string(stripe.AccountTypeCustom)),
		Country:      stripe.String(strings.ToUpper(req.Country)),
		BusinessType: stripe.String(businessType),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.AddMetadata("community_id", req.CommunityID)
	return params
}

func addressParams(a onboarding.Address) *stripe.AddressParams {
	out := &stripe.AddressParams{
		Line1:      stripe.String(a.Line1),
		City:       stripe.String(a.City),
		PostalCode: stripe.String(a.PostalCode),
		Country:    stripe.String(strings.ToUpper(a.Country)),
	}
	if a.Line2 != "" {
		out.Line2 = stripe.String(a.Line2)
	}
	if a.State != "" {
		out.State = stripe.String(a.State)
	}
	return out
}

func BusinessInfoParams(info onboarding.BusinessInfo) *stripe.AccountParams {
	profile := &stripe.AccountBusinessProfileParams{
		MCC:          stripe.String(info.CategoryCode),
		Name:         stripe.String(info.LegalName),
		SupportPhone: stripe.String(info.Phone),
	}
	if info.Website != "" {
		url := info.Website
		if !strings.HasPrefix(strings.ToLower(url), "http") {
			url = "https://" + url
		}
		profile.URL = stripe.String(url)
	}
	params := &stripe.AccountParams{
		BusinessType:    stripe.String(string(info.BusinessType)),
		BusinessProfile: profile,
	}
	if info.BusinessType == onboarding.BusinessCompany {
		params.Company = &stripe.AccountCompanyParams{
			Name:    stripe.String(info.LegalName),
			Phone:   stripe.String(info.Phone),
			Address: addressParams(info.Address),
		}
	}
	return params
}

func PersonalInfoParams(p onboarding.PersonalInfo) *stripe.PersonParams {
	out := &stripe.PersonParams{
		FirstName: stripe.String(p.FirstName),
		LastName:  stripe.String(p.LastName),
		Email:     stripe.String(p.Email),
		Phone:     stripe.String(p.Phone),
		Address:   addressParams(p.Address),
		DOB: &stripe.PersonDOBParams{
			Day:   stripe.Int64(int64(p.DateOfBirth.Day)),
			Month: stripe.Int64(int64(p.DateOfBirth.Month)),
			Year:  stripe.Int64(int64(p.DateOfBirth.Year)),
		},
	}
	if p.SSNLast4 != "" {
		out.SSNLast4 = stripe.String(p.SSNLast4)
	}
	return out
}

// RepresentativeParams creates the company representative from the personal step.
func RepresentativeParams(accountID string, p onboarding.PersonalInfo) *stripe.PersonParams {
	out := PersonalInfoParams(p)
	out.Account = stripe.String(accountID)
	out.Relationship = &stripe.PersonRelationshipParams{
		Representative: stripe.Bool(true),
	}
	return out
}

func BankAccountParams(accountID string, b onboarding.BankAccount) (*stripe.BankAccountParams, error) {
	switch b.Kind {
	case onboarding.BankAccountUS:
		if b.US == nil {
			return nil, fmt.Errorf("us bank account details missing")
		}
		return &stripe.BankAccountParams{
			Account:           stripe.String(accountID),
			AccountHolderName: stripe.String(b.US.AccountHolderName),
			AccountHolderType: stripe.String("individual"),
			AccountNumber:     stripe.String(b.US.AccountNumber),
			RoutingNumber:     stripe.String(b.US.RoutingNumber),
			Country:           stripe.String("US"),
			Currency:          stripe.String("usd"),
		}, nil
	case onboarding.BankAccountInternational:
		if b.International == nil {
			return nil, fmt.Errorf("international bank account details missing")
		}
		return &stripe.BankAccountParams{
			Account:           stripe.String(accountID),
			AccountHolderName: stripe.String(b.International.AccountHolderName),
			AccountHolderType: stripe.String("individual"),
			AccountNumber:     stripe.String(onboarding.NormalizeIBAN(b.International.IBAN)),
			Country:           stripe.String(strings.ToUpper(b.International.Country)),
			Currency:          stripe.String(strings.ToLower(b.International.Currency)),
		}, nil
	}
	return nil, fmt.Errorf("unknown bank account kind %q", b.Kind)
}

// DocumentParams attaches uploaded files to the account's verification.
// It returns nil when nothing has been uploaded.
func DocumentParams(businessType onboarding.BusinessType, docs []onboarding.Document) *stripe.AccountParams {
	var identity, additional string
	for _, d := range docs {
		if !d.Uploaded || d.FileRef == "" {
			continue
		}
		switch d.Purpose {
		case onboarding.DocumentAdditionalVerify:
			if additional == "" {
				additional = d.FileRef
			}
		default:
			if identity == "" {
				identity = d.FileRef
			}
		}
	}
	if identity == "" && additional == "" {
		return nil
	}

	if businessType == onboarding.BusinessCompany {
		front := identity
		if front == "" {
			front = additional
		}
		return &stripe.AccountParams{
			Company: &stripe.AccountCompanyParams{
				Verification: &stripe.AccountCompanyVerificationParams{
					Document: &stripe.AccountCompanyVerificationDocumentParams{Front: stripe.String(front)},
				},
			},
		}
	}

	verification := &stripe.PersonVerificationParams{}
	if identity != "" {
		verification.Document = &stripe.PersonVerificationDocumentParams{Front: stripe.String(identity)}
	}
	if additional != "" {
		verification.AdditionalDocument = &stripe.PersonVerificationDocumentParams{Front: stripe.String(additional)}
	}
	return &stripe.AccountParams{Individual: &stripe.PersonParams{Verification: verification}}
}

func AccountStatusFrom(acct *stripe.Account) onboarding.AccountStatus {
	out := onboarding.AccountStatus{
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		Requirements: onboarding.Requirements{
			CurrentlyDue:  []string{},
			PastDue:       []string{},
			EventuallyDue: []string{},
		},
	}
	if r := acct.Requirements; r != nil {
		out.Requirements.CurrentlyDue = append(out.Requirements.CurrentlyDue, r.CurrentlyDue...)
		out.Requirements.PastDue = append(out.Requirements.PastDue, r.PastDue...)
		out.Requirements.EventuallyDue = append(out.Requirements.EventuallyDue, r.EventuallyDue...)
		out.Requirements.PendingVerification = append(out.Requirements.PendingVerification, r.PendingVerification...)
	}
	return out
}

// PaymentIntentParams charges on the connected account and keeps the
// platform fee.
func PaymentIntentParams(in PaymentIntentInput) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.ApplicationFee > 0 {
		params.ApplicationFeeAmount = stripe.Int64(in.ApplicationFee)
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetStripeAccount(in.ConnectedAccount)
	return params
}
