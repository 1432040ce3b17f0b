// Package onboarding implements the five step payment account onboarding
// wizard: per-step validation, progress tracking with resumable persistence,
// idempotent account provisioning and the orchestrating state machine.
package onboarding

import "fmt"

// Step identifies a wizard step.
type Step int

const (
	StepBusinessInfo Step = iota + 1
	StepPersonalInfo
	StepBankAccount
	StepDocuments
	StepVerification
)

// TotalSteps is the number of wizard steps.
const TotalSteps = 5

var stepNames = map[Step]string{
	StepBusinessInfo: "business_info",
	StepPersonalInfo: "personal_info",
	StepBankAccount:  "bank_account",
	StepDocuments:    "documents",
	StepVerification: "verification",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step_%d", int(s))
}

func (s Step) Valid() bool {
	return s >= StepBusinessInfo && s <= StepVerification
}

// ParseStep accepts either a step number or its name.
func ParseStep(v string) (Step, bool) {
	for s, name := range stepNames {
		if name == v || fmt.Sprint(int(s)) == v {
			return s, true
		}
	}
	return 0, false
}

type BusinessType string

const (
	BusinessIndividual BusinessType = "individual"
	BusinessCompany    BusinessType = "company"
)

type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

type BusinessInfo struct {
	BusinessType BusinessType `json:"businessType" validate:"required,oneof=individual company"`
	LegalName    string       `json:"legalName" validate:"required"`
	Address      Address      `json:"address"`
	Phone        string       `json:"phone" validate:"required,phone"`
	Website      string       `json:"website,omitempty" validate:"omitempty,website"`
	CategoryCode string       `json:"mcc" validate:"required"`
}

type DateOfBirth struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (d DateOfBirth) IsZero() bool {
	return d.Day == 0 && d.Month == 0 && d.Year == 0
}

type PersonalInfo struct {
	FirstName   string      `json:"firstName" validate:"required"`
	LastName    string      `json:"lastName" validate:"required"`
	DateOfBirth DateOfBirth `json:"dob"`
	Address     Address     `json:"address"`
	Phone       string      `json:"phone" validate:"required,phone"`
	Email       string      `json:"email" validate:"required,email"`
	SSNLast4    string      `json:"ssnLast4,omitempty" validate:"omitempty,ssn_last4"`
}

type BankAccountKind string

const (
	BankAccountUS            BankAccountKind = "us"
	BankAccountInternational BankAccountKind = "international"
)

type USBankAccount struct {
	AccountHolderName string `json:"accountHolderName" validate:"required"`
	AccountNumber     string `json:"accountNumber" validate:"required,us_account_number"`
	RoutingNumber     string `json:"routingNumber" validate:"required,aba_routing"`
	AccountType       string `json:"accountType" validate:"required,oneof=checking savings"`
	Country           string `json:"country" validate:"required,eq=US"`
	Currency          string `json:"currency" validate:"required,eq=usd"`
}

type InternationalBankAccount struct {
	AccountHolderName string `json:"accountHolderName" validate:"required"`
	IBAN              string `json:"iban" validate:"required,iban"`
	Country           string `json:"country" validate:"required,len=2"`
	Currency          string `json:"currency" validate:"required,len=3"`
}

// BankAccount is a tagged union. Only the variant named by Kind is read.
type BankAccount struct {
	Kind          BankAccountKind           `json:"kind"`
	US            *USBankAccount            `json:"us,omitempty"`
	International *InternationalBankAccount `json:"international,omitempty"`
}

// NewUSBankAccount fixes country and currency for the US variant.
func NewUSBankAccount(holder, account, routing, accountType string) BankAccount {
	return BankAccount{
		Kind: BankAccountUS,
		US: &USBankAccount{
			AccountHolderName: holder,
			AccountNumber:     account,
			RoutingNumber:     routing,
			AccountType:       accountType,
			Country:           "US",
			Currency:          "usd",
		},
	}
}

func NewInternationalBankAccount(holder, iban, country, currency string) BankAccount {
	return BankAccount{
		Kind: BankAccountInternational,
		International: &InternationalBankAccount{
			AccountHolderName: holder,
			IBAN:              iban,
			Country:           country,
			Currency:          currency,
		},
	}
}

const (
	DocumentIdentity         = "identity_document"
	DocumentAdditionalVerify = "additional_verification"
)

type Document struct {
	Type     string `json:"type"`
	Purpose  string `json:"purpose"`
	FileRef  string `json:"fileRef"`
	Uploaded bool   `json:"uploaded"`
	URL      string `json:"url,omitempty"`
}

// OnboardingData is the aggregate collected across the wizard.
type OnboardingData struct {
	AccountID    string       `json:"accountId,omitempty"`
	BusinessInfo BusinessInfo `json:"businessInfo"`
	PersonalInfo PersonalInfo `json:"personalInfo"`
	BankAccount  BankAccount  `json:"bankAccount"`
	Documents    []Document   `json:"documents"`
}

// clone copies the slices so snapshots handed to observers stay immutable.
func (d OnboardingData) clone() OnboardingData {
	out := d
	out.Documents = append([]Document(nil), d.Documents...)
	if d.BankAccount.US != nil {
		us := *d.BankAccount.US
		out.BankAccount.US = &us
	}
	if d.BankAccount.International != nil {
		intl := *d.BankAccount.International
		out.BankAccount.International = &intl
	}
	return out
}

type Requirements struct {
	CurrentlyDue        []string `json:"currentlyDue"`
	PastDue             []string `json:"pastDue"`
	EventuallyDue       []string `json:"eventuallyDue"`
	PendingVerification []string `json:"pendingVerification,omitempty"`
}

type AccountStatus struct {
	ChargesEnabled   bool         `json:"chargesEnabled"`
	PayoutsEnabled   bool         `json:"payoutsEnabled"`
	DetailsSubmitted bool         `json:"detailsSubmitted"`
	Requirements     Requirements `json:"requirements"`
}

// VerificationRequired reports whether Finish must call verify-account.
func (s AccountStatus) VerificationRequired() bool {
	return len(s.Requirements.CurrentlyDue) > 0 ||
		len(s.Requirements.PastDue) > 0 ||
		!s.ChargesEnabled ||
		!s.PayoutsEnabled
}

// Community is the subset of the community record the wizard reads.
type Community struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	StripeAccountID string `json:"stripe_account_id,omitempty"`
	Status          string `json:"status"`
}
