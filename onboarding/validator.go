package onboarding

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a field path (json names, relative to the step) to a
// user-facing message. An empty map means the step may advance.
type FieldErrors map[string]string

func (fe FieldErrors) Valid() bool { return len(fe) == 0 }

var (
	ibanPattern        = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]+$`)
	routingPattern     = regexp.MustCompile(`^\d{9}$`)
	usAccountPattern   = regexp.MustCompile(`^\d{4,17}$`)
	phonePattern       = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)
	websitePattern     = regexp.MustCompile(`(?i)^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?$`)
	ssnLast4Pattern    = regexp.MustCompile(`^\d{4}$`)
	usPostalPattern    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	caPostalPattern    = regexp.MustCompile(`^[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d$`)
	gbPostalPattern    = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`)
	routingWeights     = [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	statesRequiredFrom = map[string]bool{"US": true, "CA": true}
)

const (
	minAge = 18
	maxAge = 120
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("iban", func(fl validator.FieldLevel) bool { return ValidIBAN(fl.Field().String()) })
	must("aba_routing", func(fl validator.FieldLevel) bool { return ValidRoutingNumber(fl.Field().String()) })
	must("us_account_number", func(fl validator.FieldLevel) bool { return usAccountPattern.MatchString(fl.Field().String()) })
	must("phone", func(fl validator.FieldLevel) bool { return phonePattern.MatchString(fl.Field().String()) })
	must("website", func(fl validator.FieldLevel) bool { return websitePattern.MatchString(fl.Field().String()) })
	must("ssn_last4", func(fl validator.FieldLevel) bool { return ssnLast4Pattern.MatchString(fl.Field().String()) })
	return v
}

// NormalizeIBAN strips whitespace and uppercases.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, iban))
}

// ValidIBAN checks shape only. The mod-97 checksum is not enforced.
func ValidIBAN(iban string) bool {
	n := NormalizeIBAN(iban)
	return len(n) >= 15 && len(n) <= 34 && ibanPattern.MatchString(n)
}

// ValidRoutingNumber checks an ABA routing number: 9 digits and the
// 3-7-1 weighted checksum.
func ValidRoutingNumber(routing string) bool {
	if !routingPattern.MatchString(routing) {
		return false
	}
	sum := 0
	for i, r := range routing {
		sum += int(r-'0') * routingWeights[i]
	}
	return sum%10 == 0
}

func ValidPostalCode(code, country string) bool {
	switch strings.ToUpper(country) {
	case "US":
		return usPostalPattern.MatchString(code)
	case "CA":
		return caPostalPattern.MatchString(code)
	case "GB":
		return gbPostalPattern.MatchString(code)
	default:
		return len(code) >= 3 && len(code) <= 10
	}
}

// AgeOn returns the age in whole years on the given day.
func AgeOn(dob DateOfBirth, now time.Time) int {
	age := now.Year() - dob.Year
	if int(now.Month()) < dob.Month || (int(now.Month()) == dob.Month && now.Day() < dob.Day) {
		age--
	}
	return age
}

// ValidateStep runs the rules for one step against the aggregate. It has no
// side effects.
func ValidateStep(step Step, data OnboardingData, now time.Time) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case StepBusinessInfo:
		collect(errs, "", data.BusinessInfo)
		checkAddress(errs, "address", data.BusinessInfo.Address)
	case StepPersonalInfo:
		p := data.PersonalInfo
		collect(errs, "", p)
		checkAddress(errs, "address", p.Address)
		checkDateOfBirth(errs, p.DateOfBirth, now)
		if strings.EqualFold(p.Address.Country, "US") && p.SSNLast4 == "" {
			errs["ssnLast4"] = "Last 4 digits of SSN are required"
		}
	case StepBankAccount:
		validateBankAccount(errs, data.BankAccount)
	case StepDocuments:
		if !hasUploadedIdentity(data.Documents) {
			errs["documents"] = "Upload at least one identity document"
		}
	case StepVerification:
	default:
		errs["step"] = "Unknown onboarding step"
	}
	return errs
}

func validateBankAccount(errs FieldErrors, b BankAccount) {
	switch b.Kind {
	case BankAccountUS:
		if b.US == nil {
			collect(errs, "", USBankAccount{})
			return
		}
		collect(errs, "", *b.US)
	case BankAccountInternational:
		if b.International == nil {
			collect(errs, "", InternationalBankAccount{})
			return
		}
		collect(errs, "", *b.International)
	default:
		errs["kind"] = "Select a bank account type"
	}
}

func hasUploadedIdentity(docs []Document) bool {
	for _, d := range docs {
		if d.Type == DocumentIdentity && d.Uploaded {
			return true
		}
	}
	return false
}

func checkAddress(errs FieldErrors, prefix string, a Address) {
	key := prefix + ".postalCode"
	if a.PostalCode != "" && a.Country != "" && !ValidPostalCode(a.PostalCode, a.Country) {
		errs[key] = "Invalid postal code for " + strings.ToUpper(a.Country)
	}
	if statesRequiredFrom[strings.ToUpper(a.Country)] && strings.TrimSpace(a.State) == "" {
		errs[prefix+".state"] = "State is required"
	}
}

func checkDateOfBirth(errs FieldErrors, dob DateOfBirth, now time.Time) {
	if dob.IsZero() {
		errs["dob"] = "Date of birth is required"
		return
	}
	t := time.Date(dob.Year, time.Month(dob.Month), dob.Day, 0, 0, 0, 0, now.Location())
	if t.Year() != dob.Year || int(t.Month()) != dob.Month || t.Day() != dob.Day || t.After(now) {
		errs["dob"] = "Invalid date of birth"
		return
	}
	switch age := AgeOn(dob, now); {
	case age < minAge:
		errs["dob"] = "You must be at least 18 years old"
	case age > maxAge:
		errs["dob"] = "Invalid date of birth"
	}
}

// collect runs struct tag validation and records one message per field.
func collect(errs FieldErrors, prefix string, s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		key := fieldPath(fe.Namespace())
		if prefix != "" {
			key = prefix + "." + key
		}
		if _, seen := errs[key]; !seen {
			errs[key] = message(fe)
		}
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "phone":
		return "Invalid phone number"
	case "website":
		return "Invalid website URL"
	case "iban":
		return "Invalid IBAN format"
	case "aba_routing":
		return "Invalid routing number"
	case "us_account_number":
		return "Account number must be 4-17 digits"
	case "ssn_last4":
		return "SSN last 4 must be exactly 4 digits"
	case "oneof":
		return label + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "len":
		return label + " must be " + fe.Param() + " characters"
	case "eq":
		return label + " must be " + fe.Param()
	default:
		return "Invalid " + strings.ToLower(label)
	}
}

// humanize turns "accountHolderName" into "Account holder name".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
