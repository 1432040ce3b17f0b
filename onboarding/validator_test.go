package onboarding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

func validBusinessInfo() BusinessInfo {
	return BusinessInfo{
		BusinessType: BusinessIndividual,
		LegalName:    "Salsa Studio",
		Address: Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701",
			Country:    "US",
		},
		Phone:        "+1 (512) 555-0100",
		CategoryCode: "7911",
	}
}

func validPersonalInfo(now time.Time) PersonalInfo {
	return PersonalInfo{
		FirstName:   "Ana",
		LastName:    "Lima",
		DateOfBirth: DateOfBirth{Day: now.Day(), Month: int(now.Month()), Year: now.Year() - 25},
		Address: Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701-1234",
			Country:    "US",
		},
		Phone:    "5125550100",
		Email:    "ana@example.com",
		SSNLast4: "1234",
	}
}

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("EE382200221020145685"))
	assert.False(t, ValidIBAN("US123"))
	assert.True(t, ValidIBAN("eb38 2200 2210 2014 5685"))
	assert.False(t, ValidIBAN("1234567890123456"))
	assert.Equal(t, "EE382200221020145685", NormalizeIBAN(" ee38 2200 2210 2014 5685 "))
}

func TestValidRoutingNumber(t *testing.T) {
	assert.True(t, ValidRoutingNumber("021000021"))
	assert.False(t, ValidRoutingNumber("123456789"))
	assert.False(t, ValidRoutingNumber("02100002"))
	assert.False(t, ValidRoutingNumber("02100002a"))
}

func TestValidPostalCode(t *testing.T) {
	tests := []struct {
		code, country string
		want          bool
	}{
		{"78701", "US", true},
		{"78701-1234", "US", true},
		{"7870", "US", false},
		{"K1A 0B1", "CA", true},
		{"k1a-0b1", "CA", true},
		{"K1A0B", "CA", false},
		{"SW1A 1AA", "GB", true},
		{"sw1a1aa", "GB", true},
		{"12", "DE", false},
		{"10115", "DE", true},
		{"ABCDEFGHIJK", "FR", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPostalCode(tt.code, tt.country), "%s/%s", tt.code, tt.country)
	}
}

func TestValidateStep_AgeGate(t *testing.T) {
	data := OnboardingData{PersonalInfo: validPersonalInfo(fixedNow)}

	data.PersonalInfo.DateOfBirth = DateOfBirth{Day: 1, Month: 6, Year: 2006}
	assert.True(t, ValidateStep(StepPersonalInfo, data, fixedNow).Valid(), "exactly 18 today")

	data.PersonalInfo.DateOfBirth = DateOfBirth{Day: 2, Month: 6, Year: 2006}
	errs := ValidateStep(StepPersonalInfo, data, fixedNow)
	assert.Contains(t, errs["dob"], "must be at least 18")

	data.PersonalInfo.DateOfBirth = DateOfBirth{Day: 1, Month: 1, Year: 1900}
	assert.Equal(t, "Invalid date of birth", ValidateStep(StepPersonalInfo, data, fixedNow)["dob"])

	data.PersonalInfo.DateOfBirth = DateOfBirth{Day: 31, Month: 2, Year: 1990}
	assert.Equal(t, "Invalid date of birth", ValidateStep(StepPersonalInfo, data, fixedNow)["dob"])
}

func TestValidateStep_BusinessInfoRequiredFields(t *testing.T) {
	errs := ValidateStep(StepBusinessInfo, OnboardingData{}, fixedNow)

	assert.Equal(t, "Legal name is required", errs["legalName"])
	assert.Equal(t, "Business type is required", errs["businessType"])
	assert.Equal(t, "Line1 is required", errs["address.line1"])
	assert.Equal(t, "Phone is required", errs["phone"])
	_, hasWebsite := errs["website"]
	assert.False(t, hasWebsite, "website is optional")
}

func TestValidateStep_BusinessInfoFormats(t *testing.T) {
	info := validBusinessInfo()
	assert.True(t, ValidateStep(StepBusinessInfo, OnboardingData{BusinessInfo: info}, fixedNow).Valid())

	info.Phone = "call me"
	info.Website = "not a url"
	info.Address.PostalCode = "ABC"
	errs := ValidateStep(StepBusinessInfo, OnboardingData{BusinessInfo: info}, fixedNow)

	assert.Equal(t, "Invalid phone number", errs["phone"])
	assert.Equal(t, "Invalid website URL", errs["website"])
	assert.Equal(t, "Invalid postal code for US", errs["address.postalCode"])

	info = validBusinessInfo()
	info.Website = "https://salsa.example.com/classes"
	assert.True(t, ValidateStep(StepBusinessInfo, OnboardingData{BusinessInfo: info}, fixedNow).Valid())
}

func TestValidateStep_SSNLast4(t *testing.T) {
	data := OnboardingData{PersonalInfo: validPersonalInfo(fixedNow)}

	data.PersonalInfo.SSNLast4 = "12a4"
	assert.Equal(t, "SSN last 4 must be exactly 4 digits", ValidateStep(StepPersonalInfo, data, fixedNow)["ssnLast4"])

	data.PersonalInfo.SSNLast4 = ""
	assert.Equal(t, "Last 4 digits of SSN are required", ValidateStep(StepPersonalInfo, data, fixedNow)["ssnLast4"])

	data.PersonalInfo.Address = Address{Line1: "Tartu mnt 1", City: "Tallinn", PostalCode: "10115", Country: "EE"}
	assert.True(t, ValidateStep(StepPersonalInfo, data, fixedNow).Valid())
}

func TestValidateStep_BankAccount(t *testing.T) {
	us := OnboardingData{BankAccount: NewUSBankAccount("Ana Lima", "1234567890123", "021000021", "checking")}
	assert.True(t, ValidateStep(StepBankAccount, us, fixedNow).Valid())

	us.BankAccount.US.RoutingNumber = "123456789"
	us.BankAccount.US.AccountNumber = "12"
	errs := ValidateStep(StepBankAccount, us, fixedNow)
	assert.Equal(t, "Invalid routing number", errs["routingNumber"])
	assert.Equal(t, "Account number must be 4-17 digits", errs["accountNumber"])

	intl := OnboardingData{BankAccount: NewInternationalBankAccount("Ana Lima", "ee38 2200 2210 2014 5685", "EE", "eur")}
	assert.True(t, ValidateStep(StepBankAccount, intl, fixedNow).Valid())

	intl.BankAccount.International.IBAN = "US123"
	assert.Equal(t, "Invalid IBAN format", ValidateStep(StepBankAccount, intl, fixedNow)["iban"])

	assert.Equal(t, "Select a bank account type", ValidateStep(StepBankAccount, OnboardingData{}, fixedNow)["kind"])
}

func TestValidateStep_Documents(t *testing.T) {
	data := OnboardingData{Documents: []Document{{Type: DocumentIdentity, Purpose: "identity_document", Uploaded: false}}}
	assert.False(t, ValidateStep(StepDocuments, data, fixedNow).Valid())

	data.Documents = append(data.Documents, Document{Type: DocumentIdentity, Purpose: "identity_document", FileRef: "file_1", Uploaded: true})
	assert.True(t, ValidateStep(StepDocuments, data, fixedNow).Valid())

	assert.True(t, ValidateStep(StepVerification, OnboardingData{}, fixedNow).Valid())
}
