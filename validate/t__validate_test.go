package validate

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type testValue struct {
	value                string
	description          string
	shouldPassValidation bool
}

func TestValidate_ethAddressValidator(pTest *testing.T) {
	var testAddresses = []testValue{
		{"0x1234567890abcdef1234567890abcdef12345678", "valid lowercase address", true},
		{"0x1234567890ABCDEF1234567890ABCDEF12345678", "valid mixed-case address", true},
		{"1234567890abcdef1234567890abcdef12345678", "missing 0x prefix", false},
		{"0x1234", "too short", false},
		{"0x1234567890abcdef1234567890abcdef123456789abc", "too long", false},
		{"0xZZ34567890abcdef1234567890abcdef12345678", "non-hex characters", false},
	}
	testValidatorWithTestValues(pTest, EthAddressValidator, testAddresses)
}

func testValidatorWithTestValues(pTest *testing.T, validatorFunc validator.Func, testValues []testValue) {
	validate := validator.New()
	validate.RegisterValidation("validatorName", validatorFunc)

	for _, item := range testValues {
		err := validate.Var(item.value, "validatorName")
		if item.shouldPassValidation {
			assert.Nil(pTest, err, item.description)
		} else {
			assert.Error(pTest, err, item.description)
		}
	}
}
