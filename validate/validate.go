package validate

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance used to check admin/API request DTOs.
var Validate = validator.New()

func init() {
	Validate.RegisterValidation("eth_addr", EthAddressValidator)
}

var ethAddressPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{40}$`)

// EthAddressValidator reports whether a field is a 20-byte hex address: a "0x" prefix followed
// by exactly 40 hex characters.
var EthAddressValidator validator.Func = func(fl validator.FieldLevel) bool {
	return IsHexAddress(fl.Field().String())
}

// IsHexAddress reports whether s is a well-formed 20-byte hex address.
func IsHexAddress(s string) bool {
	return ethAddressPattern.MatchString(s)
}
