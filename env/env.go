// Package env provides typed, validated access to process configuration backed by viper.
package env

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validators = map[string][]string{}

var v = validator.New()

func init() {
	v.RegisterValidation("required_for_env", RequiredForEnv)
}

// RegisterValidation attaches one or more validator tags to an environment variable name;
// GetString/GetInt/GetBool run them on every read and panic on failure.
func RegisterValidation(name string, tags ...string) {
	validators[name] = dedupe(append(validators[name], tags...))
}

func validate(name string) {
	for _, tag := range validators[name] {
		if err := v.Var(viper.Get(name), tag); err != nil {
			panic("invalid env var " + name + ": " + err.Error())
		}
	}
}

// GetString returns the string value of name.
func GetString(name string) string {
	validate(name)
	return viper.GetString(name)
}

// GetInt returns the int value of name.
func GetInt(name string) int {
	validate(name)
	return viper.GetInt(name)
}

// GetBool returns the bool value of name.
func GetBool(name string) bool {
	validate(name)
	return viper.GetBool(name)
}

// GetFloat64 returns the float64 value of name.
func GetFloat64(name string) float64 {
	validate(name)
	return viper.GetFloat64(name)
}

// RequiredForEnv validates a "value=env" pair, requiring value to be set only when the
// current ENV matches the suffix after the "=".
var RequiredForEnv validator.Func = func(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}

	spl := strings.Split(s, "=")
	if len(spl) != 2 {
		return false
	}

	return spl[1] == GetString("ENV")
}

func dedupe(src []string) []string {
	result := src[:0]

	seen := make(map[string]bool)
	for _, x := range src {
		if !seen[x] {
			result = append(result, x)
			seen[x] = true
		}
	}
	return result
}
