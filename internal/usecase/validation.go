package usecase

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/security"
)

// fieldRules is an ordered rule list for a single value.
type fieldRules struct {
	value any
	rules []validation.Rule
}

func field(value any, rules ...validation.Rule) fieldRules {
	return fieldRules{value: value, rules: rules}
}

// firstError evaluates fields in order and stops at the first violation.
func firstError(fields ...fieldRules) error {
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return domain.NewValidationError(err.Error())
		}
	}
	return nil
}

func emailRules(email string) fieldRules {
	return field(email,
		validation.Required.Error("Email is required"),
		is.Email.Error("Email must be a valid email address"),
	)
}

func passwordPolicy(validator *security.PasswordValidator) validation.Rule {
	return validation.By(func(value interface{}) error {
		password, _ := value.(string)
		return validator.Validate(password)
	})
}

func validateRegistration(in RegisterInput, passwords *security.PasswordValidator) error {
	return firstError(
		emailRules(in.Email),
		field(in.Password,
			validation.Required.Error("Password is required"),
			passwordPolicy(passwords),
		),
		field(string(in.Role),
			validation.In(string(domain.RoleUser), string(domain.RoleAdmin)).Error("Role must be one of: user, admin"),
		),
	)
}

func validateLogin(in LoginInput) error {
	return firstError(
		emailRules(in.Email),
		field(in.Password, validation.Required.Error("Password is required")),
	)
}
