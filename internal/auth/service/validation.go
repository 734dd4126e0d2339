package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := authdomain.ParseRole(fl.Field().String())
		return ok
	})
	return v
}

type loginRequest struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=72"`
}

type createUserRequest struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,max=200"`
	Password string `validate:"required,min=6,max=72"`
	Role     string `validate:"required,role"`
}

func validateLogin(input LoginInput) error {
	return validateStruct(loginRequest{
		Email:    strings.TrimSpace(input.Email),
		Password: input.Password,
	})
}

func validateCreateUser(input CreateUserInput) error {
	return validateStruct(createUserRequest{
		Email:    strings.TrimSpace(input.Email),
		Name:     strings.TrimSpace(input.Name),
		Password: input.Password,
		Role:     input.Role,
	})
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return ErrValidation.WithCause(err)
	}
	return nil
}
