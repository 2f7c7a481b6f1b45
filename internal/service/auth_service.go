package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lshigami/iqtester/internal/apiclient"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*model.TokenPair, error)
	Register(ctx context.Context, username, email, password string) error
}

type SessionManager interface {
	Login(ctx context.Context, pair model.TokenPair) error
	Logout(ctx context.Context) error
	CurrentIdentity() (model.Identity, bool)
}

type AuthService interface {
	// Login authenticates and opens a session. A token pair whose access token
	// cannot be decoded results in no session and an error.
	Login(ctx context.Context, form dto.LoginForm) (model.Identity, error)
	// Register validates the form locally, then creates the account. Field
	// problems come back as *apiclient.ValidationError either way.
	Register(ctx context.Context, form dto.RegisterForm) error
	Logout(ctx context.Context) error
}

type authService struct {
	api      AuthAPI
	session  SessionManager
	validate *validator.Validate
}

func NewAuthService(api AuthAPI, session SessionManager) AuthService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &authService{api: api, session: session, validate: v}
}

func (s *authService) Login(ctx context.Context, form dto.LoginForm) (model.Identity, error) {
	if err := s.check(form); err != nil {
		return model.Identity{}, err
	}

	pair, err := s.api.Login(ctx, form.Username, form.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", form.Username).Msg("Login failed")
		return model.Identity{}, err
	}
	if err := s.session.Login(ctx, *pair); err != nil {
		log.Error().Err(err).Msg("Login: server returned an unusable token")
		return model.Identity{}, fmt.Errorf("start session: %w", err)
	}

	identity, ok := s.session.CurrentIdentity()
	if !ok {
		return model.Identity{}, errors.New("start session: token already expired")
	}
	return identity, nil
}

func (s *authService) Register(ctx context.Context, form dto.RegisterForm) error {
	if err := s.check(form); err != nil {
		return err
	}

	if err := s.api.Register(ctx, form.Username, form.Email, form.Password); err != nil {
		log.Warn().Err(err).Str("username", form.Username).Msg("Registration rejected")
		return err
	}
	log.Info().Str("username", form.Username).Msg("Account registered")
	return nil
}

func (s *authService) Logout(ctx context.Context) error {
	if err := s.session.Logout(ctx); err != nil {
		log.Error().Err(err).Msg("Logout: failed to clear stored tokens")
		return err
	}
	log.Info().Msg("Logged out")
	return nil
}

// check runs struct validation and reports failures in the same shape as the
// server's field errors.
func (s *authService) check(form any) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string][]string)
	for _, fe := range verrs {
		field, msg := fieldMessage(fe)
		fields[field] = append(fields[field], msg)
	}
	return &apiclient.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) (string, string) {
	switch fe.Tag() {
	case "required":
		return fe.Field(), "This field is required."
	case "min":
		return fe.Field(), fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "email":
		return fe.Field(), "Enter a valid email address."
	case "eqfield":
		return "non_field_errors", "Passwords do not match."
	}
	return fe.Field(), "Invalid value."
}
