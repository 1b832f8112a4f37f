package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"civictrack/models"
	"civictrack/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

const MinPasswordLength = 6

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService checks credentials. Token issuance stays in the HTTP layer.
type AuthService struct {
	users repository.UserRepository
}

func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Register creates a CITIZEN account. Staff and admins are provisioned by
// seeding or by an administrator.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, invalid("email", "is not a valid address")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("password", "must be at least 6 characters")
	}

	user := &models.User{
		Name:     name,
		Email:    in.Email,
		Password: in.Password,
		Role:     models.RoleCitizen,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.ComparePassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) User(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return id, nil
}
