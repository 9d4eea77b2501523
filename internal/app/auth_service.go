package app

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"caffmed-api/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrAuthDisabled      = errors.New("operator login is not configured")
)

// AuthService issues tokens for the single configured operator account.
type AuthService struct {
	username      string
	passwordHash  []byte
	jwtSecret     string
	jwtExpiration time.Duration
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthService(username, passwordHash, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &AuthService{
		username:      username,
		passwordHash:  []byte(passwordHash),
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Enabled() bool {
	return s.username != "" && len(s.passwordHash) > 0 && s.jwtSecret != ""
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	// Always run bcrypt so a wrong username costs the same as a wrong password.
	hashErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(input.Password))
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	if hashErr != nil || !userOK {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, s.username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: time.Now().Add(s.jwtExpiration)}, nil
}
