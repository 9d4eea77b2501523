package app

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"caffmed-api/internal/pkg/jwtutil"
)

func TestAuthServiceLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewAuthService("ops", string(hash), "jwt-secret", time.Minute)

	res, err := svc.Login(LoginInput{Username: "ops", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := jwtutil.ParseToken("jwt-secret", res.Token)
	if err != nil || claims.Username != "ops" {
		t.Errorf("token claims = %+v, %v", claims, err)
	}

	for _, in := range []LoginInput{
		{Username: "ops", Password: "wrong"},
		{Username: "root", Password: "s3cret-pass"},
	} {
		if _, err := svc.Login(in); !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("Login(%+v) error = %v, want ErrInvalidCredential", in, err)
		}
	}
	if _, err := svc.Login(LoginInput{Username: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Login(blank) error = %v", err)
	}
}

func TestAuthServiceDisabled(t *testing.T) {
	svc := NewAuthService("", "", "", 0)
	if svc.Enabled() {
		t.Fatal("Enabled() = true without operator")
	}
	if _, err := svc.Login(LoginInput{Username: "a", Password: "b"}); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Login() error = %v, want ErrAuthDisabled", err)
	}
}
