package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(strings.NewReader("OperatorPass123\r\n"), &out, bcrypt.MinCost); err != nil {
		t.Fatalf("hashPassword() failed: %v", err)
	}
	hash := strings.TrimSpace(out.String())

	cfg := &config.Config{Auth: config.AuthConfig{OperatorPasswordHash: hash, BCryptCost: bcrypt.MinCost}}
	if !auth.NewPasswordService(cfg).VerifyOperator("OperatorPass123") {
		t.Errorf("Printed hash %q does not verify the password", hash)
	}
}

func TestHashPasswordRejectsInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"short password", "short\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := hashPassword(strings.NewReader(tt.input), &out, bcrypt.MinCost)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if out.Len() != 0 {
				t.Errorf("Expected no output, got %q", out.String())
			}
			if tt.name == "short password" && !errors.Is(err, auth.ErrPasswordTooShort) {
				t.Errorf("Expected ErrPasswordTooShort, got %v", err)
			}
		})
	}
}
