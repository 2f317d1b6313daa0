package config

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Credentials identify this solver to the quiz server. The same pair authorizes
// inbound solve requests and is echoed in every submission payload.
type Credentials struct {
	Email  string `mapstructure:"email"`
	Secret string `mapstructure:"secret"`
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("credentials.email required (STUDENT_EMAIL)")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("credentials.secret required (STUDENT_SECRET)")
	}
	return nil
}

// SecretMatches compares in constant time.
func (c Credentials) SecretMatches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

// EmailMatches compares in constant time.
func (c Credentials) EmailMatches(email string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Email), []byte(email)) == 1
}
