package admin

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/metadata"

	svcErr "github.com/oggyb/arena-signals/internal/errors"
)

// Metadata keys carrying operator credentials.
const (
	EmailHeader = "x-operator-email"
	KeyHeader   = "x-operator-key"
)

// Authenticator admits allow-listed operators presenting the shared key.
type Authenticator struct {
	emails  []string
	keyHash []byte
}

// NewAuthenticator takes lower-cased emails and a bcrypt hash of the
// operator key. An empty hash disables operator access.
func NewAuthenticator(emails []string, keyHash string) *Authenticator {
	return &Authenticator{emails: emails, keyHash: []byte(keyHash)}
}

// Authorize returns the operator email found in ctx metadata.
func (a *Authenticator) Authorize(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	email := strings.ToLower(strings.TrimSpace(first(md, EmailHeader)))
	key := first(md, KeyHeader)
	if email == "" || key == "" {
		return "", svcErr.Unauthenticated("operator credentials are required")
	}
	if len(a.keyHash) == 0 || !slices.Contains(a.emails, email) {
		return "", svcErr.PermissionDenied("not an operator")
	}
	if err := bcrypt.CompareHashAndPassword(a.keyHash, []byte(key)); err != nil {
		return "", svcErr.PermissionDenied("not an operator")
	}
	return email, nil
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// WithOperator attaches operator credentials to an outgoing context.
func WithOperator(ctx context.Context, email, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, EmailHeader, email, KeyHeader, key)
}
