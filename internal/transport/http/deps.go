package http

import (
	"github.com/go-site-api/internal/infrastructure/dynamo"
	s3infra "github.com/go-site-api/internal/infrastructure/s3"
	"github.com/go-site-api/internal/infrastructure/smtp"
	"github.com/go-site-api/internal/infrastructure/sns"
	"github.com/go-site-api/internal/pkg/secrets"
)

// Deps holds all infrastructure dependencies for the router. Everything is
// constructed once in main and injected — no ambient singletons.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	VerificationRepo *dynamo.VerificationRepo
	CallRepo         *dynamo.CallRepo
	RecordingStore   *s3infra.Store
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	Cipher           *secrets.Cipher
}
