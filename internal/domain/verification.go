package domain

// Verification types. A type names the flow the code belongs to, so the same
// target (an email address or phone number) can hold independent codes for
// independent flows.
const (
	VerificationTypeLogin         = "login"
	VerificationTypeConfirmEmail  = "confirm-email"
	VerificationTypeConfirmPhone  = "confirm-phone"
	VerificationTypeResetPassword = "reset-password"
)

// Verification is a single-use numeric code bound to a (target, type) pair.
// PK: target, SK: type — at most one active code per pair; issuing a new one
// replaces the old. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Verification struct {
	ID        string `json:"id" dynamodbav:"verification_id"`
	Target    string `json:"target" dynamodbav:"target"`
	Type      string `json:"type" dynamodbav:"type"`
	Secret    string `json:"-" dynamodbav:"secret"`
	Algorithm string `json:"algorithm" dynamodbav:"algorithm"`
	Digits    int    `json:"digits" dynamodbav:"digits"`
	Period    int64  `json:"period" dynamodbav:"period"` // seconds
	CharSet   string `json:"char_set" dynamodbav:"char_set"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	CreatedAt int64  `json:"created" dynamodbav:"created_at"`
}
