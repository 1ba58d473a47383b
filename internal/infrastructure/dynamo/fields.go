package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldExpirationDate = "expiration_date"
	fieldPhone          = "phone"
	fieldPhoneConfirmed = "phone_confirmed"
	fieldRole           = "role"
)
