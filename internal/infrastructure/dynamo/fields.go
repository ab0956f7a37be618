package dynamo

// DynamoDB attribute names used in keys and expressions.
const (
	fieldAccountID       = "account_id"
	fieldEmail           = "email"
	fieldPhone           = "phone"
	fieldChannel         = "channel"
	fieldCodeID          = "code_id"
	fieldConsumedAt      = "consumed_at"
	fieldEmailVerifiedAt = "email_verified_at"
	fieldPhoneVerifiedAt = "phone_verified_at"
	fieldUpdatedAt       = "updated_at"
	fieldExpiresAtTTL    = "expires_at_ttl"

	indexPhone = "phone-index"
)
