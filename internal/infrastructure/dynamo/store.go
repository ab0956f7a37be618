package dynamo

import (
	"github.com/go-api-accounts/internal/config"
)

// Store implements the account and one-time code stores on DynamoDB.
//
// Tables:
//   - accounts: PK account_id, GSI phone-index
//   - account_emails: PK email, guards email uniqueness
//   - one_time_codes: PK account_id, SK channel; one live item per pair, TTL on expires_at_ttl
type Store struct {
	client API
	tables config.DynamoTables
}

func NewStore(client API, tables config.DynamoTables) *Store {
	return &Store{client: client, tables: tables}
}
