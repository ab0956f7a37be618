package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/go-api-accounts/internal/domain"
)

type emailGuard struct {
	Email     string `dynamodbav:"email"`
	AccountID string `dynamodbav:"account_id"`
}

// InsertAccount writes the account and its email guard in one conditional
// transaction. A taken email yields domain.ErrConflict unless it already
// belongs to this account (a retried insert).
func (s *Store) InsertAccount(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	guard, err := attributevalue.MarshalMap(emailGuard{Email: a.Email, AccountID: a.AccountID})
	if err != nil {
		return fmt.Errorf("marshal email guard: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(s.tables.AccountEmails),
				Item:                     guard,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(s.tables.Accounts),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldAccountID},
			}},
		},
	})
	if err == nil {
		return nil
	}
	if !isTransactionCanceled(err) {
		return fmt.Errorf("insert account: %w", err)
	}

	owner, gErr := s.emailOwner(ctx, a.Email)
	if gErr == nil && owner == a.AccountID {
		return nil
	}
	return fmt.Errorf("insert account %s: %w", a.Email, domain.ErrConflict)
}

func (s *Store) emailOwner(ctx context.Context, email string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.AccountEmails),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get email guard: %w", err)
	}
	if out.Item == nil {
		return "", domain.ErrNotFound
	}
	var g emailGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return "", fmt.Errorf("unmarshal email guard: %w", err)
	}
	return g.AccountID, nil
}

// Get returns the account with the given ID or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Accounts),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

// FindByEmail resolves the email guard and loads the owning account.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	accountID, err := s.emailOwner(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, accountID)
}

// MaxPhoneAccounts caps how many accounts ListByPhone returns.
const MaxPhoneAccounts = 20

// ListByPhone returns the accounts registered with phone, newest first.
// No match yields an empty slice.
func (s *Store) ListByPhone(ctx context.Context, phone string) ([]*domain.Account, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Accounts),
		IndexName:                 aws.String(indexPhone),
		KeyConditionExpression:    aws.String("#p = :v"),
		ExpressionAttributeNames:  map[string]string{"#p": fieldPhone},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: phone}},
	}

	var all []*domain.Account
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query accounts by phone: %w", err)
		}
		var page []domain.Account
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		for i := range page {
			all = append(all, &page[i])
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].AccountID > all[j].AccountID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > MaxPhoneAccounts {
		all = all[:MaxPhoneAccounts]
	}
	return all, nil
}

// UpdateVerificationStatus marks the channel verified. An already verified
// channel keeps its original timestamp.
func (s *Store) UpdateVerificationStatus(ctx context.Context, accountID string, ch domain.Channel, at time.Time) error {
	field := fieldEmailVerifiedAt
	if ch == domain.ChannelSMS {
		field = fieldPhoneVerifiedAt
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		field:          at.UTC(),
		fieldUpdatedAt: at.UTC(),
	}, field)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldAccountID

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Accounts),
		Key:                       strKey(fieldAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}
	return nil
}
