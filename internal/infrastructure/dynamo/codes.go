package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/go-api-accounts/internal/domain"
)

// codeItem adds the TTL attribute DynamoDB uses to expire stale codes.
type codeItem struct {
	domain.OneTimeCode
	ExpiresAtTTL int64 `dynamodbav:"expires_at_ttl"`
}

// InsertCode overwrites the (account, channel) item, which supersedes any
// earlier code for that pair.
func (s *Store) InsertCode(ctx context.Context, c *domain.OneTimeCode) error {
	item, err := attributevalue.MarshalMap(codeItem{OneTimeCode: *c, ExpiresAtTTL: c.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.OneTimeCodes),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put code: %w", err)
	}
	return nil
}

// LatestCode returns the live item for (account, channel) or domain.ErrNotFound.
func (s *Store) LatestCode(ctx context.Context, accountID string, ch domain.Channel) (*domain.OneTimeCode, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.OneTimeCodes),
		Key:            compositeKey(fieldAccountID, accountID, fieldChannel, string(ch)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var item codeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	return &item.OneTimeCode, nil
}

// ConsumeCode marks the code consumed if it is still the live, unconsumed
// item for its pair. Otherwise it returns domain.ErrNotFound.
func (s *Store) ConsumeCode(ctx context.Context, c *domain.OneTimeCode, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldConsumedAt: at.UTC()})
	if err != nil {
		return err
	}
	ue.Names["#cid"] = fieldCodeID
	ue.Names["#c"] = fieldConsumedAt
	ue.Values[":cid"] = &types.AttributeValueMemberS{Value: c.CodeID}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.OneTimeCodes),
		Key:                       compositeKey(fieldAccountID, c.AccountID, fieldChannel, string(c.Channel)),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cid = :cid AND attribute_not_exists(#c)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}
