package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// OTPRepo provides typed DynamoDB operations for the OTP table.
// PK: phone_number. PutItem overwrites any prior item with the same key,
// which gives the single-active-code invariant without a separate delete.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// FindActive returns the current record for a phone number. A record that is
// verified or past its expiry is reported as absent: DynamoDB TTL deletion
// lags, so the expiry check cannot rely on it.
func (r *OTPRepo) FindActive(ctx context.Context, phoneNumber string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone_number", phoneNumber),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	if rec.Verified || rec.Expired(time.Now()) {
		return nil, fmt.Errorf("otp record inert: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

// IncrementAttempts bumps the attempt counter and returns the new count.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, phoneNumber string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("phone_number", phoneNumber),
		UpdateExpression: aws.String("ADD #a :one"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Attempts, nil
}

// MarkVerified flips the record to its inert state. Happens exactly once per
// record — FindActive never returns a verified record again.
func (r *OTPRepo) MarkVerified(ctx context.Context, phoneNumber string) error {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{fieldVerified: true})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("phone_number", phoneNumber),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (r *OTPRepo) Delete(ctx context.Context, phoneNumber string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone_number", phoneNumber),
	})
	return err
}
