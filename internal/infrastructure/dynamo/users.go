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

// AdminUserRepo provides typed DynamoDB operations for the admin users table.
type AdminUserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAdminUserRepo(client *dynamodb.Client, tableName string) *AdminUserRepo {
	return &AdminUserRepo{client: client, tableName: tableName}
}

func (r *AdminUserRepo) Put(ctx context.Context, u *domain.AdminUser) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal admin user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AdminUserRepo) Get(ctx context.Context, userID string) (*domain.AdminUser, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("admin user not found: %w", domain.ErrNotFound)
	}
	var u domain.AdminUser
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AdminUserRepo) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("email-index"),
		KeyConditionExpression: aws.String("email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("admin user not found: %w", domain.ErrNotFound)
	}
	var u domain.AdminUser
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastLogin stamps a successful login.
func (r *AdminUserRepo) TouchLastLogin(ctx context.Context, userID string) error {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		fieldLastLoginAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}
