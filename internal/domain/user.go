package domain

import "time"

const RoleAdmin = "admin"

// AdminUser is an operator account for the admin panel.
type AdminUser struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	Enable       bool      `json:"enable" dynamodbav:"enable"`
	LastLoginAt  time.Time `json:"last_login_at" dynamodbav:"last_login_at"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}
