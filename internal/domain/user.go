package domain

import "time"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Email          string    `json:"email" dynamodbav:"email"`
	FirstName      string    `json:"first_name" dynamodbav:"first_name"`
	Phone          *string   `json:"phone" dynamodbav:"phone"`
	PhoneConfirmed bool      `json:"phone_confirmed" dynamodbav:"phone_confirmed"`
	Role           string    `json:"role" dynamodbav:"role"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
