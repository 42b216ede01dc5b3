package entity

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

type User struct {
	Base
	Username      string   `db:"username"`
	Email         string   `db:"email"`
	PasswordHash  string   `db:"password"`
	Phone         *string  `db:"phone"`
	Role          UserRole `db:"role"`
	EmailVerified bool     `db:"email_verified"`
	MFAEnabled    bool     `db:"mfa_enabled"`
	IsActive      bool     `db:"is_active"`
}

// NewUser builds an active customer whose email and MFA are still off
func NewUser(username, email, passwordHash string, phone *string, now time.Time) *User {
	return &User{
		Base:         newBase(now),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Phone:        phone,
		Role:         RoleCustomer,
		IsActive:     true,
	}
}
