package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Name struct {
	First string `json:"first" dynamodbav:"first" validate:"required,min=2"`
	Last  string `json:"last" dynamodbav:"last" validate:"required,min=2"`
}

// User is the principal created from a set of verified assets.
// PK: user_id. GSI: email-index.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Name         Name      `json:"name" dynamodbav:"name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	ClaimIDs []string `json:"claimIds" validate:"required,min=1,unique,dive,required"`
	Name     Name     `json:"name"`
	Password string   `json:"password" validate:"required,strongpassword"`
}

type LoginRequest struct {
	ClaimIDs []string `json:"claimIds" validate:"required,min=1,unique,dive,required"`
	Password string   `json:"password" validate:"required"`
}

type RegisterResult struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// PrincipalRef identifies the logged-in user without exposing the profile.
type PrincipalRef struct {
	ID string `json:"id"`
}

type LoginResult struct {
	User         PrincipalRef `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}
