package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                    string             `bson:"email" json:"email"`
	Username                 string             `bson:"username" json:"username"`
	PasswordHash             string             `bson:"password_hash" json:"-"`
	Role                     string             `bson:"role" json:"role"`
	IsVerified               bool               `bson:"is_verified" json:"is_verified"`
	VerificationToken        string             `bson:"verification_token,omitempty" json:"-"`
	VerificationTokenExpires time.Time          `bson:"verification_token_expires,omitempty" json:"-"`
	CreatedAt                time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt                time.Time          `bson:"updated_at" json:"updated_at"`
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
