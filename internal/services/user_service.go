package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/store"
)

// VerificationMailer delivers the account verification email; best-effort.
type VerificationMailer interface {
	SendVerificationEmail(user *models.User) error
}

type UserService struct {
	users  store.UserStore
	mailer VerificationMailer
}

func NewUserService(stores *store.Stores, mailer VerificationMailer) *UserService {
	return &UserService{
		users:  stores.Users,
		mailer: mailer,
	}
}

// Register creates an unverified user and dispatches the verification email
// out of band.
func (s *UserService) Register(ctx context.Context, email, password, username string) (*models.User, error) {
	_, err := s.users.ByEmail(ctx, email)
	if err == nil {
		return nil, apperr.InvalidState("The email is already in use")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Email:                    email,
		Username:                 username,
		Role:                     models.RoleUser,
		VerificationToken:        uuid.NewString(),
		VerificationTokenExpires: now.Add(24 * time.Hour),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		go func(u models.User) {
			if err := s.mailer.SendVerificationEmail(&u); err != nil {
				log.Printf("user %s: verification email failed: %v", u.ID.Hex(), err)
			}
		}(*user)
	}

	return user, nil
}

// Login authenticates by email. The same message covers a missing user and a
// wrong password so the endpoint does not leak which one failed.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Forbidden("Invalid email or password")
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, apperr.Forbidden("Invalid email or password")
	}
	return user, nil
}

func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	user, err := s.users.ByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.InvalidState("Invalid or expired verification token")
		}
		return nil, err
	}
	if time.Now().After(user.VerificationTokenExpires) {
		return nil, apperr.InvalidState("Invalid or expired verification token")
	}
	if user.IsVerified {
		return nil, apperr.InvalidState("Email already verified")
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationTokenExpires = time.Time{}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ResetPassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return apperr.InvalidState("The entered password and the current password do not match")
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return s.users.Update(ctx, user)
}

func (s *UserService) ByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("The user not exists")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, userID string) error {
	if _, err := s.users.ByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("The user not exists")
		}
		return err
	}
	return s.users.Delete(ctx, userID)
}

// ListAll returns every user sorted by username asc, for the admin surface.
func (s *UserService) ListAll(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}
