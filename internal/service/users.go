package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/store"
)

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.User{}, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.repo.CreateUser(ctx, domain.User{
		Name:      req.Name,
		Password:  hash,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_create", "user", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.User, error) {
	req.Name = trimmed(req.Name)
	if err := s.check(req); err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		updated.Password = hash
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return domain.User{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "user_update", "user", saved.ID, fmt.Sprintf("name=%s,password_changed=%t", saved.Name, req.Password != nil))
	return *saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.tickets.Drop(id)
	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "user_delete", "user", id, "")
	return nil
}

// VerifyUser returns the user matching name and password, or nil when the
// pair does not match. Legacy plain-text passwords are accepted once and
// upgraded to a bcrypt hash.
func (s *Service) VerifyUser(ctx context.Context, name string, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, nil
	}

	user, err := s.repo.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if isPasswordHash(user.Password) {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return nil, nil
		}
		return user, nil
	}

	if user.Password != password {
		return nil, nil
	}
	if hash, err := hashPassword(password); err == nil {
		user.Password = hash
		if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
			s.logger.WithFields(logrus.Fields{"module": "users", "user_id": user.ID}).Warnf("failed to upgrade legacy password: %v", err)
		}
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
