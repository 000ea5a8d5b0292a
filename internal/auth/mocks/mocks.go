// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package mocks provides testify mocks of the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/agora-forum/agora/internal/auth"
)

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock whose expectations are asserted on cleanup.
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func userResult(args mock.Arguments) (*auth.User, error) {
	var u *auth.User
	if v := args.Get(0); v != nil {
		u = v.(*auth.User)
	}
	return u, args.Error(1)
}

// Create mocks auth.UserRepository.Create.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

// GetByID mocks auth.UserRepository.GetByID.
func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return userResult(m.Called(ctx, id))
}

// GetByUsername mocks auth.UserRepository.GetByUsername.
func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return userResult(m.Called(ctx, username))
}

// GetByEmail mocks auth.UserRepository.GetByEmail.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return userResult(m.Called(ctx, email))
}

// FindByUsernameOrEmail mocks auth.UserRepository.FindByUsernameOrEmail.
func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*auth.User, error) {
	return userResult(m.Called(ctx, username, email))
}

// UpdatePassword mocks auth.UserRepository.UpdatePassword.
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// MockResetTokenRepository is a mock of auth.ResetTokenRepository.
type MockResetTokenRepository struct {
	mock.Mock
}

// NewMockResetTokenRepository creates a mock whose expectations are asserted on cleanup.
func NewMockResetTokenRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockResetTokenRepository {
	m := &MockResetTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create mocks auth.ResetTokenRepository.Create.
func (m *MockResetTokenRepository) Create(ctx context.Context, token *auth.ResetToken, ttl time.Duration) error {
	return m.Called(ctx, token, ttl).Error(0)
}

// GetByUser mocks auth.ResetTokenRepository.GetByUser.
func (m *MockResetTokenRepository) GetByUser(ctx context.Context, userID int64) (*auth.ResetToken, error) {
	args := m.Called(ctx, userID)
	var tok *auth.ResetToken
	if v := args.Get(0); v != nil {
		tok = v.(*auth.ResetToken)
	}
	return tok, args.Error(1)
}

// Consume mocks auth.ResetTokenRepository.Consume.
func (m *MockResetTokenRepository) Consume(ctx context.Context, userID int64, tokenHash string) error {
	return m.Called(ctx, userID, tokenHash).Error(0)
}

// DeleteByUser mocks auth.ResetTokenRepository.DeleteByUser.
func (m *MockResetTokenRepository) DeleteByUser(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

// MockSessionStore is a mock of auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock whose expectations are asserted on cleanup.
func NewMockSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Get mocks auth.SessionStore.Get.
func (m *MockSessionStore) Get(ctx context.Context, tokenHash string) (*auth.SessionRecord, error) {
	args := m.Called(ctx, tokenHash)
	var rec *auth.SessionRecord
	if v := args.Get(0); v != nil {
		rec = v.(*auth.SessionRecord)
	}
	return rec, args.Error(1)
}

// Save mocks auth.SessionStore.Save.
func (m *MockSessionStore) Save(ctx context.Context, tokenHash string, record *auth.SessionRecord, ttl time.Duration) error {
	return m.Called(ctx, tokenHash, record, ttl).Error(0)
}

// Delete mocks auth.SessionStore.Delete.
func (m *MockSessionStore) Delete(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash mocks auth.PasswordHasher.Hash.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify mocks auth.PasswordHasher.Verify.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade mocks auth.PasswordHasher.NeedsUpgrade.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockEmailSender is a mock of auth.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

// NewMockEmailSender creates a mock whose expectations are asserted on cleanup.
func NewMockEmailSender(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEmailSender {
	m := &MockEmailSender{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send mocks auth.EmailSender.Send.
func (m *MockEmailSender) Send(ctx context.Context, to, htmlBody string) error {
	return m.Called(ctx, to, htmlBody).Error(0)
}

var (
	_ auth.UserRepository       = (*MockUserRepository)(nil)
	_ auth.ResetTokenRepository = (*MockResetTokenRepository)(nil)
	_ auth.SessionStore         = (*MockSessionStore)(nil)
	_ auth.PasswordHasher       = (*MockPasswordHasher)(nil)
	_ auth.EmailSender          = (*MockEmailSender)(nil)
)
