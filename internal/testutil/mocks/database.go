// Package mocks provides shared testify mocks for the repository ports.
package mocks

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// MockTransactionManager mocks ports.TransactionManager. The callback runs
// with a nil transaction unless an error is configured.
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	// Execute the function with nil transaction for testing
	return fn(ctx, nil)
}

func (m *MockTransactionManager) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// PassthroughTransactions returns a manager that always runs the callback
func PassthroughTransactions() *MockTransactionManager {
	m := new(MockTransactionManager)
	m.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	return m
}
