package endpoints

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/token"
)

// MockLicenseService implements server.LicenseService for testing using testify/mock
type MockLicenseService struct {
	mock.Mock
}

func (m *MockLicenseService) Issue(ctx context.Context, req license.IssueRequest) (*license.IssuanceResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.IssuanceResult), args.Error(1)
}

func (m *MockLicenseService) Get(ctx context.Context, id string) (*model.License, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.License), args.Error(1)
}

func (m *MockLicenseService) Renew(ctx context.Context, id string, req license.RenewRequest) (*license.RenewalResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.RenewalResult), args.Error(1)
}

func (m *MockLicenseService) Reactivate(ctx context.Context, id string, req license.RenewRequest) (*license.RenewalResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.RenewalResult), args.Error(1)
}

func (m *MockLicenseService) Revoke(ctx context.Context, id string, req license.RevokeRequest) (*license.RevocationResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.RevocationResult), args.Error(1)
}

func (m *MockLicenseService) CheckExpiration(ctx context.Context) (*license.SweepResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.SweepResult), args.Error(1)
}

func (m *MockLicenseService) Dashboard(ctx context.Context) (*license.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.Dashboard), args.Error(1)
}

// MockValidator implements server.TokenValidator for testing using testify/mock
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, tok, fingerprint string, opts ...token.ValidateOption) (*token.Result, error) {
	args := m.Called(ctx, tok, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Result), args.Error(1)
}

// MockAuditQuery implements server.AuditQuery for testing using testify/mock
type MockAuditQuery struct {
	mock.Mock
}

func (m *MockAuditQuery) Query(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEntry), args.Error(1)
}

// MockKeys implements server.PublicKeySource for testing using testify/mock
type MockKeys struct {
	mock.Mock
}

func (m *MockKeys) PublicKeys(ctx context.Context) ([]*signing.Key, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*signing.Key), args.Error(1)
}

// MockHealthStore implements store.HealthStore for testing using testify/mock
type MockHealthStore struct {
	mock.Mock
}

func (m *MockHealthStore) CheckConnectivity(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
