package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/procureops/sourcing-cli/internal/marketplace"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// --- Generation Service Mock ---

type mockGenService struct {
	mock.Mock
}

func (m *mockGenService) Generate(ctx context.Context, req textgen.Request) (*textgen.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*textgen.Response), args.Error(1)
}

// --- Marketplace Mocks ---

type mockBrowser struct {
	mock.Mock
}

func (m *mockBrowser) AcquirePage(ctx context.Context) (marketplace.Page, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(marketplace.Page), args.Error(1)
}

type mockPage struct {
	mock.Mock
}

func (m *mockPage) Search(ctx context.Context, query string) ([]marketplace.Listing, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Listing), args.Error(1)
}

func (m *mockPage) FetchDetails(ctx context.Context, link, region string) (*marketplace.Details, error) {
	args := m.Called(ctx, link, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Details), args.Error(1)
}

func (m *mockPage) Close() error {
	args := m.Called()
	return args.Error(0)
}
