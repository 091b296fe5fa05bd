package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchRepoMeta(ctx context.Context, owner, repo string) (*domain.RepoMeta, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepoMeta), args.Error(1)
}

func (m *mockFetcher) FetchLastCommit(ctx context.Context, owner, repo string) (*domain.CommitInfo, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommitInfo), args.Error(1)
}

func (m *mockFetcher) FetchLastRelease(ctx context.Context, owner, repo string) (*domain.ReleaseInfo, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReleaseInfo), args.Error(1)
}

func (m *mockFetcher) FetchPage(ctx context.Context, owner, repo string, coll gateway.Collection, page, perPage int) (*gateway.Page, error) {
	args := m.Called(ctx, owner, repo, coll, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Page), args.Error(1)
}

func (m *mockFetcher) FetchSearchTotal(ctx context.Context, owner, repo string, coll gateway.Collection) (int, error) {
	args := m.Called(ctx, owner, repo, coll)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) FetchGraphQLTotal(ctx context.Context, owner, repo string, coll gateway.Collection) (int, error) {
	args := m.Called(ctx, owner, repo, coll)
	return args.Int(0), args.Error(1)
}
