package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

var assessedAt = time.Date(2025, 6, 30, 12, 0, 0, 0, time.FixedZone("JST", 9*60*60))

func newTestAssessor(f *mockFetcher) *Assessor {
	a := NewAssessor(f, zap.NewNop())
	a.now = func() time.Time { return assessedAt }
	return a
}

func stubTotals(f *mockFetcher, totals map[gateway.Collection]int) {
	for coll, total := range totals {
		f.On("FetchPage", mock.Anything, "rust-lang", "rust", coll, 1, 1).Return(&gateway.Page{Items: 1, NextPage: 2, LastPage: total}, nil)
	}
}

func TestAssessor_Assess(t *testing.T) {
	commit := &domain.CommitInfo{SHA: "abc123", Author: "bors", DateUTC: time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC), Message: "Auto merge"}
	release := &domain.ReleaseInfo{TagName: "1.88.0", Name: "Rust 1.88.0", DateUTC: time.Date(2025, 6, 26, 0, 0, 0, 0, time.UTC)}

	t.Run("success", func(t *testing.T) {
		fetcher := new(mockFetcher)
		// The canonical casing from the metadata is used for every later call.
		fetcher.On("FetchRepoMeta", mock.Anything, "Rust-Lang", "RUST").Return(&domain.RepoMeta{Owner: "rust-lang", Name: "rust", DefaultBranch: "master"}, nil)
		fetcher.On("FetchLastCommit", mock.Anything, "rust-lang", "rust").Return(commit, nil)
		fetcher.On("FetchLastRelease", mock.Anything, "rust-lang", "rust").Return(release, nil)
		stubTotals(fetcher, map[gateway.Collection]int{
			gateway.CollectionCommits:          304813,
			gateway.CollectionContributors:     4500,
			gateway.CollectionOpenPullRequests: 700,
			gateway.CollectionOpenIssues:       9800,
		})

		snapshot, err := newTestAssessor(fetcher).Assess(context.Background(), "Rust-Lang", "RUST")
		require.NoError(t, err)

		expected := &domain.RepositorySnapshot{
			Owner:             "rust-lang",
			Repo:              "rust",
			DefaultBranch:     "master",
			CommitsTotal:      domain.KnownCount(304813),
			ContributorsTotal: domain.KnownCount(4500),
			OpenPullRequests:  domain.KnownCount(700),
			OpenIssues:        domain.KnownCount(9800),
			LastCommit:        commit,
			LastRelease:       release,
			FetchedAt:         assessedAt.UTC(),
		}
		assert.Equal(t, expected, snapshot)
		fetcher.AssertExpectations(t)
	})

	t.Run("repository not found", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRepoMeta", mock.Anything, "nobody", "nothing").Return(nil, &gateway.Error{Op: "get repository", Kind: gateway.KindNotFound, StatusCode: 404})

		snapshot, err := newTestAssessor(fetcher).Assess(context.Background(), "nobody", "nothing")
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, gateway.ErrNotFound)
		assert.Contains(t, err.Error(), "repository metadata")
		fetcher.AssertNotCalled(t, "FetchLastCommit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed sub-fetch discards the partial snapshot", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRepoMeta", mock.Anything, "rust-lang", "rust").Return(&domain.RepoMeta{Owner: "rust-lang", Name: "rust"}, nil)
		fetcher.On("FetchLastCommit", mock.Anything, "rust-lang", "rust").Return(commit, nil).Maybe()
		fetcher.On("FetchLastRelease", mock.Anything, "rust-lang", "rust").Return(nil, &gateway.Error{Op: "get latest release", Kind: gateway.KindTimeout}).Maybe()
		fetcher.On("FetchPage", mock.Anything, "rust-lang", "rust", mock.Anything, 1, 1).Return(&gateway.Page{Items: 1, NextPage: 2, LastPage: 10}, nil).Maybe()

		snapshot, err := newTestAssessor(fetcher).Assess(context.Background(), "rust-lang", "rust")
		assert.Nil(t, snapshot)
		assert.ErrorIs(t, err, gateway.ErrTimeout)
		assert.Contains(t, err.Error(), "last release")
	})

	t.Run("failed sub-fetch cancels the outstanding siblings", func(t *testing.T) {
		fetcher := new(mockFetcher)
		siblingErr := make(chan error, 1)
		fetcher.On("FetchRepoMeta", mock.Anything, "rust-lang", "rust").Return(&domain.RepoMeta{Owner: "rust-lang", Name: "rust"}, nil)
		fetcher.On("FetchLastCommit", mock.Anything, "rust-lang", "rust").Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
			siblingErr <- ctx.Err()
		}).Return(nil, nil)
		fetcher.On("FetchLastRelease", mock.Anything, "rust-lang", "rust").Return(nil, &gateway.Error{Op: "get latest release", Kind: gateway.KindRejected, StatusCode: 403})
		fetcher.On("FetchPage", mock.Anything, "rust-lang", "rust", mock.Anything, 1, 1).Return(&gateway.Page{Items: 1, NextPage: 2, LastPage: 10}, nil).Maybe()

		type result struct {
			snapshot *domain.RepositorySnapshot
			err      error
		}
		done := make(chan result, 1)
		go func() {
			snapshot, err := newTestAssessor(fetcher).Assess(context.Background(), "rust-lang", "rust")
			done <- result{snapshot, err}
		}()

		select {
		case res := <-done:
			assert.Nil(t, res.snapshot)
			assert.ErrorIs(t, res.err, gateway.ErrRejected)
			assert.Contains(t, res.err.Error(), "last release")
		case <-time.After(5 * time.Second):
			t.Fatal("Assess waited for a sibling fetch instead of cancelling it")
		}
		assert.ErrorIs(t, <-siblingErr, context.Canceled)
	})

	t.Run("unknown count and empty repository", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRepoMeta", mock.Anything, "octo", "empty").Return(&domain.RepoMeta{Owner: "octo", Name: "empty", DefaultBranch: "main"}, nil)
		fetcher.On("FetchLastCommit", mock.Anything, "octo", "empty").Return(nil, nil)
		fetcher.On("FetchLastRelease", mock.Anything, "octo", "empty").Return(nil, nil)
		for _, coll := range []gateway.Collection{gateway.CollectionCommits, gateway.CollectionOpenPullRequests, gateway.CollectionOpenIssues} {
			fetcher.On("FetchPage", mock.Anything, "octo", "empty", coll, 1, 1).Return(&gateway.Page{}, nil)
			fetcher.On("FetchSearchTotal", mock.Anything, "octo", "empty", coll).Return(0, nil)
		}
		fetcher.On("FetchPage", mock.Anything, "octo", "empty", gateway.CollectionContributors, 1, 1).Return(&gateway.Page{Items: 1, NextPage: 2}, nil)
		fetcher.On("FetchSearchTotal", mock.Anything, "octo", "empty", gateway.CollectionContributors).Return(0, errUnsupported)
		fetcher.On("FetchGraphQLTotal", mock.Anything, "octo", "empty", gateway.CollectionContributors).Return(0, errUnsupported)

		snapshot, err := newTestAssessor(fetcher).Assess(context.Background(), "octo", "empty")
		require.NoError(t, err)
		assert.Nil(t, snapshot.LastCommit)
		assert.Nil(t, snapshot.LastRelease)
		assert.Equal(t, domain.KnownCount(0), snapshot.CommitsTotal)
		assert.False(t, snapshot.ContributorsTotal.Known)
		fetcher.AssertExpectations(t)
	})
}
