// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

const defaultWorkers = 4

// Assessor is the use case for building a RepositorySnapshot.
// It orchestrates the fetching and combining of data.
type Assessor struct {
	fetcher   gateway.Fetcher
	estimator *CountEstimator
	logger    *zap.Logger
	now       func() time.Time
	workers   int
}

// NewAssessor creates a new Assessor instance.
func NewAssessor(fetcher gateway.Fetcher, logger *zap.Logger) *Assessor {
	return &Assessor{
		fetcher:   fetcher,
		estimator: NewCountEstimator(fetcher, logger),
		logger:    logger,
		now:       time.Now,
		workers:   defaultWorkers,
	}
}

// Assess fetches every activity signal of a repository and assembles a snapshot.
// Repository metadata is fetched first so that a missing repository fails fast
// and a 404 on the release endpoint can only mean "no release". The remaining
// fetches are independent and run concurrently; the first terminal failure
// cancels the rest and no partial snapshot is returned.
func (a *Assessor) Assess(ctx context.Context, owner, repo string) (*domain.RepositorySnapshot, error) {
	a.logger.Info("Usecase: Starting assessment...", zap.String("owner", owner), zap.String("repo", repo))

	meta, err := a.fetcher.FetchRepoMeta(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("repository metadata: %w", err)
	}
	owner, repo = meta.Owner, meta.Name

	var (
		lastCommit   *domain.CommitInfo
		lastRelease  *domain.ReleaseInfo
		commits      domain.Count
		contributors domain.Count
		pulls        domain.Count
		issues       domain.Count
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.workers)

	eg.Go(func() error {
		var err error
		lastCommit, err = a.fetcher.FetchLastCommit(egCtx, owner, repo)
		return subFetchError("last commit", err)
	})

	eg.Go(func() error {
		var err error
		lastRelease, err = a.fetcher.FetchLastRelease(egCtx, owner, repo)
		return subFetchError("last release", err)
	})

	totals := []struct {
		coll gateway.Collection
		dst  *domain.Count
	}{
		{gateway.CollectionCommits, &commits},
		{gateway.CollectionContributors, &contributors},
		{gateway.CollectionOpenPullRequests, &pulls},
		{gateway.CollectionOpenIssues, &issues},
	}
	for _, total := range totals {
		eg.Go(func() error {
			count, err := a.estimator.Estimate(egCtx, owner, repo, total.coll)
			*total.dst = count
			return subFetchError(string(total.coll)+" count", err)
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Info("Usecase: All data fetched successfully.")

	return &domain.RepositorySnapshot{
		Owner:             owner,
		Repo:              repo,
		DefaultBranch:     meta.DefaultBranch,
		Archived:          meta.Archived,
		CommitsTotal:      commits,
		ContributorsTotal: contributors,
		OpenPullRequests:  pulls,
		OpenIssues:        issues,
		LastCommit:        lastCommit,
		LastRelease:       lastRelease,
		FetchedAt:         a.now().UTC(),
	}, nil
}

func subFetchError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
