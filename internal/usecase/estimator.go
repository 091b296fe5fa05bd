package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
)

// CountEstimator derives collection totals with as few requests as possible.
type CountEstimator struct {
	fetcher  gateway.Fetcher
	logger   *zap.Logger
	pageSize int
}

// NewCountEstimator creates a CountEstimator that probes with single-item pages,
// so the last page number is the total and no second request is needed.
func NewCountEstimator(fetcher gateway.Fetcher, logger *zap.Logger) *CountEstimator {
	return &CountEstimator{
		fetcher:  fetcher,
		logger:   logger,
		pageSize: 1,
	}
}

type countSource struct {
	name  string
	fetch func(ctx context.Context, owner, repo string, coll gateway.Collection) (int, error)
}

// Estimate returns the size of a collection. Sources are tried in order:
//  1. pagination metadata of the first page,
//  2. the search API,
//  3. the GraphQL totalCount,
//  4. the item count of the first page, when it is known to be the only page.
//
// When none of them can answer the count is unknown. Failures other than an
// unavailable source abort the estimate.
func (e *CountEstimator) Estimate(ctx context.Context, owner, repo string, coll gateway.Collection) (domain.Count, error) {
	log := e.logger.With(zap.String("owner", owner), zap.String("repo", repo), zap.String("collection", string(coll)))

	first, err := e.fetcher.FetchPage(ctx, owner, repo, coll, 1, e.pageSize)
	switch {
	case err == nil && first.LastPage > 0:
		return e.fromLastPage(ctx, owner, repo, coll, first.LastPage)
	case err == nil:
		log.Debug("No pagination metadata", zap.Int("items", first.Items), zap.Int("next_page", first.NextPage))
	case gateway.IsCountSourceUnavailable(err):
		log.Debug("Pagination unavailable", zap.Error(err))
		first = nil
	default:
		return domain.Count{}, err
	}

	sources := []countSource{
		{name: "search", fetch: e.fetcher.FetchSearchTotal},
		{name: "graphql", fetch: e.fetcher.FetchGraphQLTotal},
	}
	for _, src := range sources {
		total, err := src.fetch(ctx, owner, repo, coll)
		if err == nil {
			log.Debug("Count resolved", zap.String("source", src.name), zap.Int("total", total))
			return domain.KnownCount(total), nil
		}
		if !gateway.IsCountSourceUnavailable(err) {
			return domain.Count{}, err
		}
		log.Debug("Count source unavailable", zap.String("source", src.name), zap.Error(err))
	}

	if first != nil && first.NextPage == 0 {
		return domain.KnownCount(first.Items), nil
	}
	log.Info("Count unavailable")
	return domain.UnknownCount(), nil
}

// fromLastPage computes (lastPage-1)*pageSize + itemsOnLastPage.
func (e *CountEstimator) fromLastPage(ctx context.Context, owner, repo string, coll gateway.Collection, lastPage int) (domain.Count, error) {
	if e.pageSize == 1 {
		return domain.KnownCount(lastPage), nil
	}
	last, err := e.fetcher.FetchPage(ctx, owner, repo, coll, lastPage, e.pageSize)
	if err != nil {
		return domain.Count{}, err
	}
	return domain.KnownCount((lastPage-1)*e.pageSize + last.Items), nil
}
