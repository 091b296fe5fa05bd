// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-activity/internal/domain"
)

const (
	DefaultAPIURL         = "https://api.github.com/"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryInterval  = 500 * time.Millisecond
	DefaultRateLimitSleep = time.Minute
)

// Collection names a paginated or countable set of repository items.
type Collection string

const (
	CollectionCommits          Collection = "commits"
	CollectionContributors     Collection = "contributors"
	CollectionOpenPullRequests Collection = "open_pull_requests"
	CollectionOpenIssues       Collection = "open_issues"
)

// Page is one page of a paginated listing plus the pagination metadata from its Link header.
// NextPage and LastPage are zero when the header does not name them.
type Page struct {
	Items    int
	NextPage int
	LastPage int
}

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchRepoMeta(ctx context.Context, owner, repo string) (*domain.RepoMeta, error)
	// FetchLastCommit returns nil when the repository has no commits.
	FetchLastCommit(ctx context.Context, owner, repo string) (*domain.CommitInfo, error)
	// FetchLastRelease returns nil when the repository has no published release.
	FetchLastRelease(ctx context.Context, owner, repo string) (*domain.ReleaseInfo, error)
	FetchPage(ctx context.Context, owner, repo string, coll Collection, page, perPage int) (*Page, error)
	FetchSearchTotal(ctx context.Context, owner, repo string, coll Collection) (int, error)
	FetchGraphQLTotal(ctx context.Context, owner, repo string, coll Collection) (int, error)
}

// Options configures the gateway. The zero value talks anonymously to github.com.
type Options struct {
	Token string
	// APIURL is the REST base URL; set it for GitHub Enterprise.
	APIURL string
	// GraphQLURL defaults to the GraphQL endpoint next to APIURL.
	GraphQLURL     string
	Timeout        time.Duration
	MaxAttempts    int
	RetryInterval  time.Duration
	RateLimitSleep time.Duration
}

func (o Options) withDefaults() Options {
	if o.APIURL == "" {
		o.APIURL = DefaultAPIURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.RateLimitSleep <= 0 {
		o.RateLimitSleep = DefaultRateLimitSleep
	}
	return o
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.Logger
	timeout       time.Duration
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// Requests pass through, outermost first: bearer auth (when a token is set),
// the secondary rate limit waiter, then retries.
func NewGitHubGateway(opts Options, logger *zap.Logger) (*GitHubGateway, error) {
	opts = opts.withDefaults()
	retrying := newRetryTransport(http.DefaultTransport, opts.MaxAttempts, opts.RetryInterval, logger)
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(retrying, github_ratelimit.WithSingleSleepLimit(opts.RateLimitSleep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = rateLimitWaiter
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		}
	}
	httpClient := &http.Client{Transport: transport}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.APIURL != DefaultAPIURL {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", opts.APIURL, err)
		}
		graphqlURL := opts.GraphQLURL
		if graphqlURL == "" {
			graphqlURL = enterpriseGraphQLURL(opts.APIURL)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	logger.Debug("GitHub gateway ready",
		zap.String("api_url", opts.APIURL),
		zap.Bool("authenticated", opts.Token != ""),
		zap.Duration("timeout", opts.Timeout),
		zap.Int("max_attempts", opts.MaxAttempts))

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
		timeout:       opts.Timeout,
	}, nil
}

// enterpriseGraphQLURL turns https://host/api/v3/ into https://host/api/graphql.
func enterpriseGraphQLURL(apiURL string) string {
	base := strings.TrimSuffix(apiURL, "/")
	base = strings.TrimSuffix(base, "/v3")
	return base + "/graphql"
}

func (g *GitHubGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GitHubGateway) FetchRepoMeta(ctx context.Context, owner, repo string) (*domain.RepoMeta, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	g.logger.Debug("Fetching repository metadata", zap.String("owner", owner), zap.String("repo", repo))
	r, _, err := g.restClient.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, wrapError("get repository", err)
	}
	meta := &domain.RepoMeta{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		DefaultBranch: r.GetDefaultBranch(),
		Archived:      r.GetArchived(),
	}
	if meta.Owner == "" {
		meta.Owner = owner
	}
	if meta.Name == "" {
		meta.Name = repo
	}
	return meta, nil
}

func (g *GitHubGateway) FetchLastCommit(ctx context.Context, owner, repo string) (*domain.CommitInfo, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	g.logger.Debug("Fetching last commit", zap.String("owner", owner), zap.String("repo", repo))
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}}
	commits, _, err := g.restClient.Repositories.ListCommits(ctx, owner, repo, opts)
	if responseStatus(err) == http.StatusConflict {
		// GitHub answers 409 for a repository without any commits.
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("list commits", err)
	}
	if len(commits) == 0 {
		return nil, nil
	}

	c := commits[0]
	author := c.GetCommit().GetAuthor()
	date := author.GetDate().Time
	if date.IsZero() {
		date = c.GetCommit().GetCommitter().GetDate().Time
	}
	return &domain.CommitInfo{
		SHA:     c.GetSHA(),
		Author:  author.GetName(),
		DateUTC: date.UTC(),
		Message: firstLine(c.GetCommit().GetMessage()),
	}, nil
}

func (g *GitHubGateway) FetchLastRelease(ctx context.Context, owner, repo string) (*domain.ReleaseInfo, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	g.logger.Debug("Fetching latest release", zap.String("owner", owner), zap.String("repo", repo))
	rel, _, err := g.restClient.Repositories.GetLatestRelease(ctx, owner, repo)
	if responseStatus(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("get latest release", err)
	}

	date := rel.GetPublishedAt().Time
	if date.IsZero() {
		date = rel.GetCreatedAt().Time
	}
	return &domain.ReleaseInfo{
		TagName:      rel.GetTagName(),
		Name:         rel.GetName(),
		DateUTC:      date.UTC(),
		IsPrerelease: rel.GetPrerelease(),
	}, nil
}

// FetchPage lists one page of a collection. Open issues have no REST listing of
// their own because the issues endpoint also returns pull requests.
func (g *GitHubGateway) FetchPage(ctx context.Context, owner, repo string, coll Collection, page, perPage int) (*Page, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	g.logger.Debug("Fetching page",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("collection", string(coll)),
		zap.Int("page", page),
		zap.Int("per_page", perPage))

	listOpts := github.ListOptions{Page: page, PerPage: perPage}
	var (
		items int
		resp  *github.Response
		err   error
	)
	switch coll {
	case CollectionCommits:
		var commits []*github.RepositoryCommit
		commits, resp, err = g.restClient.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{ListOptions: listOpts})
		if responseStatus(err) == http.StatusConflict {
			return &Page{}, nil
		}
		items = len(commits)
	case CollectionContributors:
		var contributors []*github.Contributor
		contributors, resp, err = g.restClient.Repositories.ListContributors(ctx, owner, repo, &github.ListContributorsOptions{Anon: "1", ListOptions: listOpts})
		items = len(contributors)
	case CollectionOpenPullRequests:
		var pulls []*github.PullRequest
		pulls, resp, err = g.restClient.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{State: "open", ListOptions: listOpts})
		items = len(pulls)
	default:
		return nil, fmt.Errorf("list %s: %w", coll, ErrUnsupported)
	}
	if err != nil {
		return nil, wrapError("list "+string(coll), err)
	}
	return &Page{Items: items, NextPage: resp.NextPage, LastPage: resp.LastPage}, nil
}

// FetchSearchTotal asks the search API for the size of a collection.
func (g *GitHubGateway) FetchSearchTotal(ctx context.Context, owner, repo string, coll Collection) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	scope := fmt.Sprintf("repo:%s/%s", owner, repo)
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}}
	g.logger.Debug("Searching for total",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("collection", string(coll)))

	switch coll {
	case CollectionCommits:
		result, _, err := g.restClient.Search.Commits(ctx, scope, opts)
		if err != nil {
			return 0, wrapError("search commits", err)
		}
		return result.GetTotal(), nil
	case CollectionOpenPullRequests, CollectionOpenIssues:
		qualifier := "is:pr"
		if coll == CollectionOpenIssues {
			qualifier = "is:issue"
		}
		result, _, err := g.restClient.Search.Issues(ctx, scope+" "+qualifier+" is:open", opts)
		if err != nil {
			return 0, wrapError("search "+string(coll), err)
		}
		return result.GetTotal(), nil
	default:
		return 0, fmt.Errorf("search %s: %w", coll, ErrUnsupported)
	}
}

// commitHistoryQuery counts the commits reachable from the default branch.
type commitHistoryQuery struct {
	Repository struct {
		DefaultBranchRef struct {
			Target struct {
				Commit struct {
					History struct {
						TotalCount int
					}
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type openPullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			TotalCount int
		} `graphql:"pullRequests(states: OPEN)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type openIssuesQuery struct {
	Repository struct {
		Issues struct {
			TotalCount int
		} `graphql:"issues(states: OPEN)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchGraphQLTotal reads a collection's totalCount from the GraphQL API.
// GitHub requires authentication for GraphQL, so anonymous calls are rejected.
func (g *GitHubGateway) FetchGraphQLTotal(ctx context.Context, owner, repo string, coll Collection) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}
	g.logger.Debug("Querying GraphQL total",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("collection", string(coll)))

	op := "graphql " + string(coll)
	switch coll {
	case CollectionCommits:
		var q commitHistoryQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return 0, wrapGraphQLError(op, err)
		}
		return q.Repository.DefaultBranchRef.Target.Commit.History.TotalCount, nil
	case CollectionOpenPullRequests:
		var q openPullRequestsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return 0, wrapGraphQLError(op, err)
		}
		return q.Repository.PullRequests.TotalCount, nil
	case CollectionOpenIssues:
		var q openIssuesQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return 0, wrapGraphQLError(op, err)
		}
		return q.Repository.Issues.TotalCount, nil
	default:
		return 0, fmt.Errorf("%s: %w", op, ErrUnsupported)
	}
}

// IsCountSourceUnavailable reports whether err means a count source cannot
// answer, as opposed to a failure that must abort the assessment.
func IsCountSourceUnavailable(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, ErrRejected)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimRight(s[:i], "\r")
	}
	return s
}
