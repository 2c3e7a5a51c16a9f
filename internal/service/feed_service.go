package service

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/metrics"
	"instafeed/internal/models"
	"instafeed/internal/repository"
)

type FeedService interface {
	// ComposeFeed builds the feed of userID: posts of followed users, or
	// recent posts of everyone when that is empty.
	ComposeFeed(ctx context.Context, userID string) (*models.Feed, error)
}

type feedService struct {
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
	hub         events.Publisher
	metrics     *metrics.Metrics
	clock       clock.Clock
	cfg         config.Feed
}

func NewFeedService(
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
	hub events.Publisher,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg config.Feed,
) FeedService {
	if cfg.MembershipChunk <= 0 {
		cfg.MembershipChunk = 30
	}
	if cfg.QueryConcurrency <= 0 {
		cfg.QueryConcurrency = 1
	}
	return &feedService{
		profileRepo: profileRepo,
		postRepo:    postRepo,
		hub:         hub,
		metrics:     m,
		clock:       clk,
		cfg:         cfg,
	}
}

func (f *feedService) ComposeFeed(ctx context.Context, userID string) (*models.Feed, error) {
	if isBlank(userID) {
		id, err := sessionUser(ctx)
		if err != nil {
			return nil, err
		}
		userID = id
	}

	start := f.clock.Now()
	f.hub.FeedStateChanged(userID, events.FeedLoading)

	feed, err := f.compose(ctx, userID)
	if err != nil {
		f.metrics.ObserveFeed("error", f.clock.Now().Sub(start))
		f.hub.FeedStateChanged(userID, events.FeedError)
		return nil, err
	}

	f.metrics.ObserveFeed(string(feed.Source), f.clock.Now().Sub(start))
	f.hub.FeedStateChanged(userID, events.FeedSuccess)
	logger.Debugf("%s feed for %s has %d posts", feed.Source, userID, len(feed.Posts))
	return feed, nil
}

func (f *feedService) compose(ctx context.Context, userID string) (*models.Feed, error) {
	profile, err := f.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Annotate(err, "loading profile for feed")
	}

	following := followedIDs(profile, userID)

	var posts []*models.Post
	if len(following) > 0 {
		f.hub.FeedStateChanged(userID, events.FeedPersonalized)
		posts, err = f.postsByAuthors(ctx, following)
		if err != nil {
			return nil, err
		}
	}

	source := models.FeedPersonalized
	if len(posts) == 0 {
		f.hub.FeedStateChanged(userID, events.FeedGeneral)
		source = models.FeedGeneral
		since := f.clock.Now().Add(-f.cfg.GeneralWindow).UnixMilli()
		posts, err = f.postRepo.GetCreatedAfter(ctx, since)
		if err != nil {
			return nil, errors.Annotate(err, "loading general feed")
		}
	}

	sortNewestFirst(posts)
	return &models.Feed{
		UserID:     userID,
		Source:     source,
		Posts:      posts,
		ComposedAt: f.clock.Now(),
	}, nil
}

// postsByAuthors splits authorIDs into membership-sized chunks, runs the
// chunk queries concurrently and concatenates results in chunk order.
func (f *feedService) postsByAuthors(ctx context.Context, authorIDs []string) ([]*models.Post, error) {
	chunks := chunkIDs(authorIDs, f.cfg.MembershipChunk)
	results := make([][]*models.Post, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.QueryConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			posts, err := f.postRepo.GetByAuthorIDs(gctx, chunk)
			if err != nil {
				return errors.Annotatef(err, "loading posts of chunk %d", i)
			}
			results[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var posts []*models.Post
	for _, r := range results {
		posts = append(posts, r...)
	}
	return posts, nil
}

// followedIDs is the profile's following list without duplicates or the
// user itself, in stored order.
func followedIDs(profile *models.UserProfile, userID string) []string {
	seen := set.NewStrings(userID)
	ids := make([]string, 0, len(profile.FollowingIDs))
	for _, id := range profile.FollowingIDs {
		if id == "" || seen.Contains(id) {
			continue
		}
		seen.Add(id)
		ids = append(ids, id)
	}
	return ids
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
