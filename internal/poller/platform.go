package poller

import (
	"context"

	"github.com/craftsleuth/sleuth/internal/reddit"
	"github.com/craftsleuth/sleuth/internal/tracker"
)

// RedditClient is the subset of *reddit.Client the poller uses.
type RedditClient interface {
	New(ctx context.Context, community string, limit int) ([]reddit.Submission, error)
	Submission(ctx context.Context, id string) (reddit.Submission, error)
}

// RedditPlatform adapts a Reddit client to Platform.
type RedditPlatform struct {
	client RedditClient
}

// NewRedditPlatform wraps client.
func NewRedditPlatform(client RedditClient) *RedditPlatform {
	return &RedditPlatform{client: client}
}

func (p *RedditPlatform) NewPosts(ctx context.Context, community string, limit int) ([]tracker.Post, error) {
	subs, err := p.client.New(ctx, community, limit)
	if err != nil {
		return nil, err
	}
	posts := make([]tracker.Post, len(subs))
	for i, s := range subs {
		posts[i] = s
	}
	return posts, nil
}

func (p *RedditPlatform) Post(ctx context.Context, id string) (tracker.Post, error) {
	s, err := p.client.Submission(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}
