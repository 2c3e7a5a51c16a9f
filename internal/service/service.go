package service

import (
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/metrics"
	"instafeed/internal/repository"
	"instafeed/internal/storage"
)

var logger = loggo.GetLogger("instafeed.service")

type Service struct {
	Auth       AuthService
	Profile    ProfileService
	Post       PostService
	Feed       FeedService
	Graph      GraphService
	Engagement EngagementService
}

func NewService(
	rep *repository.Repository,
	cfg *config.Config,
	storage storage.Storage,
	hub events.Publisher,
	m *metrics.Metrics,
	clk clock.Clock,
) *Service {
	return &Service{
		Auth:       NewAuthService(rep.Account, rep.Profile, hub, clk, cfg),
		Profile:    NewProfileService(rep.Profile, rep.Post, storage, hub, cfg),
		Post:       NewPostService(rep.Post, rep.Profile, storage, hub, clk, cfg),
		Feed:       NewFeedService(rep.Profile, rep.Post, hub, m, clk, cfg.Feed),
		Graph:      NewGraphService(rep.Profile, hub),
		Engagement: NewEngagementService(rep.Post, rep.Comment, rep.Profile, hub, clk),
	}
}
