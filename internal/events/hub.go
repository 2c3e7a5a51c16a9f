// Package events carries per-user notifications and feed state changes
// from the services to whoever is listening, usually a websocket client.
package events

import (
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
)

var logger = loggo.GetLogger("instafeed.events")

const (
	// Topics are "<kind>.<userID>" so that a subscriber can match one user.
	notificationTopic = "notification"
	feedStateTopic    = "feedstate"
)

// FeedState is a step of feed composition.
type FeedState string

const (
	FeedIdle         FeedState = "idle"
	FeedLoading      FeedState = "loading"
	FeedPersonalized FeedState = "personalized"
	FeedGeneral      FeedState = "general"
	FeedSuccess      FeedState = "success"
	FeedError        FeedState = "error"
)

// Event is what subscribers receive.
type Event struct {
	Kind    string    `json:"kind"`
	UserID  string    `json:"userId"`
	Message string    `json:"message,omitempty"`
	State   FeedState `json:"state,omitempty"`
	Error   bool      `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is the side of the hub the services use.
type Publisher interface {
	Notify(userID, message string)
	NotifyError(userID string, err error)
	FeedStateChanged(userID string, state FeedState)
}

type Hub struct {
	hub *pubsub.SimpleHub
	now func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
			Logger: logger,
		}),
		now: time.Now,
	}
}

func topic(kind, userID string) string {
	return kind + "." + userID
}

func (h *Hub) publish(event Event) {
	if event.UserID == "" {
		return
	}
	event.At = h.now()
	h.hub.Publish(topic(event.Kind, event.UserID), event)
}

// Notify sends a user-visible message.
func (h *Hub) Notify(userID, message string) {
	h.publish(Event{Kind: notificationTopic, UserID: userID, Message: message})
}

func (h *Hub) NotifyError(userID string, err error) {
	if err == nil {
		return
	}
	h.publish(Event{Kind: notificationTopic, UserID: userID, Message: err.Error(), Error: true})
}

func (h *Hub) FeedStateChanged(userID string, state FeedState) {
	h.publish(Event{Kind: feedStateTopic, UserID: userID, State: state})
}

// Subscribe calls handler for every event addressed to userID until the
// returned func is called. Handlers run on the hub's goroutines.
func (h *Hub) Subscribe(userID string, handler func(Event)) func() {
	topics := set.NewStrings(topic(notificationTopic, userID), topic(feedStateTopic, userID))
	return h.hub.SubscribeMatch(
		topics.Contains,
		func(t string, data interface{}) {
			event, ok := data.(Event)
			if !ok {
				logger.Warningf("unexpected payload %T on %q", data, t)
				return
			}
			handler(event)
		},
	)
}
