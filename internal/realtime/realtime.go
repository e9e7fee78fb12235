// Package realtime publishes job and station events over Pusher channels.
package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/pusher/pusher-http-go/v5"
)

// Station events
const (
	EventViewerSignal  = "viewer-signal"
	EventHostSignal    = "host-signal"
	EventChatMessage   = "chat-message"
	EventReaction      = "reaction"
	EventStationUpdate = "station-update"
)

const (
	userChannelPrefix    = "private-user-"
	stationChannelPrefix = "presence-station-"
)

// Config holds Pusher credentials
type Config struct {
	AppID   string
	Key     string
	Secret  string
	Cluster string
}

type pusherAPI interface {
	Trigger(channel string, eventName string, data interface{}) error
	AuthorizePrivateChannel(params []byte) ([]byte, error)
	AuthorizePresenceChannel(params []byte, member pusher.MemberData) ([]byte, error)
}

// Broadcaster triggers events and authorizes channel subscriptions
type Broadcaster struct {
	client pusherAPI
	logger *slog.Logger
}

// New returns a Pusher-backed Broadcaster, or a logging no-op one when AppID is empty
func New(cfg Config, logger *slog.Logger) *Broadcaster {
	if cfg.AppID == "" {
		logger.Warn("Realtime relay not configured, events will only be logged")
		return &Broadcaster{client: nopClient{logger: logger}, logger: logger}
	}

	return &Broadcaster{
		client: &pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
			Secure:  true,
		},
		logger: logger,
	}
}

// UserChannel is the private channel of a single user
func UserChannel(userID string) string { return userChannelPrefix + userID }

// StationChannel is the presence channel of a live station
func StationChannel(stationID string) string { return stationChannelPrefix + stationID }

// JobEvent is the payload of job:* events
type JobEvent struct {
	JobID     string         `json:"jobId"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// JobCompleted notifies the owner that a job finished
func (b *Broadcaster) JobCompleted(userID string, ev JobEvent) error {
	return b.trigger(UserChannel(userID), domain.EventJobCompleted, stamp(ev))
}

// JobProgress reports a poll tick for a running job
func (b *Broadcaster) JobProgress(userID string, ev JobEvent) error {
	return b.trigger(UserChannel(userID), domain.EventJobProgress, stamp(ev))
}

// JobFailed notifies the owner that a job failed
func (b *Broadcaster) JobFailed(userID string, ev JobEvent) error {
	return b.trigger(UserChannel(userID), domain.EventJobFailed, stamp(ev))
}

func stamp(ev JobEvent) JobEvent {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return ev
}

// Signal is a WebRTC offer/answer/candidate relayed between host and viewers
type Signal struct {
	Signal any    `json:"signal" binding:"required"`
	From   string `json:"from"`
	To     string `json:"to"`
	Type   string `json:"type" binding:"required,oneof=host viewer"`
}

// RelaySignal forwards a signal to the station channel. Viewer signals go to the host and
// host signals to viewers.
func (b *Broadcaster) RelaySignal(stationID string, s Signal) error {
	event := EventHostSignal
	if s.Type == "viewer" {
		event = EventViewerSignal
	}
	return b.trigger(StationChannel(stationID), event, s)
}

// ChatMessage is a message posted to a live station
type ChatMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SendChat relays a station chat message
func (b *Broadcaster) SendChat(stationID string, m ChatMessage) error {
	return b.trigger(StationChannel(stationID), EventChatMessage, m)
}

// Reaction is an emoji reaction on a live station
type Reaction struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Emoji     string `json:"emoji"`
	Timestamp int64  `json:"timestamp"`
}

// SendReaction relays a reaction
func (b *Broadcaster) SendReaction(stationID string, r Reaction) error {
	return b.trigger(StationChannel(stationID), EventReaction, r)
}

// StationUpdate announces go-live / offline and track changes
func (b *Broadcaster) StationUpdate(stationID string, data any) error {
	return b.trigger(StationChannel(stationID), EventStationUpdate, data)
}

func (b *Broadcaster) trigger(channel, event string, data any) error {
	if err := b.client.Trigger(channel, event, data); err != nil {
		b.logger.Error("Failed to trigger realtime event",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to trigger %s on %s: %w", event, channel, err)
	}

	b.logger.Debug("Realtime event triggered",
		slog.String("channel", channel),
		slog.String("event", event),
	)
	return nil
}

// Member identifies the subscriber of a presence channel
type Member struct {
	UserID   string
	Username string
}

// Authorize signs a channel subscription request. body is the form-encoded
// socket_id/channel_name pair sent by the client library.
func (b *Broadcaster) Authorize(member Member, body []byte) ([]byte, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, domain.Invalid("invalid auth request")
	}
	socketID := form.Get("socket_id")
	channel := form.Get("channel_name")
	if socketID == "" || channel == "" {
		return nil, domain.Invalid("socket_id and channel_name are required")
	}

	switch {
	case strings.HasPrefix(channel, userChannelPrefix):
		if channel != UserChannel(member.UserID) {
			return nil, fmt.Errorf("%w: channel belongs to another user", domain.ErrForbidden)
		}
		return b.client.AuthorizePrivateChannel(body)

	case strings.HasPrefix(channel, stationChannelPrefix):
		info := map[string]string{"username": member.Username}
		return b.client.AuthorizePresenceChannel(body, pusher.MemberData{
			UserID:   member.UserID,
			UserInfo: info,
		})
	}

	return nil, fmt.Errorf("%w: unknown channel", domain.ErrForbidden)
}

var errRelayDisabled = errors.New("realtime relay not configured")

type nopClient struct {
	logger *slog.Logger
}

func (n nopClient) Trigger(channel string, eventName string, data interface{}) error {
	n.logger.Debug("Realtime event dropped",
		slog.String("channel", channel),
		slog.String("event", eventName),
	)
	return nil
}

func (nopClient) AuthorizePrivateChannel([]byte) ([]byte, error) {
	return nil, errRelayDisabled
}

func (nopClient) AuthorizePresenceChannel([]byte, pusher.MemberData) ([]byte, error) {
	return nil, errRelayDisabled
}
