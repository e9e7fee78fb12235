package handler

import (
	"net/http"
	"testing"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationHandler_Get(t *testing.T) {
	title := "Late Night Beats"
	live := &model.Station{ID: "st-1", UserID: "host", Username: "dj", Title: &title, IsLive: true, ListenerCount: 4}
	untitled := &model.Station{ID: "st-2", UserID: "host", Username: "dj", IsLive: true}

	tests := []struct {
		name       string
		station    *model.Station
		stations   []model.Station
		query      string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "by id",
			station:    live,
			query:      "?id=st-1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "st-1", body["station"].(map[string]any)["id"])
			},
		},
		{
			name:       "unknown id",
			query:      "?id=missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "username live",
			station:    live,
			query:      "?username=dj",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["isLive"])
				assert.Equal(t, title, body["title"])
				assert.EqualValues(t, 4, body["listenerCount"])
			},
		},
		{
			name:       "username default title",
			station:    untitled,
			query:      "?username=dj",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "dj's Station", body["title"])
			},
		},
		{
			name:       "username offline",
			query:      "?username=dj",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, false, body["isLive"])
				assert.Equal(t, "dj", body["username"])
			},
		},
		{
			name:       "user without station",
			query:      "?userId=nobody",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				v, ok := body["station"]
				assert.True(t, ok)
				assert.Nil(t, v)
			},
		},
		{
			name:       "all live",
			stations:   []model.Station{*live, *untitled},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Len(t, body["stations"], 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStationHandler(testDeps(&fakeStore{station: tt.station, stations: tt.stations}))

			w := serve(t, http.MethodGet, "/stations", "/stations"+tt.query, nil, "", h.Get)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, decode(t, w))
			}
		})
	}
}

func TestStationHandler_Upsert(t *testing.T) {
	store := &fakeStore{}
	deps := testDeps(store)
	rt := &fakeBroadcaster{}
	deps.Realtime = rt
	h := NewStationHandler(deps)

	body := map[string]any{
		"isLive":       true,
		"title":        "Morning Set",
		"currentTrack": map[string]string{"id": "m1", "title": "Sunrise"},
	}
	w := serve(t, http.MethodPost, "/stations", "/stations", body, "host", h.Upsert)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, store.upserted)
	assert.Equal(t, anonymousUsername, store.upserted.Username)
	assert.True(t, store.upserted.IsLive)
	assert.Equal(t, "m1", *store.upserted.CurrentTrackID)
	assert.Equal(t, []string{"st-1"}, rt.updates)
}

func TestStationHandler_Relays(t *testing.T) {
	t.Run("signal sender is the caller", func(t *testing.T) {
		deps := testDeps(&fakeStore{station: &model.Station{ID: "st-1"}})
		rt := &fakeBroadcaster{}
		deps.Realtime = rt
		h := NewStationHandler(deps)

		body := map[string]any{"signal": map[string]string{"sdp": "v=0"}, "type": "viewer", "from": "spoofed", "to": "host"}
		w := serve(t, http.MethodPost, "/stations/:station_id/signal", "/stations/st-1/signal", body, "viewer_1", h.Signal)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Len(t, rt.signals, 1)
		assert.Equal(t, "viewer_1", rt.signals[0].From)
	})

	t.Run("signal to unknown station", func(t *testing.T) {
		h := NewStationHandler(testDeps(&fakeStore{}))
		body := map[string]any{"signal": "x", "type": "host"}
		w := serve(t, http.MethodPost, "/stations/:station_id/signal", "/stations/nope/signal", body, "host", h.Signal)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("signal with bad type", func(t *testing.T) {
		h := NewStationHandler(testDeps(&fakeStore{}))
		body := map[string]any{"signal": "x", "type": "admin"}
		w := serve(t, http.MethodPost, "/stations/:station_id/signal", "/stations/st-1/signal", body, "host", h.Signal)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("chat message carries username", func(t *testing.T) {
		deps := testDeps(&fakeStore{username: "listener"})
		rt := &fakeBroadcaster{}
		deps.Realtime = rt
		h := NewStationHandler(deps)

		w := serve(t, http.MethodPost, "/stations/:station_id/message", "/stations/st-1/message", map[string]string{"message": "hello"}, "u1", h.Message)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, rt.chats, 1)
		assert.Equal(t, "listener", rt.chats[0].Username)
		assert.NotEmpty(t, rt.chats[0].ID)
	})

	t.Run("empty reaction rejected", func(t *testing.T) {
		h := NewStationHandler(testDeps(&fakeStore{}))
		w := serve(t, http.MethodPost, "/stations/:station_id/reaction", "/stations/st-1/reaction", map[string]string{}, "u1", h.Reaction)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRealtimeHandler_Authorize(t *testing.T) {
	t.Run("signs for caller", func(t *testing.T) {
		deps := testDeps(&fakeStore{username: "dj"})
		rt := &fakeBroadcaster{}
		deps.Realtime = rt
		h := NewRealtimeHandler(deps)

		w := serve(t, http.MethodPost, "/realtime/auth", "/realtime/auth", "socket_id=1.2&channel_name=private-user-u1", "u1", h.Authorize)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"auth":"key:sig"}`, w.Body.String())
		assert.Equal(t, "u1", rt.member.UserID)
		assert.Equal(t, "dj", rt.member.Username)
	})

	t.Run("foreign channel forbidden", func(t *testing.T) {
		deps := testDeps(&fakeStore{})
		deps.Realtime = &fakeBroadcaster{authErr: domain.ErrForbidden}
		h := NewRealtimeHandler(deps)

		w := serve(t, http.MethodPost, "/realtime/auth", "/realtime/auth", "socket_id=1.2&channel_name=private-user-u2", "u1", h.Authorize)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
