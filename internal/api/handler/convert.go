package handler

import (
	"encoding/json"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
)

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeStr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || string(b) == "null" || string(b) == "{}" {
		return nil
	}
	return json.RawMessage(b)
}

func toJobDTO(job model.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:       job.ID,
		Type:        job.Type,
		Status:      job.Status,
		CreditsCost: job.CreditsCost,
		Output:      rawJSON(job.Output),
		Error:       str(job.Error),
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.UTC().Format(time.RFC3339),
		CompletedAt: timeStr(job.CompletedAt),
	}
}

func toMediaDTO(m model.Media) dto.MediaDTO {
	return dto.MediaDTO{
		ID:        m.ID,
		Title:     str(m.Title),
		Type:      m.Type,
		AudioURL:  str(m.AudioURL),
		ImageURL:  str(m.ImageURL),
		VideoURL:  str(m.VideoURL),
		Prompt:    str(m.Prompt),
		Genre:     str(m.Genre),
		Plays:     m.Plays,
		Likes:     m.Likes,
		IsPublic:  m.IsPublic,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionDTO(tx model.CreditTransaction) dto.TransactionDTO {
	var meta map[string]any
	if len(tx.Metadata) > 0 {
		_ = json.Unmarshal(tx.Metadata, &meta)
	}
	return dto.TransactionDTO{
		ID:           tx.ID,
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Type:         tx.Type,
		Status:       tx.Status,
		Description:  str(tx.Description),
		Metadata:     meta,
		CreatedAt:    tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTokenDTO(t model.PluginToken) dto.PluginTokenDTO {
	return dto.PluginTokenDTO{
		ID:         t.ID,
		Name:       t.Name,
		IsActive:   t.IsActive,
		LastUsedAt: timeStr(t.LastUsedAt),
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  timeStr(t.ExpiresAt),
	}
}

func toChatDTO(m model.ChatMessage) dto.ChatMessageDTO {
	return dto.ChatMessageDTO{
		ID:             m.ID,
		Type:           m.MessageType,
		Content:        m.Content,
		GenerationType: str(m.GenerationType),
		GenerationID:   str(m.GenerationID),
		Result:         rawJSON(m.Result),
		Timestamp:      m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func toStationDTO(s model.Station) dto.StationDTO {
	out := dto.StationDTO{
		ID:            s.ID,
		UserID:        s.UserID,
		Username:      s.Username,
		Title:         str(s.Title),
		CoverURL:      str(s.CoverURL),
		IsLive:        s.IsLive,
		ListenerCount: s.ListenerCount,
		StartedAt:     timeStr(s.StartedAt),
	}
	if s.CurrentTrackID != nil {
		out.CurrentTrack = &dto.TrackInfo{
			ID:    *s.CurrentTrackID,
			Title: str(s.CurrentTrackTitle),
			Image: str(s.CurrentTrackImage),
		}
	}
	return out
}

func toProfileDTO(p model.Profile) dto.ProfileDTO {
	return dto.ProfileDTO{
		UserID:         p.ClerkUserID,
		Username:       str(p.Username),
		AvatarURL:      str(p.AvatarURL),
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
	}
}
