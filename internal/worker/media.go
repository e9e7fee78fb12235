package worker

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/provider"
)

// folderFor returns the object-store folder generated files of t are kept under
func folderFor(t domain.GenerationType) string {
	switch t {
	case domain.GenStems, domain.GenExtract:
		return "stems"
	case domain.GenImage:
		return "images"
	case domain.GenVideoToAudio:
		return "videos"
	default:
		return "audio"
	}
}

// fileName picks the stored name of one output. Provider URLs often end in a generic
// "output.mp3", so the output key and format decide it.
func fileName(t domain.GenerationType, f provider.OutputFile, format string, index int) string {
	var ext string
	if u, err := url.Parse(f.URL); err == nil {
		ext = strings.TrimPrefix(path.Ext(u.Path), ".")
	}
	if ext == "" {
		switch t {
		case domain.GenImage:
			ext = "webp"
		case domain.GenVideoToAudio:
			ext = "mp4"
		default:
			ext = format
		}
	}
	if ext == "" {
		ext = "mp3"
	}

	name := f.Name
	if name == "" || name == "output" {
		name = fmt.Sprintf("%s-%d", t, index+1)
	}
	return name + "." + ext
}

// mediaFor describes how a stored output is listed in the owner's library
func mediaFor(job jobInfo, f provider.OutputFile, storedURL string, index int) model.NewMedia {
	p := job.Params
	prompt := p.String("prompt")
	m := model.NewMedia{
		UserID: job.UserID,
		Type:   "audio",
		Prompt: prompt,
		Metadata: map[string]any{
			"job_id": job.ID,
			"source": "plugin",
		},
	}

	switch job.Type {
	case domain.GenMusic:
		m.Title = p.StringOr("title", truncate(prompt, 100))
		m.Genre = p.String("genre")
		m.AudioURL = storedURL
		m.ImageURL = job.CoverURL
	case domain.GenEffects:
		m.Title = "SFX: " + truncate(prompt, 50)
		m.Genre = "effects"
		m.AudioURL = storedURL
	case domain.GenLoops:
		m.Title = fmt.Sprintf("Loop: %s (v%d)", truncate(prompt, 40), index+1)
		m.Genre = "loop"
		m.AudioURL = storedURL
	case domain.GenStems:
		stem := capitalize(f.Name)
		if title := p.String("trackTitle"); title != "" {
			m.Title = title + " - " + stem
		} else {
			m.Title = stem + " (Stem)"
		}
		m.Genre = "stem"
		m.AudioURL = storedURL
		m.Metadata["stem_type"] = strings.ToLower(f.Name)
	case domain.GenExtract:
		m.Title = p.StringOr("trackTitle", "Extracted Audio") + " - " + capitalize(f.Name) + " Extract"
		m.Genre = "extract"
		m.AudioURL = storedURL
	case domain.GenAudioBoost:
		m.Title = p.StringOr("trackTitle", "Boosted Audio") + " (Boosted)"
		m.Genre = "boosted"
		m.AudioURL = storedURL
	case domain.GenImage:
		m.Type = "image"
		m.Title = truncate(prompt, 100)
		m.ImageURL = storedURL
	case domain.GenVideoToAudio:
		m.Type = "video"
		m.Title = "Video SFX: " + truncate(prompt, 50)
		m.AudioURL = storedURL
		m.VideoURL = storedURL
	}

	if m.Title == "" {
		m.Title = string(job.Type)
	}
	return m
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
