package provider

import (
	"strings"
	"testing"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name        string
		typ         domain.GenerationType
		params      domain.Params
		wantModel   string
		wantVersion string
		wantFormat  string
		check       func(t *testing.T, in map[string]any)
	}{
		{
			name:       "music",
			typ:        domain.GenMusic,
			params:     domain.Params{"title": "Night Drive", "prompt": "dark synthwave with driving bass"},
			wantModel:  ModelMusic,
			wantFormat: "mp3",
			check: func(t *testing.T, in map[string]any) {
				assert.Equal(t, ExpandLyrics(MatchLyrics("dark synthwave with driving bass").Lyrics, DurationMedium), in["lyrics"])
				assert.Equal(t, 256000, in["bitrate"])
			},
		},
		{
			name:       "music keeps caller lyrics",
			typ:        domain.GenMusic,
			params:     domain.Params{"title": "Night Drive", "prompt": "dark synthwave with driving bass", "lyrics": strings.Repeat("neon road ", 40)},
			wantModel:  ModelMusic,
			wantFormat: "mp3",
			check: func(t *testing.T, in map[string]any) {
				assert.Equal(t, strings.TrimSpace(strings.Repeat("neon road ", 40)), in["lyrics"])
			},
		},
		{
			name:        "effects clamps duration",
			typ:         domain.GenEffects,
			params:      domain.Params{"prompt": "thunder", "duration": float64(30)},
			wantModel:   ModelEffects,
			wantVersion: VersionEffects,
			wantFormat:  "mp3",
			check: func(t *testing.T, in map[string]any) {
				assert.Equal(t, float64(10), in["duration"])
			},
		},
		{
			name:        "loops",
			typ:         domain.GenLoops,
			params:      domain.Params{"prompt": "boom bap", "bpm": float64(90)},
			wantModel:   ModelLoops,
			wantVersion: VersionLoops,
			wantFormat:  "wav",
			check: func(t *testing.T, in map[string]any) {
				assert.Equal(t, 90, in["bpm"])
				assert.Equal(t, float64(8), in["max_duration"])
			},
		},
		{
			name:        "extract",
			typ:         domain.GenExtract,
			params:      domain.Params{"audioUrl": "https://x/a.mp3", "stem": "piano"},
			wantVersion: VersionExtract,
			wantFormat:  "mp3",
			check: func(t *testing.T, in map[string]any) {
				assert.Equal(t, "piano", in["stem"])
				assert.Equal(t, "htdemucs_6s", in["model_name"])
			},
		},
		{
			name:        "video hq",
			typ:         domain.GenVideoToAudio,
			params:      domain.Params{"videoUrl": "https://x/v.mp4", "prompt": "footsteps", "quality": "hq"},
			wantModel:   ModelFoleyHQ,
			wantVersion: VersionFoleyHQ,
			wantFormat:  "mp4",
		},
		{
			name:        "video standard",
			typ:         domain.GenVideoToAudio,
			params:      domain.Params{"videoUrl": "https://x/v.mp4", "prompt": "footsteps"},
			wantModel:   ModelFoley,
			wantVersion: VersionFoley,
			wantFormat:  "mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(tt.typ, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, req.Model)
			assert.Equal(t, tt.wantVersion, req.Version)
			assert.Equal(t, tt.wantFormat, req.Format)
			if tt.check != nil {
				tt.check(t, req.Input)
			}
		})
	}
}

func TestBuildRequest_Invalid(t *testing.T) {
	_, err := BuildRequest(domain.GenStems, domain.Params{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCoverArtRequest(t *testing.T) {
	tests := []struct {
		name       string
		genre      string
		wantPrompt string
	}{
		{name: "with genre", genre: "lofi", wantPrompt: "rainy night drive music album cover art, lofi style, professional music artwork"},
		{name: "default genre", wantPrompt: "rainy night drive music album cover art, electronic style, professional music artwork"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CoverArtRequest("rainy night drive", tt.genre)
			assert.Equal(t, ModelImage, req.Model)
			assert.Equal(t, "jpg", req.Format)
			assert.Equal(t, tt.wantPrompt, req.Input["prompt"])
			assert.Equal(t, "1:1", req.Input["aspect_ratio"])
		})
	}
}
