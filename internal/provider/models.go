package provider

import (
	"fmt"

	"github.com/444radio/radio-be/internal/domain"
)

// Pinned model identifiers
const (
	ModelMusic      = "minimax/music-1.5"
	ModelImage      = "black-forest-labs/flux-2-klein-9b-base"
	ModelEffects    = "sepal/audiogen"
	VersionEffects  = "154b3e5141493cb1b8cec976d9aa90f2b691137e39ad906d2421b74c2a8c52b8"
	ModelLoops      = "andreasjansson/musicgen-looper"
	VersionLoops    = "f8140d0457c2b39ad8728a80736fea9a67a0ec0cd37b35f40b68cce507db2366"
	VersionStems    = "f2a8516c9084ef460592deaa397acd4a97f60f18c3d15d273644c72500cdff0e"
	VersionExtract  = "25a173108cff36ef9f80f854c162d01df9e6528be175794b81158fa03836d953"
	ModelAudioBoost = "lucataco/audio-boost"
	ModelFoleyHQ    = "tencent/hunyuanvideo-foley"
	VersionFoleyHQ  = "88045928bb97971cffefabfc05a4e55e5bb1c96d475ad4ecc3d229d9169758ae"
	ModelFoley      = "zsxkib/mmaudio"
	VersionFoley    = "62871fb59889b2d7c13777f08deb3b36bdff88f7e1d53a50ad7694548a41b484"
	maxLyricsRunes  = 600
)

// BuildRequest maps a generation job onto the provider model and input for its type
func BuildRequest(t domain.GenerationType, p domain.Params) (Request, error) {
	if err := domain.ValidateParams(t, p); err != nil {
		return Request{}, err
	}

	switch t {
	case domain.GenMusic:
		format := p.StringOr("audio_format", "mp3")
		return Request{
			Model: ModelMusic,
			Input: map[string]any{
				"prompt":       p.String("prompt"),
				"lyrics":       musicLyrics(p.String("lyrics"), p.String("prompt"), LyricDuration(p.StringOr("duration", "medium"))),
				"bitrate":      int(p.Number("bitrate", 256000)),
				"sample_rate":  int(p.Number("sample_rate", 44100)),
				"audio_format": format,
			},
			Format: format,
		}, nil

	case domain.GenImage:
		format := p.StringOr("output_format", "jpg")
		return Request{
			Model: ModelImage,
			Input: map[string]any{
				"prompt":            p.String("prompt"),
				"aspect_ratio":      p.StringOr("aspect_ratio", "1:1"),
				"output_format":     format,
				"output_quality":    int(p.Number("output_quality", 95)),
				"output_megapixels": p.StringOr("output_megapixels", "1"),
				"guidance":          p.Number("guidance", 4),
				"go_fast":           true,
				"images":            []string{},
			},
			Format: format,
		}, nil

	case domain.GenEffects:
		format := p.StringOr("output_format", "mp3")
		return Request{
			Model:   ModelEffects,
			Version: VersionEffects,
			Input: map[string]any{
				"prompt":                   p.String("prompt"),
				"duration":                 clamp(p.Number("duration", 5), 1, 10),
				"top_k":                    int(p.Number("top_k", 250)),
				"top_p":                    p.Number("top_p", 0),
				"temperature":              p.Number("temperature", 1),
				"classifier_free_guidance": p.Number("classifier_free_guidance", 3),
				"output_format":            format,
			},
			Format: format,
		}, nil

	case domain.GenLoops:
		format := p.StringOr("output_format", "wav")
		return Request{
			Model:   ModelLoops,
			Version: VersionLoops,
			Input: map[string]any{
				"prompt":                   p.String("prompt"),
				"bpm":                      int(p.Number("bpm", 120)),
				"max_duration":             clamp(p.Number("max_duration", 8), 1, 20),
				"variations":               clamp(p.Number("variations", 2), 1, 2),
				"model_version":            p.StringOr("model_version", "large"),
				"output_format":            format,
				"classifier_free_guidance": p.Number("classifier_free_guidance", 3),
				"temperature":              p.Number("temperature", 1),
				"top_k":                    int(p.Number("top_k", 250)),
				"top_p":                    p.Number("top_p", 0),
				"seed":                     int(p.Number("seed", -1)),
			},
			Format: format,
		}, nil

	case domain.GenStems:
		return Request{
			Version: VersionStems,
			Input: map[string]any{
				"music_input": p.String("audioUrl"),
				"model":       "harmonix-all",
			},
			Format: "wav",
		}, nil

	case domain.GenExtract:
		format := p.StringOr("output_format", "mp3")
		return Request{
			Version: VersionExtract,
			Input: map[string]any{
				"audio":         p.String("audioUrl"),
				"stem":          p.StringOr("stem", "vocals"),
				"shifts":        int(p.Number("shifts", 1)),
				"float32":       p.Bool("float32", false),
				"overlap":       p.Number("overlap", 0.25),
				"clip_mode":     p.StringOr("clip_mode", "rescale"),
				"model_name":    "htdemucs_6s",
				"mp3_bitrate":   int(p.Number("mp3_bitrate", 320)),
				"output_format": format,
			},
			Format: format,
		}, nil

	case domain.GenAudioBoost:
		format := p.StringOr("output_format", "mp3")
		return Request{
			Model: ModelAudioBoost,
			Input: map[string]any{
				"audio":           p.String("audioUrl"),
				"bass_boost":      p.Number("bass_boost", 0),
				"treble_boost":    p.Number("treble_boost", 0),
				"volume_boost":    p.Number("volume_boost", 2),
				"normalize":       p.Bool("normalize", true),
				"noise_reduction": p.Bool("noise_reduction", false),
				"output_format":   format,
				"bitrate":         p.StringOr("bitrate", "192k"),
			},
			Format: format,
		}, nil

	case domain.GenVideoToAudio:
		if p.String("quality") == "hq" {
			return Request{
				Model:   ModelFoleyHQ,
				Version: VersionFoleyHQ,
				Input: map[string]any{
					"video":               p.String("videoUrl"),
					"prompt":              p.String("prompt"),
					"return_audio":        false,
					"guidance_scale":      4.5,
					"num_inference_steps": 50,
				},
				Format: "mp4",
			}, nil
		}
		return Request{
			Model:   ModelFoley,
			Version: VersionFoley,
			Input: map[string]any{
				"video":           p.String("videoUrl"),
				"prompt":          p.String("prompt"),
				"duration":        8,
				"num_steps":       25,
				"cfg_strength":    4.5,
				"negative_prompt": "music",
				"seed":            -1,
			},
			Format: "mp4",
		}, nil
	}

	return Request{}, domain.Invalid("unknown generation type")
}

// CoverArtRequest builds the square album cover generated alongside a music track
func CoverArtRequest(prompt, genre string) Request {
	if genre == "" {
		genre = "electronic"
	}
	return Request{
		Model: ModelImage,
		Input: map[string]any{
			"prompt":            fmt.Sprintf("%s music album cover art, %s style, professional music artwork", prompt, genre),
			"aspect_ratio":      "1:1",
			"output_format":     "jpg",
			"output_quality":    95,
			"output_megapixels": "1",
			"guidance":          4,
			"go_fast":           true,
			"images":            []string{},
		},
		Format: "jpg",
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
