package domain

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

// GenerationType names a kind of generation request
type GenerationType string

const (
	GenMusic        GenerationType = "music"
	GenImage        GenerationType = "image"
	GenEffects      GenerationType = "effects"
	GenLoops        GenerationType = "loops"
	GenStems        GenerationType = "stems"
	GenExtract      GenerationType = "extract"
	GenAudioBoost   GenerationType = "audio-boost"
	GenVideoToAudio GenerationType = "video-to-audio"
)

// GenerationTypes lists every accepted type in a stable order
var GenerationTypes = []GenerationType{
	GenMusic, GenImage, GenEffects, GenLoops, GenStems, GenExtract, GenAudioBoost, GenVideoToAudio,
}

// ExtractStems are the stems the extract model can isolate
var ExtractStems = []string{"vocals", "bass", "drums", "piano", "guitar", "other"}

// ParseGenerationType validates a raw type name
func ParseGenerationType(raw string) (GenerationType, error) {
	t := GenerationType(raw)
	if !slices.Contains(GenerationTypes, t) {
		names := make([]string, len(GenerationTypes))
		for i, g := range GenerationTypes {
			names[i] = string(g)
		}
		return "", Invalid(fmt.Sprintf("Invalid type. Must be one of: %s", strings.Join(names, ", ")))
	}
	return t, nil
}

// TransactionType is the ledger type recorded for a generation of this kind
func (t GenerationType) TransactionType() string {
	return "generation_" + strings.ReplaceAll(string(t), "-", "_")
}

// Params is the free-form JSON body of a generation request
type Params map[string]any

// String returns the trimmed string value of key, or "" when missing or not a string
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

// StringOr returns String(key) or def when empty
func (p Params) StringOr(key, def string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return def
}

// Number returns a numeric value (JSON numbers decode to float64) or def
func (p Params) Number(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Bool returns a boolean value or def
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// CreditCost returns the credits a request of type t with params p costs
func CreditCost(t GenerationType, p Params) int {
	switch t {
	case GenMusic, GenEffects:
		return 2
	case GenImage, GenExtract, GenAudioBoost:
		return 1
	case GenLoops:
		if p.Number("max_duration", 8) <= 10 {
			return 6
		}
		return 7
	case GenStems:
		return 5
	case GenVideoToAudio:
		if p.String("quality") == "hq" {
			return 10
		}
		return 2
	}
	return 0
}

// ValidateParams checks the type-specific required fields before anything is charged or queued
func ValidateParams(t GenerationType, p Params) error {
	switch t {
	case GenMusic:
		if n := utf8.RuneCountInString(p.String("title")); n < 3 || n > 100 {
			return Invalid("Title required (3-100 chars)")
		}
		if n := utf8.RuneCountInString(p.String("prompt")); n < 10 || n > 300 {
			return Invalid("Prompt required (10-300 chars)")
		}
	case GenImage, GenEffects, GenLoops:
		if p.String("prompt") == "" {
			return Invalid("Missing prompt")
		}
	case GenStems, GenAudioBoost:
		if err := requireHTTPURL(p.String("audioUrl"), "audioUrl"); err != nil {
			return err
		}
	case GenExtract:
		if err := requireHTTPURL(p.String("audioUrl"), "audioUrl"); err != nil {
			return err
		}
		if stem := p.StringOr("stem", "vocals"); !slices.Contains(ExtractStems, stem) {
			return Invalid(fmt.Sprintf("Invalid stem. Choose: %s", strings.Join(ExtractStems, ", ")))
		}
	case GenVideoToAudio:
		if err := requireHTTPURL(p.String("videoUrl"), "videoUrl"); err != nil {
			return err
		}
		if p.String("prompt") == "" {
			return Invalid("prompt required, describe the sounds you want")
		}
	default:
		return Invalid("unknown generation type")
	}
	return nil
}

func requireHTTPURL(raw, field string) error {
	if raw == "" {
		return Invalid(field + " required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Invalid("Invalid " + field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Invalid(field + " must use HTTP or HTTPS")
	}
	return nil
}
