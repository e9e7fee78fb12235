package provider

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// LyricDuration sizes generated lyrics: short, medium (default) or long
type LyricDuration string

const (
	DurationShort  LyricDuration = "short"
	DurationMedium LyricDuration = "medium"
	DurationLong   LyricDuration = "long"
)

// Lyric is one entry of the built-in catalogue
type Lyric struct {
	Title  string   `yaml:"title"`
	Genre  string   `yaml:"genre"`
	Mood   string   `yaml:"mood"`
	Tags   []string `yaml:"tags"`
	Lyrics string   `yaml:"lyrics"`
}

//go:embed lyrics.yaml
var lyricsYAML []byte

var catalogue = mustLoadCatalogue(lyricsYAML)

func mustLoadCatalogue(raw []byte) []Lyric {
	var out []Lyric
	if err := yaml.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("provider: invalid lyrics catalogue: %v", err))
	}
	if len(out) == 0 {
		panic("provider: empty lyrics catalogue")
	}
	return out
}

var genreKeywords = map[string][]string{
	"lofi":   {"lofi", "lo-fi", "chill", "study", "relax", "mellow", "tape", "vinyl", "coffee", "rain", "ambient", "slow", "quiet", "soft"},
	"hiphop": {"hip hop", "hiphop", "rap", "urban", "street", "hustle", "bars", "beats", "rhyme", "flow", "city", "struggle", "grind"},
	"jazz":   {"jazz", "smooth", "saxophone", "sax", "trumpet", "piano", "swing", "blue", "smoky", "elegant", "sophisticated", "club"},
	"chill":  {"chill", "calm", "peaceful", "tranquil", "serene", "ocean", "waves", "breeze", "floating", "drift", "relax", "meditation"},
	"rnb":    {"rnb", "r&b", "soul", "love", "romance", "sensual", "smooth", "groove", "rhythm", "passion", "heartbeat", "desire"},
	"techno": {"techno", "rave", "edm", "electronic", "synth", "warehouse", "neon", "laser", "strobe", "pulse"},
}

var moodKeywords = map[string][]string{
	"melancholic": {"sad", "melancholy", "lonely", "blue", "sorrow", "tears", "faded", "lost", "missing", "nostalgia"},
	"empowering":  {"strong", "power", "rise", "overcome", "victory", "triumph", "confidence", "boss", "winner", "champion"},
	"romantic":    {"love", "romance", "heart", "kiss", "embrace", "together", "valentine", "crush", "date", "lovers"},
	"peaceful":    {"peace", "calm", "quiet", "tranquil", "serene", "gentle", "soft", "still", "silence", "zen"},
	"sensual":     {"sensual", "touch", "skin", "intimate", "desire", "passion", "fire", "heat", "close", "body"},
	"nostalgic":   {"nostalgia", "memory", "remember", "past", "old", "vintage", "yesterday", "used to", "back then"},
	"intense":     {"intense", "fire", "burn", "fight", "battle", "war", "fierce", "aggressive", "hard", "raw"},
	"serene":      {"serene", "peaceful", "calm", "tranquil", "zen", "meditation", "mindful", "balance", "harmony"},
	"dreamy":      {"dream", "dreamy", "haze", "foggy", "clouds", "fantasy", "ethereal", "surreal", "floating"},
	"wistful":     {"wistful", "longing", "pensive", "thoughtful", "reflective", "contemplative", "wondering"},
	"fierce":      {"fierce", "wild", "untamed", "savage", "bold", "fearless", "daring", "brave", "courageous"},
	"intimate":    {"intimate", "close", "personal", "private", "secret", "whisper", "quiet", "tender"},
}

// scoreLyric ranks l against the lowercased input. Genre keywords weigh most, shared words
// longer than three letters least.
func scoreLyric(input string, l Lyric) int {
	score := 0
	for _, kw := range genreKeywords[l.Genre] {
		if strings.Contains(input, kw) {
			score += 10
		}
	}
	for _, kw := range moodKeywords[l.Mood] {
		if strings.Contains(input, kw) {
			score += 5
		}
	}
	for _, tag := range l.Tags {
		if strings.Contains(input, strings.ToLower(tag)) {
			score += 3
		}
	}
	text := strings.ToLower(l.Lyrics)
	for _, word := range strings.Fields(input) {
		if utf8.RuneCountInString(word) > 3 && strings.Contains(text, word) {
			score++
		}
	}
	return score
}

// MatchLyrics picks the catalogue lyrics closest to the prompt. Without any keyword hit the
// pick is derived from the prompt text, so the same prompt always gets the same lyrics.
func MatchLyrics(prompt string) Lyric {
	input := strings.ToLower(strings.TrimSpace(prompt))

	best, bestScore := -1, 0
	for i, l := range catalogue {
		if s := scoreLyric(input, l); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 {
		return catalogue[best]
	}

	h := fnv.New32a()
	h.Write([]byte(input))
	return catalogue[int(h.Sum32()%uint32(len(catalogue)))]
}

var lyricTargets = map[LyricDuration]int{
	DurationShort:  200,
	DurationMedium: 350,
	DurationLong:   500,
}

// ExpandLyrics repeats short lyrics as a second verse, a chorus and, for long tracks, a
// bridge until they reach the minimum length for the duration. The result never exceeds the
// provider's lyric limit.
func ExpandLyrics(base string, d LyricDuration) string {
	target, ok := lyricTargets[d]
	if !ok {
		target = lyricTargets[DurationMedium]
	}

	expanded := base
	hook := firstLines(base, 2)
	if utf8.RuneCountInString(expanded) < target {
		expanded += "\n\n[Verse 2]\n" + base
	}
	if utf8.RuneCountInString(expanded) < target {
		expanded += "\n\n[Chorus]\n" + hook
	}
	if d == DurationLong && utf8.RuneCountInString(expanded) < target {
		expanded += "\n\n[Bridge]\n" + hook
	}
	return truncateLyrics(expanded)
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func truncateLyrics(text string) string {
	if utf8.RuneCountInString(text) <= maxLyricsRunes {
		return text
	}
	r := []rune(text)
	return string(r[:maxLyricsRunes-3]) + "..."
}

// musicLyrics returns the lyrics sent with a music job: the caller's own, or the best
// catalogue match for the prompt, sized to the requested duration.
func musicLyrics(raw, prompt string, d LyricDuration) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = MatchLyrics(prompt).Lyrics
	}
	return ExpandLyrics(text, d)
}
