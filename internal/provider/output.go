package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/tidwall/gjson"
)

// OutputFile is one downloadable artifact of a prediction
type OutputFile struct {
	Name string
	URL  string
}

// OutputFiles flattens string, array and object outputs into named URLs.
// Object keys are returned in sorted order; null and non-URL values are skipped.
func (p *Prediction) OutputFiles() []OutputFile {
	if len(p.Output) == 0 || !gjson.ValidBytes(p.Output) {
		return nil
	}

	out := gjson.ParseBytes(p.Output)
	var files []OutputFile
	switch {
	case out.Type == gjson.String:
		if isURL(out.Str) {
			files = append(files, OutputFile{Name: "output", URL: out.Str})
		}
	case out.IsArray():
		for i, item := range out.Array() {
			if u := urlOf(item); u != "" {
				files = append(files, OutputFile{Name: fmt.Sprintf("output-%d", i), URL: u})
			}
		}
	case out.IsObject():
		if u := out.Get("url"); u.Type == gjson.String && isURL(u.Str) {
			return []OutputFile{{Name: "output", URL: u.Str}}
		}
		out.ForEach(func(key, value gjson.Result) bool {
			if u := urlOf(value); u != "" {
				files = append(files, OutputFile{Name: key.Str, URL: u})
			}
			return true
		})
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	}
	return files
}

// OutputURLs returns just the URLs of OutputFiles
func (p *Prediction) OutputURLs() []string {
	files := p.OutputFiles()
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = f.URL
	}
	return urls
}

// urlOf accepts a URL string or an object with a url field
func urlOf(v gjson.Result) string {
	if v.IsObject() {
		v = v.Get("url")
	}
	if v.Type == gjson.String && isURL(v.Str) {
		return v.Str
	}
	return ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// SanitizeError turns any provider failure into the message users see.
// Validation errors keep their own text.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Msg
	}
	return domain.ProviderBusyMessage
}
