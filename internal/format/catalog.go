package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoUsableEncodings means filtering left nothing with a usable audio or
// video stream. This is a domain failure, not a crash.
var ErrNoUsableEncodings = errors.New("no usable encodings")

// Catalog is the typed result of a metadata lookup.
type Catalog struct {
	Title     string        `json:"title"`
	Duration  time.Duration `json:"-"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Formats   []Encoding    `json:"formats"`
}

// rawInfo mirrors the loosely typed metadata document the extractor emits.
// It never leaves this package; callers only see Catalog and Encoding.
type rawInfo struct {
	Title     string      `json:"title"`
	Duration  json.Number `json:"duration"`
	Thumbnail string      `json:"thumbnail"`
	Formats   []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string      `json:"format_id"`
	Ext            string      `json:"ext"`
	FormatNote     string      `json:"format_note"`
	Resolution     string      `json:"resolution"`
	Width          json.Number `json:"width"`
	Height         json.Number `json:"height"`
	VCodec         string      `json:"vcodec"`
	ACodec         string      `json:"acodec"`
	Filesize       json.Number `json:"filesize"`
	FilesizeApprox json.Number `json:"filesize_approx"`
	Protocol       string      `json:"protocol"`
	URL            string      `json:"url"`
}

// ParseCatalog validates and coerces the extractor's metadata document into
// a filtered Catalog. Thumbnail and storyboard pseudo-encodings and entries
// with neither a usable video nor audio codec are dropped; an empty result
// is ErrNoUsableEncodings.
func ParseCatalog(data []byte) (*Catalog, error) {
	var info rawInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode metadata document: %w", err)
	}

	catalog := &Catalog{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
	}
	if secs, err := info.Duration.Float64(); err == nil {
		catalog.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, f := range info.Formats {
		enc, ok := coerceFormat(f)
		if !ok {
			continue
		}
		catalog.Formats = append(catalog.Formats, enc)
	}

	if len(catalog.Formats) == 0 {
		return nil, ErrNoUsableEncodings
	}
	return catalog, nil
}

// coerceFormat converts one raw format entry, reporting false for
// pseudo-encodings and unusable entries.
func coerceFormat(f rawFormat) (Encoding, bool) {
	if f.FormatNote == "storyboard" || f.Protocol == "mhtml" {
		return Encoding{}, false
	}

	enc := Encoding{
		ID:         f.FormatID,
		Container:  f.Ext,
		Quality:    f.FormatNote,
		VideoCodec: f.VCodec,
		AudioCodec: f.ACodec,
		URL:        f.URL,
	}
	if enc.VideoCodec == "" {
		enc.VideoCodec = NoCodec
	}
	if enc.AudioCodec == "" {
		enc.AudioCodec = NoCodec
	}
	if !enc.HasVideo() && !enc.HasAudio() {
		return Encoding{}, false
	}

	if enc.HasVideo() {
		enc.Resolution = f.Resolution
		if enc.Resolution == "" {
			if w, errW := f.Width.Int64(); errW == nil {
				if h, errH := f.Height.Int64(); errH == nil && w > 0 && h > 0 {
					enc.Resolution = fmt.Sprintf("%dx%d", w, h)
				}
			}
		}
	}

	if size, err := f.Filesize.Int64(); err == nil && size > 0 {
		enc.SizeBytes = size
	} else if size, err := f.FilesizeApprox.Int64(); err == nil && size > 0 {
		enc.SizeBytes = size
	}

	return enc, true
}
