// Package format models the encodings a source offers and negotiates which
// of them to request from the extraction tool.
package format

import "strings"

// NoCodec is the extractor's sentinel for an absent audio or video codec.
const NoCodec = "none"

// Encoding describes one retrievable encoding of a source. Catalogs are
// snapshots; an Encoding is never mutated after parsing.
type Encoding struct {
	ID         string `json:"id"`
	Container  string `json:"container"`
	Quality    string `json:"quality,omitempty"`
	Resolution string `json:"resolution,omitempty"` // empty for audio-only
	VideoCodec string `json:"videoCodec"`
	AudioCodec string `json:"audioCodec"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"` // 0 when unknown
	URL        string `json:"url,omitempty"`       // informational only
}

// HasVideo reports whether the encoding carries a usable video stream.
func (e Encoding) HasVideo() bool {
	return e.VideoCodec != "" && e.VideoCodec != NoCodec
}

// HasAudio reports whether the encoding carries a usable audio stream.
func (e Encoding) HasAudio() bool {
	return e.AudioCodec != "" && e.AudioCodec != NoCodec
}

// Request is the input to negotiation, built per download click.
type Request struct {
	EncodingID   string
	Container    string
	WantsAudio   bool
	AudioOnlyMP3 bool
}

// Expression is an ordered fallback list of encoding selectors, most
// specific first. It is built once per request and then immutable.
type Expression struct {
	alternatives []string
	container    string // merge/transcode container target
}

// Alternatives returns the ordered selector list.
func (x Expression) Alternatives() []string {
	out := make([]string, len(x.alternatives))
	copy(out, x.alternatives)
	return out
}

// Selector renders the expression in the extractor's a/b/c fallback syntax.
func (x Expression) Selector() string {
	return strings.Join(x.alternatives, "/")
}

// Container returns the merge container target.
func (x Expression) Container() string {
	return x.container
}

// NeedsMerge reports whether any alternative combines separate video and
// audio streams, requiring a post-merge container directive.
func (x Expression) NeedsMerge() bool {
	for _, alt := range x.alternatives {
		if strings.Contains(alt, "+") {
			return true
		}
	}
	return false
}

// FinalExt returns the container extension the finished artifact will carry.
func (x Expression) FinalExt(requestedExt string) string {
	if x.NeedsMerge() {
		return x.container
	}
	if requestedExt != "" {
		return requestedExt
	}
	return "bin"
}
