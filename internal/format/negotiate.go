package format

import "fmt"

// BestAudio is the directive used when the caller wants the best available
// audio stream regardless of any chosen encoding.
const BestAudio = "bestaudio"

// Negotiate builds the fallback expression for a request.
//
// The video-only ladder trades "respect the exact quality choice" against
// "still produce a playable file": each later alternative is a strict
// broadening of the previous one.
func Negotiate(req Request) Expression {
	if req.AudioOnlyMP3 {
		return Expression{alternatives: []string{BestAudio}, container: "mp3"}
	}

	if req.EncodingID == "" {
		return Expression{alternatives: []string{"best"}, container: targetContainer(req.Container)}
	}

	if req.WantsAudio {
		// The chosen encoding already carries audio; fall back to the overall
		// best combined stream if the id disappears between lookup and download.
		return Expression{
			alternatives: []string{req.EncodingID, "best"},
			container:    targetContainer(req.Container),
		}
	}

	container := targetContainer(req.Container)
	preferredAudio := "bestaudio[ext=m4a]"
	preferredVideo := "bestvideo[ext=mp4]"
	if container == "webm" {
		preferredAudio = "bestaudio[ext=webm]"
		preferredVideo = "bestvideo[ext=webm]"
	}

	return Expression{
		alternatives: []string{
			fmt.Sprintf("%s+%s", req.EncodingID, preferredAudio),
			fmt.Sprintf("%s+bestaudio", req.EncodingID),
			req.EncodingID,
			fmt.Sprintf("%s+%s", preferredVideo, preferredAudio),
			"bestvideo+bestaudio",
			"best",
		},
		container: container,
	}
}

// targetContainer maps the chosen container onto the merge target: webm
// stays webm, everything else becomes mp4.
func targetContainer(chosen string) string {
	if chosen == "webm" {
		return "webm"
	}
	return "mp4"
}
