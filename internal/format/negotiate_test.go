package format

import (
	"reflect"
	"testing"
)

func TestNegotiate_VideoOnlyLadder(t *testing.T) {
	expr := Negotiate(Request{EncodingID: "137", Container: "mp4", WantsAudio: false})

	want := []string{
		"137+bestaudio[ext=m4a]",
		"137+bestaudio",
		"137",
		"bestvideo[ext=mp4]+bestaudio[ext=m4a]",
		"bestvideo+bestaudio",
		"best",
	}
	if got := expr.Alternatives(); !reflect.DeepEqual(got, want) {
		t.Errorf("Alternatives() = %v, want %v", got, want)
	}
	if expr.Container() != "mp4" {
		t.Errorf("Container() = %q, want %q", expr.Container(), "mp4")
	}
	if !expr.NeedsMerge() {
		t.Error("NeedsMerge() = false, want true")
	}
}

func TestNegotiate_VideoOnlyWebm(t *testing.T) {
	expr := Negotiate(Request{EncodingID: "248", Container: "webm", WantsAudio: false})

	want := []string{
		"248+bestaudio[ext=webm]",
		"248+bestaudio",
		"248",
		"bestvideo[ext=webm]+bestaudio[ext=webm]",
		"bestvideo+bestaudio",
		"best",
	}
	if got := expr.Alternatives(); !reflect.DeepEqual(got, want) {
		t.Errorf("Alternatives() = %v, want %v", got, want)
	}
	if expr.Container() != "webm" {
		t.Errorf("Container() = %q, want %q", expr.Container(), "webm")
	}
}

func TestNegotiate_AudioCarryingEncoding(t *testing.T) {
	expr := Negotiate(Request{EncodingID: "22", Container: "mp4", WantsAudio: true})

	want := []string{"22", "best"}
	if got := expr.Alternatives(); !reflect.DeepEqual(got, want) {
		t.Errorf("Alternatives() = %v, want %v", got, want)
	}
	if expr.NeedsMerge() {
		t.Error("NeedsMerge() = true, want false")
	}
}

func TestNegotiate_AudioOnlyMP3(t *testing.T) {
	expr := Negotiate(Request{AudioOnlyMP3: true})

	want := []string{BestAudio}
	if got := expr.Alternatives(); !reflect.DeepEqual(got, want) {
		t.Errorf("Alternatives() = %v, want %v", got, want)
	}
	if expr.Container() != "mp3" {
		t.Errorf("Container() = %q, want %q", expr.Container(), "mp3")
	}
}

func TestNegotiate_NoEncodingDefaultsToBest(t *testing.T) {
	expr := Negotiate(Request{})

	want := []string{"best"}
	if got := expr.Alternatives(); !reflect.DeepEqual(got, want) {
		t.Errorf("Alternatives() = %v, want %v", got, want)
	}
	if expr.Container() != "mp4" {
		t.Errorf("Container() = %q, want %q", expr.Container(), "mp4")
	}
}

func TestNegotiate_UnknownContainerNormalizesToMP4(t *testing.T) {
	expr := Negotiate(Request{EncodingID: "137", Container: "mkv", WantsAudio: false})
	if expr.Container() != "mp4" {
		t.Errorf("Container() = %q, want %q", expr.Container(), "mp4")
	}
}

func TestExpression_Selector(t *testing.T) {
	expr := Negotiate(Request{EncodingID: "22", WantsAudio: true})
	if got := expr.Selector(); got != "22/best" {
		t.Errorf("Selector() = %q, want %q", got, "22/best")
	}
}

func TestExpression_FinalExt(t *testing.T) {
	merged := Negotiate(Request{EncodingID: "137", Container: "mp4"})
	if got := merged.FinalExt("mp4"); got != "mp4" {
		t.Errorf("FinalExt() merged = %q, want %q", got, "mp4")
	}

	single := Negotiate(Request{EncodingID: "22", Container: "mp4", WantsAudio: true})
	if got := single.FinalExt("m4a"); got != "m4a" {
		t.Errorf("FinalExt() single = %q, want %q", got, "m4a")
	}
	if got := single.FinalExt(""); got != "bin" {
		t.Errorf("FinalExt() unknown = %q, want %q", got, "bin")
	}
}
