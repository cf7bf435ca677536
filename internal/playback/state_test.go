package playback

import (
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStopped, "Stopped"},
		{StatusLoading, "Loading"},
		{StatusPlaying, "Playing"},
		{StatusPaused, "Paused"},
		{StatusSeeking, "Seeking"},
		{StatusFinished, "Finished"},
		{StatusError, "Error"},
		{Status(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestCanTransition_Table(t *testing.T) {
	allowed := []struct {
		from    Status
		trigger Trigger
		to      Status
	}{
		{StatusStopped, TriggerLoadAndPlay, StatusLoading},
		{StatusLoading, TriggerDecoderReady, StatusPlaying},
		{StatusLoading, TriggerDecodeFailure, StatusError},
		{StatusPlaying, TriggerPause, StatusPaused},
		{StatusPaused, TriggerPlay, StatusPlaying},
		{StatusPlaying, TriggerSeek, StatusSeeking},
		{StatusPaused, TriggerSeek, StatusSeeking},
		{StatusSeeking, TriggerSeekComplete, StatusPlaying},
		{StatusSeeking, TriggerSeekComplete, StatusPaused},
		{StatusPlaying, TriggerExhausted, StatusFinished},
		{StatusFinished, TriggerStop, StatusStopped},
		{StatusError, TriggerSkip, StatusLoading},
		{StatusPaused, TriggerSkip, StatusStopped},
		{StatusSeeking, TriggerFatal, StatusError},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.trigger, tt.to) {
			t.Errorf("%s --%s--> %s should be allowed", tt.from, tt.trigger, tt.to)
		}
	}

	rejected := []struct {
		from    Status
		trigger Trigger
		to      Status
	}{
		{StatusStopped, TriggerPause, StatusPaused},
		{StatusStopped, TriggerSeek, StatusSeeking},
		{StatusLoading, TriggerPause, StatusPaused},
		{StatusPaused, TriggerExhausted, StatusFinished},
		{StatusFinished, TriggerPlay, StatusPlaying},
		{StatusPlaying, TriggerStop, StatusPaused},
		{StatusPlaying, TriggerSkip, StatusPlaying},
	}
	for _, tt := range rejected {
		if CanTransition(tt.from, tt.trigger, tt.to) {
			t.Errorf("%s --%s--> %s should be rejected", tt.from, tt.trigger, tt.to)
		}
	}
}

func TestState_Equal(t *testing.T) {
	a := &Track{Path: "/a.flac"}
	a2 := &Track{Path: "/a.flac"}
	b := &Track{Path: "/b.flac"}

	if !paused(a, time.Second).Equal(paused(a2, time.Second)) {
		t.Error("states with the same track path should be equal")
	}
	if paused(a, time.Second).Equal(paused(b, time.Second)) {
		t.Error("states with different tracks should differ")
	}
	if paused(a, time.Second).Equal(playing(a, time.Second)) {
		t.Error("states with different status should differ")
	}
	if !stopped().Equal(State{}) {
		t.Error("zero State should be Stopped")
	}
}

func TestState_String(t *testing.T) {
	tr := &Track{Path: "/a.flac"}
	tests := []struct {
		state State
		want  string
	}{
		{stopped(), "Stopped"},
		{loading(tr), "Loading(/a.flac)"},
		{playing(tr, 1500*time.Millisecond), "Playing(/a.flac, 1.5s)"},
		{failed(KindIoFailure, tr), "Error(IoFailure, /a.flac)"},
		{failed(KindDeviceLost, nil), "Error(DeviceLost)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTrack_Duration(t *testing.T) {
	tr := Track{Frames: 441000, SampleRate: 44100}
	if got := tr.Duration(); got != 10*time.Second {
		t.Errorf("Duration() = %v, want 10s", got)
	}
	if got := (Track{Frames: 10}).Duration(); got != 0 {
		t.Errorf("Duration() without rate = %v, want 0", got)
	}
	if got := durationToFrames(5*time.Second, 44100); got != 220500 {
		t.Errorf("durationToFrames(5s) = %d, want 220500", got)
	}
}
