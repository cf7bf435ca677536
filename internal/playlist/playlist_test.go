package playlist

import (
	"slices"
	"testing"
)

func TestNewPlaylist(t *testing.T) {
	p := NewPlaylist[string]()

	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
	if _, ok := p.At(0); ok {
		t.Error("At(0) on empty playlist should fail")
	}
}

func TestPlaylist_Insert(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
		ok    bool
	}{
		{name: "front", index: 0, want: []string{"x", "a", "b", "c"}, ok: true},
		{name: "middle", index: 2, want: []string{"a", "b", "x", "c"}, ok: true},
		{name: "end", index: 3, want: []string{"a", "b", "c", "x"}, ok: true},
		{name: "past end", index: 4, want: []string{"a", "b", "c"}, ok: false},
		{name: "negative", index: -1, want: []string{"a", "b", "c"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlaylist[string]()
			p.Add("a", "b", "c")

			ok := p.Insert(tt.index, "x")

			if ok != tt.ok {
				t.Errorf("Insert(%d) = %v, want %v", tt.index, ok, tt.ok)
			}
			if got := p.Items(); !slices.Equal(got, tt.want) {
				t.Errorf("Items() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaylist_Remove(t *testing.T) {
	p := NewPlaylist[string]()
	p.Add("a", "b", "c")

	if !p.Remove(1) {
		t.Fatal("Remove(1) = false, want true")
	}
	if got := p.Items(); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("Items() = %v, want [a c]", got)
	}
	if p.Remove(5) {
		t.Error("Remove(5) should fail")
	}
}

func TestPlaylist_ItemsReturnsCopy(t *testing.T) {
	p := NewPlaylist[string]()
	p.Add("a")

	items := p.Items()
	items[0] = "changed"

	if v, _ := p.At(0); v != "a" {
		t.Errorf("At(0) = %q, want a", v)
	}
}

func TestPlaylist_Move(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		ok       bool
	}{
		{name: "forward", from: 0, to: 2, want: []string{"b", "c", "a"}, ok: true},
		{name: "backward", from: 2, to: 0, want: []string{"c", "a", "b"}, ok: true},
		{name: "same", from: 1, to: 1, want: []string{"a", "b", "c"}, ok: true},
		{name: "invalid", from: 0, to: 3, want: []string{"a", "b", "c"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlaylist[string]()
			p.Add("a", "b", "c")

			if ok := p.Move(tt.from, tt.to); ok != tt.ok {
				t.Errorf("Move(%d, %d) = %v, want %v", tt.from, tt.to, ok, tt.ok)
			}
			if got := p.Items(); !slices.Equal(got, tt.want) {
				t.Errorf("Items() = %v, want %v", got, tt.want)
			}
		})
	}
}
