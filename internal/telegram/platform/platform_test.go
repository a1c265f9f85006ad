package platform

import (
	"regexp"
	"testing"
)

func TestMarkChannelID(t *testing.T) {
	if got := MarkChannelID(2659193089); got != -1002659193089 {
		t.Fatalf("expected -1002659193089, got %d", got)
	}
}

func TestBareChannelID(t *testing.T) {
	tests := []struct {
		name   string
		marked int64
		want   int64
	}{
		{name: "marked channel", marked: -1002659193089, want: 2659193089},
		{name: "short channel", marked: -1000000000001, want: 1},
		{name: "basic group", marked: -4567, want: 4567},
		{name: "already bare", marked: 2659193089, want: 2659193089},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BareChannelID(tt.marked); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestMessageLink(t *testing.T) {
	link := MessageLink(-1002659193089, 42)
	if link != "https://t.me/c/2659193089/42" {
		t.Fatalf("unexpected link: %s", link)
	}

	pattern := regexp.MustCompile(`^https://t\.me/c/\d+/\d+$`)
	for _, id := range []int64{-1001, -1009999999999999, 77} {
		if l := MessageLink(id, 1); !pattern.MatchString(l) {
			t.Fatalf("link %q does not match deep link format", l)
		}
	}
}
