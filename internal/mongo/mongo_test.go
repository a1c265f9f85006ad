package mongo

import (
	"context"
	"errors"
	"testing"
)

func TestConnectValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{name: "missing uri", opts: Options{Database: "tg_forwarder"}, want: errEmptyURI},
		{name: "missing database", opts: Options{URI: "mongodb://localhost:27017"}, want: errEmptyDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(context.Background(), tt.opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if c.Database() != nil {
		t.Fatalf("expected nil database")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
}
