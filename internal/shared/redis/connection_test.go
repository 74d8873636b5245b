package redis

import (
	"context"
	"net"
	"testing"

	"multiverse-server/internal/shared/config"

	"github.com/alicebob/miniredis/v2"
)

func TestConnect_Disabled(t *testing.T) {
	client, err := Connect(context.Background(), config.RedisConfig{Enabled: false})
	if err != nil || client != nil {
		t.Fatalf("Connect() = %v, %v; want nil, nil", client, err)
	}
	if got := client.Status(context.Background()); got != "disabled" {
		t.Errorf("Status() = %q, want disabled", got)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestConnect_HostPort(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(mr.Addr())

	client, err := Connect(context.Background(), config.RedisConfig{Enabled: true, Host: host, Port: port})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if got := client.Status(context.Background()); got != "connected" {
		t.Errorf("Status() = %q, want connected", got)
	}

	mr.Close()
	if got := client.Status(context.Background()); got != "disconnected" {
		t.Errorf("Status() after close = %q, want disconnected", got)
	}
}

func TestConnect_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), config.RedisConfig{Enabled: true, URL: "redis://" + mr.Addr() + "/2"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if client.Options().DB != 2 {
		t.Errorf("DB = %d, want 2", client.Options().DB)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), config.RedisConfig{Enabled: true, URL: "ftp://nowhere"}); err == nil {
		t.Error("Connect() with bad URL error = nil")
	}
}
