package interceptors

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func TestClientIP(t *testing.T) {
	withMD := func(kv map[string]string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.New(kv))
	}
	testCases := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"x-forwarded-for", withMD(map[string]string{"x-forwarded-for": "192.168.1.1"}), "192.168.1.1"},
		{"x-forwarded-for with comma", withMD(map[string]string{"x-forwarded-for": "192.168.1.1, 10.0.0.1"}), "192.168.1.1"},
		{"x-real-ip", withMD(map[string]string{"x-real-ip": "192.168.1.2"}), "192.168.1.2"},
		{"x-forwarded-for precedence", withMD(map[string]string{
			"x-forwarded-for": "192.168.1.1",
			"x-real-ip":       "192.168.1.2",
		}), "192.168.1.1"},
		{"whitespace", withMD(map[string]string{"x-forwarded-for": "  192.168.1.1  "}), "192.168.1.1"},
		{"peer address", peer.NewContext(context.Background(), &peer.Peer{
			Addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.3"), Port: 12345},
		}), "192.168.1.3"},
		{"recorded by http middleware", WithClientIP(withMD(map[string]string{"x-real-ip": "10.0.0.9"}), "203.0.113.7"), "203.0.113.7"},
		{"unknown", context.Background(), "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.ctx); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
