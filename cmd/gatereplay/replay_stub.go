//go:build !pcap
// +build !pcap

package main

import (
	"context"
	"errors"
)

// runReplay is unavailable without libpcap. Build with -tags pcap to enable.
func runReplay(ctx context.Context, pcapFile, target string, port int, pace bool) (int, error) {
	return 0, errors.New("pcap support not compiled in; rebuild with -tags pcap")
}
