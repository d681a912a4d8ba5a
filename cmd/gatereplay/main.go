// gatereplay resends gate traffic captured in a pcap file to a running
// relay. UDP payloads for the filtered port are extracted and transmitted to
// the target address, optionally paced by the capture timestamps. Requires
// building with the 'pcap' tag; the default build prints instructions.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to replay")
	target   = flag.String("target", "127.0.0.1:9000", "Relay address to replay traffic to")
	port     = flag.Int("port", 9000, "UDP port filter for the capture")
	pace     = flag.Bool("pace", false, "Pace replay by capture timestamps")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("a capture file is required (-pcap)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sent, err := runReplay(ctx, *pcapFile, *target, *port, *pace)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	log.Printf("replayed %d datagrams to %s", sent, *target)
}
