//go:build pcap
// +build pcap

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// runReplay streams UDP payloads from the capture to the target address.
// With pacing enabled, inter-packet gaps from the capture are preserved.
func runReplay(ctx context.Context, pcapFile, target string, port int, pace bool) (int, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return 0, fmt.Errorf("open capture %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		return 0, fmt.Errorf("set BPF filter %q: %w", filter, err)
	}

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return 0, fmt.Errorf("resolve target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return 0, fmt.Errorf("dial %q: %w", target, err)
	}
	defer conn.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	sent := 0
	var lastStamp time.Time

	for {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				return sent, nil
			}
			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			if pace {
				stamp := packet.Metadata().Timestamp
				if !lastStamp.IsZero() && stamp.After(lastStamp) {
					select {
					case <-ctx.Done():
						return sent, ctx.Err()
					case <-time.After(stamp.Sub(lastStamp)):
					}
				}
				lastStamp = stamp
			}

			if _, err := conn.Write(udp.Payload); err != nil {
				return sent, fmt.Errorf("send datagram %d: %w", sent+1, err)
			}
			sent++
			if sent%1000 == 0 {
				log.Printf("replayed %d datagrams", sent)
			}
		}
	}
}
