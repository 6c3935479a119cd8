// Command cdnsd is a minimal demonstration driver for the C-DNS block
// writer: it synthesises a handful of transactions and feeds them
// through the Orchestrator's public protocol, exercising rotation and
// compression exactly the way a real matcher would.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	cdnswriter "github.com/sinodun-go/cdnswriter"
	"github.com/sinodun-go/cdnswriter/internal/cdns/model"
	"github.com/sinodun-go/cdnswriter/internal/cdns/sink"
)

func main() {
	outPattern := flag.String("out", "-", "output pattern (\"-\" for stdout)")
	compression := flag.String("compress", "none", "compression variant: none|gzip|xz")
	maxBlockItems := flag.Int("max-block-items", 100, "records per block before rotation")
	flag.Parse()

	if *outPattern == sink.StdoutName && isatty.IsTerminal(os.Stdout.Fd()) {
		log.Printf("writing C-DNS binary data to a terminal, an odd choice...")
	}

	cfg := cdnswriter.DefaultConfig()
	cfg.OutputPattern = *outPattern
	cfg.MaxBlockItems = *maxBlockItems
	switch *compression {
	case "gzip":
		cfg.Compression = cdnswriter.CompressionGzip
	case "xz":
		cfg.Compression = cdnswriter.CompressionXz
	case "none":
	default:
		log.Fatalf("unknown compression variant %q", *compression)
	}

	w, err := cdnswriter.NewWriter(cfg)
	if err != nil {
		log.Fatalf("constructing writer: %s", err)
	}

	now := time.Now()
	var stats model.PacketStatistics
	for i := 0; i < 3; i++ {
		ts := now.Add(time.Duration(i) * time.Second)
		qr := &model.QueryResponse{
			Query: &model.DNSMessage{
				Timestamp:     ts,
				ClientAddress: net.ParseIP("192.0.2.1"),
				ClientPort:    53512,
				ServerAddress: net.ParseIP("198.51.100.1"),
				ServerPort:    53,
				Transport:     model.TransportUDP,
				ID:            uint16(i + 1),
				HasQuestion:   true,
				Question: &model.Question{
					Name:      []byte("\x07example\x03com\x00"),
					ClassType: model.ClassType{QType: 1, QClass: 1},
				},
			},
			Response: &model.DNSMessage{
				Timestamp:     ts.Add(2 * time.Millisecond),
				ClientAddress: net.ParseIP("192.0.2.1"),
				ClientPort:    53512,
				ServerAddress: net.ParseIP("198.51.100.1"),
				ServerPort:    53,
				Transport:     model.TransportUDP,
				ID:            uint16(i + 1),
				HasQuestion:   true,
			},
		}

		stats.TotalPackets += 2
		stats.TotalPairs++

		if err := w.CheckForRotation(ts); err != nil {
			log.Fatalf("check_for_rotation: %s", err)
		}
		if err := w.StartRecord(qr); err != nil {
			log.Fatalf("start_record: %s", err)
		}
		if err := w.WriteBasic(qr, stats); err != nil {
			log.Fatalf("write_basic: %s", err)
		}
		if err := w.EndRecord(); err != nil {
			log.Fatalf("end_record: %s", err)
		}
	}

	if err := w.Close(); err != nil {
		log.Fatalf("close: %s", err)
	}
}
