// Command connectorctl assembles a Kafka source, a storage adapter, and
// a record writer provider into a running Coordinator, and drives it
// until interrupted: flag parsing, config load, wiring, signal-driven
// shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbiondo/partition-sink/internal/config"
	"github.com/mbiondo/partition-sink/internal/connector"
	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/recordwriter"
	"github.com/mbiondo/partition-sink/internal/registry"
	"github.com/mbiondo/partition-sink/internal/storage"
	"github.com/mbiondo/partition-sink/internal/upstream/kafkasource"

	// Imported for their init() side effects, which register the
	// default storage and record-writer-provider classes with the
	// registry.
	_ "github.com/mbiondo/partition-sink/internal/recordwriter/lineformat"
	_ "github.com/mbiondo/partition-sink/internal/storage/localfs"
)

func main() {
	configFile := flag.String("config", "", "Path to connector configuration file (YAML)")
	brokers := flag.String("brokers", "localhost:9092", "Comma-separated Kafka broker list")
	topic := flag.String("topic", "", "Kafka topic to consume")
	groupID := flag.String("group-id", "partition-sink", "Kafka consumer group id")
	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("error loading config file: %v", err)
		}
		cfg = *loaded
	} else {
		cfg = config.Default()
		log.Println("using default configuration")
	}

	if *topic == "" {
		log.Fatalf("a -topic is required")
	}

	storageComponent, err := registry.CreateStorage(cfg.StorageClass, cfg.StorageConfigForCreate())
	if err != nil {
		log.Fatalf("error creating storage: %v", err)
	}
	store, ok := storageComponent.(storage.Storage)
	if !ok {
		log.Fatalf("storage class %q does not implement storage.Storage", cfg.StorageClass)
	}

	providerComponent, err := registry.CreateRecordWriterProvider(cfg.RecordWriterProviderClass, cfg.RecordWriterConfig)
	if err != nil {
		log.Fatalf("error creating record writer provider: %v", err)
	}
	provider, ok := providerComponent.(recordwriter.Provider)
	if !ok {
		log.Fatalf("record writer provider class %q does not implement recordwriter.Provider", cfg.RecordWriterProviderClass)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Coordinator.New needs a client at construction time, but the
	// client here is the Source, which in turn needs the Coordinator as
	// its sink. sourceRef breaks that cycle: it forwards to whichever
	// *kafkasource.Source is set on it once NewSource returns, and every
	// call the Coordinator makes through it happens only after Run
	// starts, by which point the field is populated.
	var ref sourceRef
	coord := connector.New(cfg.Settings(), store, provider, &ref)

	source, err := kafkasource.NewSource(kafkasource.Config{
		Brokers: splitCSV(*brokers),
		Topics:  []string{*topic},
		GroupID: *groupID,
	}, coord)
	if err != nil {
		log.Fatalf("error creating kafka source: %v", err)
	}
	ref.source = source

	log.Printf("connector starting: topic=%s group=%s storage=%s writer=%s",
		*topic, *groupID, cfg.StorageClass, cfg.RecordWriterProviderClass)

	if err := source.Run(ctx); err != nil {
		log.Printf("kafka source stopped with error: %v", err)
	}

	if err := coord.Close(context.Background()); err != nil {
		log.Printf("error during connector shutdown: %v", err)
	}
	log.Println("connector stopped")
}

type sourceRef struct {
	source *kafkasource.Source
}

func (r *sourceRef) Pause(p partition.ID)  { r.source.Pause(p) }
func (r *sourceRef) Resume(p partition.ID) { r.source.Resume(p) }
func (r *sourceRef) Seek(p partition.ID, offset partition.Offset) {
	r.source.Seek(p, offset)
}
func (r *sourceRef) RequestBackoff(ms int) { r.source.RequestBackoff(ms) }

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
