package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/mhaseeb/pindiaqi/internal/advisory"
	"github.com/mhaseeb/pindiaqi/internal/api"
	"github.com/mhaseeb/pindiaqi/internal/aqi"
	"github.com/mhaseeb/pindiaqi/internal/ingest"
	"github.com/mhaseeb/pindiaqi/internal/models"
	"github.com/mhaseeb/pindiaqi/internal/store"
)

var rawalpindi = models.Location{
	Code:      "RWP",
	Name:      "Rawalpindi",
	Latitude:  33.5973,
	Longitude: 73.0479,
	Timezone:  "PKT",
	UTCOffset: 5 * 3600,
	Active:    true,
}

type cli struct {
	DB   string `help:"Path to SQLite database." default:"data/pindiaqi.db"`
	Port string `help:"HTTP server port." default:"8080"`

	FeatureStoreURL     string `help:"Feature store base URL." env:"FEATURESTORE_URL" default:"https://c.app.hopsworks.ai/hopsworks-api/api"`
	FeatureStoreKey     string `help:"Feature store API key." env:"FEATURESTORE_API_KEY"`
	FeatureGroup        string `help:"Feature group holding AQI predictions." env:"FEATURE_GROUP" default:"aqi_predictions"`
	FeatureGroupVersion int    `help:"Feature group version." env:"FEATURE_GROUP_VERSION" default:"1"`

	ArchiveHost string `help:"FTP host for the CSV prediction archive." env:"ARCHIVE_HOST"`
	ArchiveUser string `help:"FTP user." env:"ARCHIVE_USER"`
	ArchivePass string `help:"FTP password." env:"ARCHIVE_PASS"`
	ArchiveDir  string `help:"Directory on the FTP host containing prediction CSVs." env:"ARCHIVE_DIR" default:"/predictions"`

	PollInterval time.Duration `help:"How often to poll the feature store." default:"1h"`
	CacheTTL     time.Duration `help:"How long a fetched table stays usable as a fallback." default:"6h"`
	NaiveZone    string        `help:"Zone assumed for timestamps without an offset." default:"UTC"`

	NoPoll bool `help:"Disable polling (server only, for local dev)."`
	Once   bool `help:"Ingest once and exit (for testing)."`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("pindiaqi"),
		kong.Description("Rawalpindi AQI forecast service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	naive, err := time.LoadLocation(flags.NaiveZone)
	if err != nil {
		log.Fatalf("load naive zone %q: %v", flags.NaiveZone, err)
	}

	st := store.New(db, aqi.DisplayZone)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	if err := st.UpsertLocation(rawalpindi); err != nil {
		log.Fatalf("upsert location %s: %v", rawalpindi.Code, err)
	}

	if flags.FeatureStoreKey == "" {
		log.Fatal("FEATURESTORE_API_KEY required (flag or .env)")
	}

	features := ingest.NewFeatureStoreClient(
		flags.FeatureStoreURL, flags.FeatureStoreKey,
		flags.FeatureGroup, flags.FeatureGroupVersion)

	var archive ingest.ArchiveReader
	if flags.ArchiveHost != "" {
		archive = ingest.NewArchiveClient(flags.ArchiveHost, flags.ArchiveUser, flags.ArchivePass, flags.ArchiveDir)
	} else {
		log.Println("no archive host configured, CSV fallback disabled")
	}

	opts := aqi.Options{Display: aqi.DisplayZone, Naive: naive}
	scheduler := ingest.NewScheduler(st, features, archive, rawalpindi, opts, flags.PollInterval, flags.CacheTTL)

	if gen, err := advisory.NewGenerator(st); err != nil {
		log.Printf("advisory generation disabled: %v", err)
	} else {
		scheduler.SetAdvisoryGenerator(gen)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.Once {
		log.Println("running single ingestion")
		if err := scheduler.IngestOnce(ctx); err != nil {
			log.Fatalf("ingest: %v", err)
		}
		log.Println("done")
		return
	}

	if !flags.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	server := api.NewServer(st, flags.Port, rawalpindi.Code, aqi.DisplayZone)
	log.Printf("starting server on :%s", flags.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
