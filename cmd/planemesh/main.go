// Command planemesh replays recorded keyframes through the mesher, records
// every snapshot to SQLite and serves the live state over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/planemesh/internal/config"
	"github.com/banshee-data/planemesh/internal/meshdb"
	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/monitor"
	"github.com/banshee-data/planemesh/internal/monitoring"
	"github.com/banshee-data/planemesh/internal/pipeline"
	"github.com/banshee-data/planemesh/internal/replay"
	"github.com/banshee-data/planemesh/internal/version"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON (built-in defaults if empty)")
	replayPath = flag.String("replay", "", "Keyframe JSON lines file to replay (.jsonl or .jsonl.gz)")
	dbPath     = flag.String("db", "", "SQLite database to record snapshots into (disabled if empty)")
	notes      = flag.String("notes", "", "Free-form notes stored with the recording session")
	listen     = flag.String("listen", ":8090", "Monitor listen address (disabled if empty)")
	grpcListen = flag.String("grpc-listen", "", "gRPC health service listen address (disabled if empty)")
	plotDir    = flag.String("plot-dir", "", "Write histogram plots into this directory")
	verbosity  = flag.Int("v", 0, "Log verbosity: 0 ops, 1 diag, 2 trace")
	hold       = flag.Bool("hold", false, "Keep serving the monitor after the replay finishes")
	migrate    = flag.String("migrate", "", "Run database migrations and exit: up, down or version")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.Get())
		return
	}
	monitoring.SetVerbosity(os.Stderr, *verbosity)
	monitoring.Opsf("%s", version.Get())

	if *migrate != "" {
		if err := runMigrate(*dbPath, *migrate); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	tuning := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *plotDir != "" {
		tuning.HistogramPlotDir = plotDir
	}

	cfg, err := mesher.ConfigFromTuning(tuning)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	m, err := mesher.New(cfg)
	if err != nil {
		log.Fatalf("failed to create mesher: %v", err)
	}

	var (
		db    *meshdb.DB
		sinks []pipeline.SnapshotSink
		rec   *meshdb.Recorder
	)
	if *dbPath != "" {
		db, err = meshdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		rec, err = meshdb.NewRecorder(db, *notes)
		if err != nil {
			log.Fatalf("failed to start recording session: %v", err)
		}
		sinks = append(sinks, rec)
		monitoring.Opsf("recording session %s into %s", rec.SessionID(), *dbPath)
	}

	stage := pipeline.NewStage(pipeline.StageConfig{
		Mesher:        m,
		QueueSize:     tuning.GetQueueSize(),
		ClusterPlanes: tuning.GetClusterPlanes(),
		Sinks:         sinks,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	stageDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stageDone)
		if err := stage.Run(ctx); err != nil {
			log.Printf("pipeline stage error: %v", err)
		}
	}()

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if *listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{Address: *listen, Source: stage, DB: db})
		if err != nil {
			log.Fatalf("failed to create monitor: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(serverCtx); err != nil {
				log.Printf("monitor server error: %v", err)
			}
		}()
	}

	if *grpcListen != "" {
		hs := monitor.NewHealthServer(*grpcListen, stage, time.Second)
		if err := hs.Start(serverCtx); err != nil {
			log.Fatalf("failed to start gRPC health server: %v", err)
		}
		defer hs.Stop()
	}

	if *replayPath != "" {
		if err := feedReplay(ctx, stage, *replayPath); err != nil {
			log.Printf("replay stopped: %v", err)
		}
	} else {
		monitoring.Opsf("no replay file given; waiting for signal")
		<-ctx.Done()
	}
	stage.Close()
	<-stageDone

	st := stage.Status()
	monitoring.Opsf("processed=%d failed=%d dropped=%d last_frame=%d",
		st.Processed, st.Failed, st.Dropped, st.LastFrameID)

	if rec != nil {
		if err := rec.Close(); err != nil {
			log.Printf("failed to end recording session: %v", err)
		}
	}

	if *hold && ctx.Err() == nil && *listen != "" {
		monitoring.Opsf("replay finished; serving until interrupted")
		<-ctx.Done()
	}
	stopServer()
	wg.Wait()
	monitoring.Opsf("graceful shutdown complete")
}

// feedReplay submits every frame of the file to the stage, blocking on a
// full queue.
func feedReplay(ctx context.Context, stage *pipeline.Stage, path string) error {
	r, err := replay.OpenFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	n := 0
	for {
		in, err := r.Next()
		if errors.Is(err, io.EOF) {
			monitoring.Opsf("replay of %s complete: %d frames", path, n)
			return nil
		}
		if err != nil {
			return err
		}
		if err := stage.Submit(ctx, in); err != nil {
			return err
		}
		n++
	}
}

func runMigrate(path, action string) error {
	if path == "" {
		return errors.New("-db is required")
	}
	db, err := meshdb.OpenDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations, err := meshdb.MigrationsFS()
	if err != nil {
		return err
	}
	switch action {
	case "up":
		return db.MigrateUp(migrations)
	case "down":
		return db.MigrateDown(migrations)
	case "version":
		v, dirty, err := db.MigrateVersion(migrations)
		if err != nil {
			return err
		}
		monitoring.Opsf("schema version %d (dirty=%v)", v, dirty)
		return nil
	default:
		return errors.New("unknown migrate action " + action)
	}
}
