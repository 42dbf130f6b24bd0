package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kolabhq/tilepad/pkg/channel"
	"github.com/kolabhq/tilepad/pkg/config"
	"github.com/kolabhq/tilepad/pkg/database"
	"github.com/kolabhq/tilepad/pkg/document"
	"github.com/kolabhq/tilepad/pkg/events"
	"github.com/kolabhq/tilepad/pkg/eventlog"
	"github.com/kolabhq/tilepad/pkg/httpapi"
	"github.com/kolabhq/tilepad/pkg/locks"
	"github.com/kolabhq/tilepad/pkg/logger"
	"github.com/kolabhq/tilepad/pkg/presence"
	"github.com/kolabhq/tilepad/pkg/realtime"
	"github.com/kolabhq/tilepad/pkg/session"
)

func main() {
	logger.Init()
	cfg := config.Load()

	logger.Info("Starting Tilepad server...")
	logger.Info("Port: %s", cfg.Port)

	var db *database.Database
	if cfg.SQLiteURI != "" {
		logger.Info("Persistence: %s", cfg.SQLiteURI)
		var err error
		db, err = database.New(cfg.SQLiteURI)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		defer db.Close()
	} else {
		logger.Info("Persistence: disabled (in-memory only)")
	}

	lockTable := locks.New()
	docs := document.NewStore(lockTable)
	sessions := session.New(time.Duration(cfg.SessionIdleMS) * time.Millisecond)
	pres := presence.New()
	channels := channel.New()
	elog := eventlog.New(cfg.MaxEventLog)

	rt := realtime.NewServer(pres, channels, elog, sessions, realtime.Options{
		PingInterval:        cfg.PingInterval,
		PingTimeout:         cfg.PingTimeout,
		BroadcastBufferSize: cfg.BroadcastBufferSize,
		AcceptOrigin:        cfg.FrontendOrigin,
	})

	facade := events.New(rt, elog.Since, pres.List)
	api := httpapi.New(docs, sessions, lockTable, facade, time.Duration(cfg.PathLockTTLMS)*time.Millisecond)

	mux := http.NewServeMux()
	mux.Handle("/ws", rt)
	mux.Handle("/api/documents", api)
	mux.Handle("/api/documents/", api)
	mux.Handle("/api/sessions", api)
	mux.Handle("/api/sessions/", api)
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(w, docs, db, rt)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.StartJanitor(ctx, 10*time.Second, time.Duration(cfg.SessionIdleMS)*time.Millisecond)
	if db != nil {
		go persister(ctx, docs, db)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// persister periodically snapshots every open document whose revision has
// advanced since the last sweep. Jittered to avoid a thundering herd of
// writes against a single SQLite file when many documents change at once.
func persister(ctx context.Context, docs *document.Store, db *database.Database) {
	const interval = 3 * time.Second
	const jitter = 1 * time.Second

	lastRevision := make(map[string]int)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval + time.Duration(rand.Int63n(int64(jitter)))):
		}

		for _, id := range docs.ListDocumentIDs() {
			doc, ok := docs.GetDocument(id)
			if !ok {
				continue
			}
			if doc.Revision <= lastRevision[id] {
				continue
			}
			if err := db.Store(&doc); err != nil {
				logger.Error("persisting document %s: %v", id, err)
				continue
			}
			lastRevision[id] = doc.Revision
		}
	}
}

type statsResponse struct {
	StartTime        int64 `json:"startTime"`
	NumDocuments     int   `json:"numDocuments"`
	DatabaseSize     int   `json:"databaseSize"`
	ActiveConnections int  `json:"activeConnections"`
}

var startTime = time.Now()

func handleStats(w http.ResponseWriter, docs *document.Store, db *database.Database, rt *realtime.Server) {
	dbSize := 0
	if db != nil {
		if count, err := db.Count(); err == nil {
			dbSize = count
		}
	}

	stats := statsResponse{
		StartTime:         startTime.Unix(),
		NumDocuments:      len(docs.ListDocumentIDs()),
		DatabaseSize:      dbSize,
		ActiveConnections: rt.ConnectionCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
