package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ynishioka/daywatch/internal/engine"
	"github.com/ynishioka/daywatch/internal/events"
	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/lock"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/notify"
	"github.com/ynishioka/daywatch/internal/priority"
	"github.com/ynishioka/daywatch/internal/settings"
	"github.com/ynishioka/daywatch/internal/store"
	"github.com/ynishioka/daywatch/internal/tasks"
	"github.com/ynishioka/daywatch/internal/uds"
)

func runDaemon(_ []string) {
	stateDir := mustStateDir()

	cfg, err := loadConfig(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.StateDir = stateDir

	if err := daemonMain(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func daemonMain(cfg model.Config) error {
	logger := log.New(os.Stderr, "", 0)
	stateDir := cfg.StateDir

	// One daemon per state dir.
	fl := lock.NewFileLock(filepath.Join(stateDir, "daemon.lock"))
	if err := fl.TryLock(); err != nil {
		return fmt.Errorf("another daemon holds %s: %w", stateDir, err)
	}
	defer func() { _ = fl.Unlock() }()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	notifLog, err := gate.NewLog(filepath.Join(stateDir, "notifications.jsonl"), gate.DefaultMaxLogSize)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}
	defer func() { _ = notifLog.Close() }()

	settingsSrc := settings.NewFileSource(filepath.Join(stateDir, "settings.yaml"), logger)
	tasksSrc := tasks.NewFileSource(filepath.Join(stateDir, "tasks.yaml"), logger)
	bus := events.NewBus(64)
	defer bus.Close()

	// Sound preference is read per notification so a settings change
	// applies without a restart.
	notifier := notify.Func(func(title, body, tag string) error {
		return notify.MacOS{Sound: settingsSrc.Current().Sound}.Show(title, body, tag)
	})

	eng, err := engine.New(cfg, engine.Deps{
		Tasks:    tasksSrc,
		Settings: settingsSrc,
		Notifier: notifier,
		Store:    st,
		Bus:      bus,
		Log:      notifLog,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := settingsSrc.Watch(ctx); err != nil {
		logger.Printf("%s WARN daemon: settings watcher unavailable: %v", time.Now().Format(time.RFC3339), err)
	}

	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := uds.NewServer(filepath.Join(stateDir, uds.DefaultSocketName), logger)
	registerHandlers(srv, eng, tasksSrc, settingsSrc, quit)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Stop() }()

	logger.Printf("%s INFO daemon: ready, socket %s", time.Now().Format(time.RFC3339),
		filepath.Join(stateDir, uds.DefaultSocketName))

	sig := <-quit
	logger.Printf("%s INFO daemon: received %v, shutting down", time.Now().Format(time.RFC3339), sig)

	// A second signal skips the graceful drain.
	go func() {
		<-quit
		logger.Printf("%s WARN daemon: second signal, forcing exit", time.Now().Format(time.RFC3339))
		os.Exit(1)
	}()
	return nil
}

func openStore(cfg model.Config, logger *log.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStore(filepath.Join(cfg.StateDir, "state.db"), logger)
	default:
		return store.NewFileStore(filepath.Join(cfg.StateDir, "state"), logger)
	}
}

func registerHandlers(srv *uds.Server, eng *engine.Engine, tasksSrc *tasks.FileSource, settingsSrc *settings.FileSource, quit chan<- os.Signal) {
	srv.Handle(uds.CmdPing, func(*uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"version": version})
	})

	srv.Handle(uds.CmdStatus, func(*uds.Request) *uds.Response {
		return uds.SuccessResponse(eng.Status())
	})

	srv.Handle(uds.CmdRemind, func(req *uds.Request) *uds.Response {
		var p uds.RemindParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("decode params: %v", err))
		}
		at, err := time.Parse(time.RFC3339, p.At)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("parse at: %v", err))
		}
		id, err := eng.ScheduleReminder(p.Title, p.Message, at, p.ScheduleID)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		return uds.SuccessResponse(map[string]string{"id": id})
	})

	srv.Handle(uds.CmdCancel, func(req *uds.Request) *uds.Response {
		var p uds.CancelParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("decode params: %v", err))
		}
		ok, err := eng.CancelReminder(p.ID)
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		if !ok {
			return uds.ErrorResponse(uds.ErrCodeNotFound, fmt.Sprintf("no pending reminder %s", p.ID))
		}
		return uds.SuccessResponse(nil)
	})

	srv.Handle(uds.CmdRank, func(req *uds.Request) *uds.Response {
		var p uds.RankParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return uds.ErrorResponse(uds.ErrCodeValidation, fmt.Sprintf("decode params: %v", err))
			}
		}
		list, err := tasksSrc.ListActive()
		if err != nil {
			return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
		}
		rows := make([]rankRow, 0, len(list))
		for _, r := range priority.Rank(list, time.Now()) {
			if r.Task.Completed {
				continue
			}
			rows = append(rows, rankRow{
				ID:    r.Task.ID,
				Title: r.Task.Title,
				Score: r.Priority.Score,
				Tier:  r.Priority.Tier,
				Due:   r.Task.DueDate,
			})
			if p.Limit > 0 && len(rows) >= p.Limit {
				break
			}
		}
		return uds.SuccessResponse(rows)
	})

	srv.Handle(uds.CmdReload, func(*uds.Request) *uds.Response {
		settingsSrc.Reload()
		return uds.SuccessResponse(nil)
	})

	srv.Handle(uds.CmdShutdown, func(*uds.Request) *uds.Response {
		// Respond first, then deliver the signal so the reply frame
		// reaches the client before the listener closes.
		go func() { quit <- syscall.SIGTERM }()
		return uds.SuccessResponse(nil)
	})
}
