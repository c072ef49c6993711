package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"ClassPresenter/internal/config"
	"ClassPresenter/internal/export"
	"ClassPresenter/internal/ink"
	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/mediator"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/session"
	"ClassPresenter/internal/state"
	"ClassPresenter/internal/tube"
	"ClassPresenter/internal/ui"
)

const CustomURLScheme = "cpresenter://"

type mode int

const (
	modeSolo mode = iota
	modeShare
	modeJoin
)

// usage: classpresenter [solo | share | join | cpresenter://host:port]
func parseArgs(args []string) (mode, string) {
	if len(args) == 0 {
		return modeShare, ""
	}
	switch a := args[0]; {
	case strings.HasPrefix(a, CustomURLScheme):
		return modeJoin, strings.TrimSuffix(strings.TrimPrefix(a, CustomURLScheme), "/")
	case a == "join":
		if len(args) > 1 {
			return modeJoin, strings.TrimSuffix(strings.TrimPrefix(args[1], CustomURLScheme), "/")
		}
		return modeJoin, ""
	case a == "solo":
		return modeSolo, ""
	}
	return modeShare, ""
}

func main() {
	cfg, err := config.Load(os.Getenv("CP_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	m, link := parseArgs(os.Args[1:])
	if err := run(log, cfg, m, link); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("classpresenter stopped", "error", err)
	}
}

func run(log *logger.Logger, cfg config.Config, m mode, link string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roles := role.New(log)
	deck := state.LoadOrCreate(state.Options{
		Log:             log.With("component", "deck"),
		Perms:           roles,
		WorkDir:         cfg.DeckDir(),
		InkMapBuckets:   cfg.InkMapBuckets,
		EraseResolution: cfg.EraseResolution,
	}, cfg.DeckPath)
	if m != modeJoin {
		restoreIndex(log, cfg, deck)
	}
	logDeckEvents(log, deck.Events())

	eng := session.New(session.Options{Log: log, Config: cfg, Deck: deck, Roles: roles})
	eng.OnDeckReady(func() { log.Info("deck received", "slides", deck.SlideCount()) })

	med := mediator.New(log)
	med.RegisterDeck(deck)
	med.RegisterRoles(roles)
	med.RegisterEngine(eng)
	med.RegisterExporter(export.NewPDF(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })

	var err error
	switch m {
	case modeShare:
		err = host(gctx, g, log, cfg, eng)
	case modeJoin:
		err = join(gctx, log, cfg, eng, link)
	}
	if err != nil {
		stop()
		g.Wait()
		return err
	}

	// Scan blocks on stdin, so the console is not part of the group.
	go func() {
		if err := ui.NewConsole(med, os.Stdin, os.Stdout).Run(gctx); err != nil {
			log.Error("console stopped", "error", err)
		}
		stop()
	}()

	err = g.Wait()
	// The loop has exited; finishing on this goroutine is safe.
	if qerr := eng.Quit(); qerr != nil {
		log.Error("saving on exit failed", "error", qerr)
	}
	return err
}

func host(ctx context.Context, g *errgroup.Group, log *logger.Logger, cfg config.Config, eng *session.Engine) error {
	hub := tube.NewHub(log, cfg.Nick)
	r := mux.NewRouter()
	r.Use(tube.LogRequests(log))
	hub.Mount(r)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MDNS {
		adv, err := tube.Advertise(port, cfg.Nick)
		if err != nil {
			log.Warn("mDNS advertisement unavailable", "error", err)
		} else {
			g.Go(func() error {
				<-ctx.Done()
				return adv.Shutdown()
			})
		}
	}

	if err := eng.Share(ctx, hub); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	fmt.Printf("students join with: %s%s\n", CustomURLScheme, net.JoinHostPort(tube.OutgoingIP(), strconv.Itoa(port)))
	return nil
}

func join(ctx context.Context, log *logger.Logger, cfg config.Config, eng *session.Engine, hostport string) error {
	if hostport == "" {
		found, err := tube.Browse(ctx, 3*time.Second)
		if err != nil {
			return fmt.Errorf("browse: %w", err)
		}
		if len(found) == 0 {
			return errors.New("no session found on the local network")
		}
		hostport = found[0]
		log.Info("found session", "addr", hostport, "others", len(found)-1)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := tube.Dial(dialCtx, log, tube.SessionURL(hostport), cfg.Nick)
	if err != nil {
		return err
	}
	return eng.Join(ctx, client)
}

func restoreIndex(log *logger.Logger, cfg config.Config, deck *state.Deck) {
	meta, err := state.ReadMetadata(cfg.MetadataPath())
	if err != nil {
		log.Warn("metadata unreadable", "error", err)
		return
	}
	if meta.CurrentIndex > 0 {
		deck.GotoSlide(meta.CurrentIndex, false)
	}
}

func logDeckEvents(log *logger.Logger, ev *state.Events) {
	log = log.With("component", "view")
	ev.OnSlideChanged(func(i int) { log.Debug("slide changed", "index", i) })
	ev.OnRemoteInkAdded(func(p ink.Path) { log.Debug("instructor ink", "uid", p.UID) })
	ev.OnPathRemoved(func(uid uint32) { log.Debug("path removed", "uid", uid) })
	ev.OnSubmissionListChanged(func(pos int) {
		if pos >= 0 {
			log.Info("submission received", "position", pos)
		}
	})
	ev.OnDeckChanged(func() { log.Debug("deck reloaded") })
}
