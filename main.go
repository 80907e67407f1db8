package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gg"

	"DrawingTransformer/internal/backend"
	"DrawingTransformer/internal/config"
	"DrawingTransformer/internal/logging"
	dtnet "DrawingTransformer/internal/net"
	"DrawingTransformer/internal/pipeline"
	"DrawingTransformer/internal/state"
	"DrawingTransformer/internal/transform"
	"DrawingTransformer/internal/ui"
)

const usage = `usage: drawingtransformer [command] [flags]

commands:
  gui       open the drawing window and serve the session (default)
  serve     serve a session over HTTP and websockets without a window
  backend   run the describe/generate REST backend
  discover  list session servers on the local network
  transform describe an image file and save the generated artwork
            (drawingtransformer transform <image> [-out dir])
`

func main() {
	cmd, args := "gui", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage, "\nflags:\n")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to a TOML config file")
	listen := fs.String("listen", "", "session server address (overrides config)")
	backendListen := fs.String("backend-listen", "", "backend address (overrides config)")
	advertise := fs.Bool("advertise", false, "announce the session server over mDNS")
	verbose := fs.Bool("v", false, "debug logging")
	browseFor := fs.Duration("timeout", 3*time.Second, "discover: how long to listen for announcements")
	outDir := fs.String("out", "images", "transform: directory for description.txt and generated_image.png")
	// Operands and flags may be interleaved: transform photo.png -out art
	var operands []string
	fs.Parse(args)
	for fs.NArg() > 0 {
		operands = append(operands, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *backendListen != "" {
		cfg.Backend.Listen = *backendListen
	}
	cfg.Advertise = cfg.Advertise || *advertise
	cfg.Verbose = cfg.Verbose || *verbose

	logger := logging.NewText(os.Stderr, cfg.Verbose)
	logging.SetLogger(logger)
	gg.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "gui":
		err = runGUI(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	case "backend":
		err = runBackend(ctx, cfg)
	case "discover":
		err = runDiscover(*browseFor)
	case "transform":
		if len(operands) != 1 {
			fs.Usage()
			os.Exit(2)
		}
		err = runTransform(ctx, cfg, operands[0], *outDir)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func newSession(cfg config.Config) (*pipeline.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	svc, err := transform.New(cfg.Service)
	if err != nil {
		return nil, err
	}
	canvas := state.NewCanvas(&state.Rasterizer{
		BaseSize:   cfg.Canvas.BaseSize,
		Scale:      cfg.Canvas.Scale,
		Background: state.White,
	})
	canvas.SetColor(cfg.Canvas.Color)
	if err := canvas.SetWidth(cfg.Canvas.Width); err != nil {
		return nil, err
	}
	log.Printf("Transformation service: %s %s", cfg.Service.Provider, cfg.Service.BaseURL)
	return pipeline.NewSession(canvas, state.NewSource(cfg.Upload.MaxBytes), pipeline.NewController(svc)), nil
}

// startServer serves session in the background and returns its share URL.
func startServer(ctx context.Context, cfg config.Config, session *pipeline.Session) (string, func(), error) {
	srv := dtnet.NewServer(session)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
			log.Printf("Session server stopped: %v", err)
		}
	}()

	shareURL, err := dtnet.ShareURL(cfg.Listen)
	if err != nil {
		srv.Close()
		return "", nil, err
	}
	log.Printf("Session %s listening on %s", srv.ID, shareURL)

	cleanup := srv.Close
	if cfg.Advertise {
		port, err := dtnet.ListenPort(cfg.Listen)
		if err != nil {
			srv.Close()
			return "", nil, err
		}
		md, err := dtnet.Advertise(srv.ID, port)
		if err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		} else {
			cleanup = func() {
				md.Shutdown()
				srv.Close()
			}
		}
	}
	return shareURL, cleanup, nil
}

func runGUI(ctx context.Context, cfg config.Config) error {
	log.Println("Starting drawing window")
	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	shareURL, cleanup, err := startServer(ctx, cfg, session)
	if err != nil {
		return err
	}
	defer cleanup()

	ui.RunApp(session, cfg.Canvas.BaseSize, shareURL)
	return nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	log.Println("Starting headless session server")
	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	_, cleanup, err := startServer(ctx, cfg, session)
	if err != nil {
		return err
	}
	defer cleanup()

	<-ctx.Done()
	log.Println("Shutting down")
	return nil
}

func runBackend(ctx context.Context, cfg config.Config) error {
	if cfg.Service.Provider == config.ProviderHTTP {
		return fmt.Errorf("the backend calls the AI service directly; set service.provider to %q or %q",
			config.ProviderOpenAI, config.ProviderAzure)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	svc, err := transform.New(cfg.Service)
	if err != nil {
		return err
	}
	log.Printf("Backend listening on %s (%s)", cfg.Backend.Listen, cfg.Service.Provider)
	return backend.NewServer(svc, cfg.Upload.MaxBytes).ListenAndServe(ctx, cfg.Backend.Listen)
}

func runDiscover(timeout time.Duration) error {
	log.Printf("Looking for sessions for %s...", timeout)
	found := 0
	err := dtnet.Browse(timeout, func(a dtnet.Announcement) {
		found++
		fmt.Printf("%s\thttp://%s\tsession=%s\n", a.Instance, a.Addr, a.SessionID)
	})
	if err != nil {
		return err
	}
	if found == 0 {
		log.Println("No sessions found")
	}
	return nil
}
