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
	"syscall"

	"glidernav/internal/config"
	"glidernav/internal/magcal"
	"glidernav/internal/realtime"
	"glidernav/internal/replay"
	"glidernav/internal/serialport"
	"glidernav/internal/udp"
	"glidernav/internal/web"
)

func main() {
	var configPath, summaryPath string
	flag.StringVar(&configPath, "config", "./glidernav.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "log-summary", "", "Print a summary of a tick log and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("log summary failed: %v", err)
		}
		return
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := realtime.Apply(cfg.RealtimeOptions()); err != nil {
		// Keep running without real-time settings.
		log.Printf("realtime setup failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logs); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	status := web.NewStatus()
	hub := web.NewHub()

	p, err := newPipeline(cfg, magcal.FileStore{Path: cfg.Calibration.Path}, status, hub)
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}

	var outputs []string
	if cfg.Output.UDPDest != "" {
		b, err := udp.NewBroadcaster(cfg.Output.UDPDest)
		if err != nil {
			return fmt.Errorf("udp output init failed: %w", err)
		}
		defer b.Close()
		p.addOutput("udp:"+b.Dest(), b)
		outputs = append(outputs, "udp:"+b.Dest())
	}
	if cfg.Output.SerialDevice != "" {
		sp, err := serialport.Open(cfg.Output.SerialDevice, cfg.Output.SerialBaud)
		if err != nil {
			return fmt.Errorf("serial output init failed: %w", err)
		}
		defer sp.Close()
		p.addOutput("serial:"+sp.Device(), sp)
		outputs = append(outputs, "serial:"+sp.Device())
	}

	src, desc, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("source init failed: %w", err)
	}

	session := ""
	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record init failed: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("record close failed: %v", err)
			}
		}()
		p.rec = w
		session = w.Session().String()
		log.Printf("recording ticks to %s session=%s", cfg.Record.Path, session)
	}
	status.SetStatic(cfg.Source.Kind, session, outputs)

	if cfg.Web.Listen != "" {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, hub, logs))
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
		log.Printf("web listening on %s", cfg.Web.Listen)
	}

	log.Printf("glidernav starting source=%q sample_period=%s nmea_interval=%s outputs=%v",
		desc, cfg.SamplePeriod, cfg.Output.NMEAInterval, outputs)

	err = src(ctx, p.handle)
	switch {
	case err == nil:
		log.Printf("source finished after %d ticks (t=%s heading=%.1f)", p.ticks, p.elapsed(), p.heading())
		return nil
	case errors.Is(err, context.Canceled):
		log.Printf("glidernav stopping after %d ticks", p.ticks)
		return nil
	default:
		return fmt.Errorf("source failed: %w", err)
	}
}
