package main

import (
	"context"
	"flag"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/assets"
	"github.com/hellhand/vkmesh/internal/config"
	"github.com/hellhand/vkmesh/internal/gpu/vkbackend"
	"github.com/hellhand/vkmesh/internal/platform"
	"github.com/hellhand/vkmesh/internal/renderer"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("config", slog.Any("err", err))
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	if err := run(cfg, log); err != nil {
		log.Error("vkmesh failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	bundle, err := assets.Load(context.Background(), cfg.ShaderDir, cfg.Texture)
	if err != nil {
		return err
	}

	win, err := platform.OpenWindow(platform.WindowConfig{Width: cfg.Width, Height: cfg.Height, Title: cfg.Title}, log)
	if err != nil {
		return err
	}
	defer win.Close()

	inst, err := vkbackend.NewInstance(vkbackend.Config{
		AppName:    cfg.Title,
		ProcAddr:   platform.InstanceProcAddr(),
		Validation: cfg.Validation,
	}, win, log)
	if err != nil {
		return err
	}
	defer inst.Destroy()

	r, err := renderer.New(inst, win, bundle, log)
	if err != nil {
		return err
	}
	defer r.Close()

	log.Info("entering main loop", slog.Bool("validation", cfg.Validation))
	for !win.ShouldClose() {
		for _, ev := range win.Poll() {
			if r.HandleEvent(ev) {
				return nil
			}
		}
		if err := r.DrawFrame(); err != nil {
			return errors.Wrap(err, "draw frame")
		}
	}
	log.Info("window closed", slog.Uint64("frames", r.Frames()))
	return nil
}
