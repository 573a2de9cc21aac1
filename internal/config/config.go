// Package config gathers run settings from flags and the environment.
package config

import (
	"flag"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// ValidationEnv toggles the validation layers unless a flag overrides it.
const ValidationEnv = "VK_VALIDATION"

type Config struct {
	Width      int
	Height     int
	Title      string
	ShaderDir  string
	Texture    string
	Validation bool
	Verbose    bool
}

func Default() Config {
	return Config{
		Width:      800,
		Height:     600,
		Title:      "vkmesh",
		ShaderDir:  "shaders",
		Texture:    "textures/lunarg.ppm",
		Validation: true,
	}
}

// Load parses args (without the program name) on top of Default. getenv is
// consulted for ValidationEnv; an explicit -validation flag wins.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	cfg := Default()
	cfg.Validation = validationFromEnv(getenv(ValidationEnv))

	fs := flag.NewFlagSet("vkmesh", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&cfg.Width, "width", cfg.Width, "initial window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "initial window height")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	fs.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory holding vert.spv and frag.spv")
	fs.StringVar(&cfg.Texture, "texture", cfg.Texture, "texture image (ppm, png, jpeg, gif, bmp, tiff, webp)")
	fs.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable Vulkan validation layers (default from "+ValidationEnv+")")
	fs.BoolVar(&cfg.Verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}
	if fs.NArg() > 0 {
		return Config{}, errors.Newf("unexpected arguments %q", fs.Args())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Unset or anything but an explicit false enables validation.
func validationFromEnv(v string) bool {
	switch v {
	case "0", "false", "False", "FALSE":
		return false
	}
	return true
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.ShaderDir == "" {
		return errors.New("shader directory is empty")
	}
	if c.Texture == "" {
		return errors.New("texture path is empty")
	}
	return nil
}

func (c Config) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
