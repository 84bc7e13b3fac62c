// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all viewer settings.
type Config struct {
	Window      WindowConfig     `yaml:"window"`
	Scene       SceneConfig      `yaml:"scene"`
	Asset       AssetConfig      `yaml:"asset"`
	Camera      CameraConfig     `yaml:"camera"`
	Panel       PanelConfig      `yaml:"panel"`
	Logging     LoggingConfig    `yaml:"logging"`
	Screenshots ScreenshotConfig `yaml:"screenshots"`

	file string
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title    string  `yaml:"title"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FontPath string  `yaml:"font_path"` // empty searches the usual system fonts
	FontSize float32 `yaml:"font_size"`
}

// SceneConfig holds camera projection, lighting and ground settings.
type SceneConfig struct {
	FOV        float32 `yaml:"fov"` // degrees
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
	ClearColor string  `yaml:"clear_color"` // "#rrggbb"

	AmbientIntensity     float32    `yaml:"ambient_intensity"`
	DirectionalIntensity float32    `yaml:"directional_intensity"`
	DirectionalPosition  [3]float32 `yaml:"directional_position"`

	Shadow ShadowConfig `yaml:"shadow"`
	Ground GroundConfig `yaml:"ground"`
}

// ShadowConfig describes the directional light's orthographic shadow camera.
type ShadowConfig struct {
	Left    float32 `yaml:"left"`
	Right   float32 `yaml:"right"`
	Top     float32 `yaml:"top"`
	Bottom  float32 `yaml:"bottom"`
	Near    float32 `yaml:"near"`
	Far     float32 `yaml:"far"`
	MapSize int32   `yaml:"map_size"`
}

// GroundConfig describes the shadow-receiving plane under the model.
type GroundConfig struct {
	Width         float32 `yaml:"width"`
	Depth         float32 `yaml:"depth"`
	Y             float32 `yaml:"y"`
	ShadowOpacity float32 `yaml:"shadow_opacity"`
}

// AssetConfig holds the model source.
type AssetConfig struct {
	Path         string        `yaml:"path"` // file path or http(s) URL
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// CameraConfig holds orbit control settings.
type CameraConfig struct {
	EnableDamping bool    `yaml:"enable_damping"`
	DampingFactor float32 `yaml:"damping_factor"`
	RotateSpeed   float32 `yaml:"rotate_speed"`
	ZoomSpeed     float32 `yaml:"zoom_speed"`
}

// PanelConfig holds debug panel limits.
type PanelConfig struct {
	SpeedMin float32 `yaml:"speed_min"`
	SpeedMax float32 `yaml:"speed_max"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ScreenshotConfig holds screenshot output settings.
type ScreenshotConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a Config with the stock viewer values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:    "glbview",
			Width:    1280,
			Height:   720,
			FontSize: 16,
		},
		Scene: SceneConfig{
			FOV:                  75,
			Near:                 0.01,
			Far:                  1000,
			ClearColor:           "#ffffff",
			AmbientIntensity:     0.5,
			DirectionalIntensity: 0.5,
			DirectionalPosition:  [3]float32{0, 10, 5},
			Shadow: ShadowConfig{
				Left:    -10,
				Right:   10,
				Top:     10,
				Bottom:  -10,
				Near:    0.1,
				Far:     50,
				MapSize: 1024,
			},
			Ground: GroundConfig{
				Width:         10,
				Depth:         20,
				Y:             -1,
				ShadowOpacity: 0.5,
			},
		},
		Asset: AssetConfig{
			Path:         "aatrox.glb",
			FetchTimeout: 30 * time.Second,
		},
		Camera: CameraConfig{
			EnableDamping: true,
			DampingFactor: 0.05,
			RotateSpeed:   1.0,
			ZoomSpeed:     1.0,
		},
		Panel: PanelConfig{
			SpeedMin: 0.1,
			SpeedMax: 2.0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Screenshots: ScreenshotConfig{
			Dir: "screenshots",
		},
	}
}

// Validate reports the first setting that would make the viewer unusable.
func (c *Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	case c.Window.FontSize <= 0:
		return fmt.Errorf("font size must be positive, got %g", c.Window.FontSize)
	case c.Scene.FOV <= 0 || c.Scene.FOV >= 180:
		return fmt.Errorf("fov must be in (0, 180), got %g", c.Scene.FOV)
	case c.Scene.Near <= 0 || c.Scene.Far <= c.Scene.Near:
		return fmt.Errorf("invalid clip planes near=%g far=%g", c.Scene.Near, c.Scene.Far)
	case c.Scene.Shadow.MapSize <= 0:
		return fmt.Errorf("shadow map size must be positive, got %d", c.Scene.Shadow.MapSize)
	case c.Scene.Ground.Width <= 0 || c.Scene.Ground.Depth <= 0:
		return errors.New("ground size must be positive")
	case c.Panel.SpeedMin <= 0 || c.Panel.SpeedMax < c.Panel.SpeedMin:
		return fmt.Errorf("invalid speed range [%g, %g]", c.Panel.SpeedMin, c.Panel.SpeedMax)
	case c.Camera.DampingFactor < 0 || c.Camera.DampingFactor > 1:
		return fmt.Errorf("damping factor must be in [0, 1], got %g", c.Camera.DampingFactor)
	case c.Camera.EnableDamping && c.Camera.DampingFactor == 0:
		return errors.New("damping factor must be above 0 when damping is enabled")
	}
	if _, err := ParseColor(c.Scene.ClearColor); err != nil {
		return fmt.Errorf("clear_color: %w", err)
	}
	return nil
}

// ParseColor converts "#rrggbb" (or "rrggbb", "0xrrggbb") to linear 0-1 RGB.
func ParseColor(s string) ([3]float32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	if len(hex) != 6 {
		return [3]float32{}, fmt.Errorf("color %q: expected 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return [3]float32{}, fmt.Errorf("color %q: %w", s, err)
	}
	return [3]float32{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}
