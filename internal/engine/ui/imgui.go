// Package ui hosts the window: the ImGui SDL backend owns the window, the GL
// context and the frame loop, and the rendered scene is shown behind the
// ImGui windows.
package ui

import (
	"fmt"
	"os"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/config"
	"github.com/Faultbox/glbview/internal/logger"
)

// uiGlyphRanges covers Latin text plus the ellipsis used in button labels.
// Format: pairs of [start, end] values terminated by 0.
var uiGlyphRanges = []imgui.Wchar{
	0x0020, 0x00FF, // Basic Latin + Latin Supplement
	0x2026, 0x2026, // Horizontal ellipsis
	0,
}

// fontPaths are tried in order when no font is configured.
var fontPaths = []string{
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:\\Windows\\Fonts\\segoeui.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

// Pointer is the orbit input gathered over the scene this frame.
type Pointer struct {
	DX, DY float32 // drag in window units
	Wheel  float32
}

// Host wraps the ImGui SDL backend.
type Host struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	cfg     config.WindowConfig

	width, height int
	onResize      func(width, height int)

	lastMouse imgui.Vec2
	hovered   bool
	pointer   Pointer
}

// NewHost creates the window and its GL context.
func NewHost(cfg config.WindowConfig) (*Host, error) {
	h := &Host{
		cfg:    cfg,
		width:  cfg.Width,
		height: cfg.Height,
	}

	var err error
	h.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	// Fonts must be added right after the ImGui context exists.
	h.backend.SetAfterCreateContextHook(h.loadFont)

	h.backend.SetBgColor(imgui.NewVec4(1, 1, 1, 1))
	h.backend.CreateWindow(cfg.Title, cfg.Width, cfg.Height)

	logger.Info("window created",
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return h, nil
}

// findFont returns the configured font, or the first system font found.
func findFont(configured string, candidates []string) (string, bool) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, true
		}
		logger.Warn("configured font not found", zap.String("path", configured))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func (h *Host) loadFont() {
	path, ok := findFont(h.cfg.FontPath, fontPaths)
	if !ok {
		logger.Debug("no UI font found, using the ImGui default")
		return
	}

	fontCfg := imgui.NewFontConfig()
	defer fontCfg.Destroy()

	fonts := imgui.CurrentIO().Fonts()
	if font := fonts.AddFontFromFileTTFV(path, h.cfg.FontSize, fontCfg, &uiGlyphRanges[0]); font == nil {
		logger.Warn("failed to load UI font", zap.String("path", path))
		return
	}
	logger.Debug("loaded UI font", zap.String("path", path))
}

// OnResize registers fn to be called on the frame thread whenever the
// window size changes.
func (h *Host) OnResize(fn func(width, height int)) {
	h.onResize = fn
}

// Size returns the window size in window units.
func (h *Host) Size() (int, int) {
	return h.width, h.height
}

// PixelRatio returns framebuffer pixels per window unit.
func (h *Host) PixelRatio() float32 {
	s := imgui.CurrentIO().DisplayFramebufferScale()
	if s.X <= 0 {
		return 1
	}
	return s.X
}

// Run starts the frame loop. frame is called once per display refresh.
func (h *Host) Run(frame func()) {
	h.backend.Run(func() {
		h.trackSize()
		frame()
	})
}

// trackSize reports display size changes. SDL resizes land here on the next
// frame.
func (h *Host) trackSize() {
	ds := imgui.CurrentIO().DisplaySize()
	w, hh := int(ds.X), int(ds.Y)
	if w <= 0 || hh <= 0 || (w == h.width && hh == h.height) {
		return
	}
	h.width, h.height = w, hh
	logger.Debug("window resized", zap.Int("width", w), zap.Int("height", hh))
	if h.onResize != nil {
		h.onResize(w, hh)
	}
}

// SetWindowTitle updates the window title.
func (h *Host) SetWindowTitle(title string) {
	h.backend.SetWindowTitle(title)
}

// DrawScene fills the window with texture textureID behind every other ImGui
// window and collects pointer input over it.
func (h *Host) DrawScene(textureID uint32) Pointer {
	h.pointer = Pointer{}

	vp := imgui.MainViewport()
	imgui.SetNextWindowPos(vp.WorkPos())
	imgui.SetNextWindowSize(vp.WorkSize())

	flags := imgui.WindowFlagsNoTitleBar | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoMove |
		imgui.WindowFlagsNoScrollbar | imgui.WindowFlagsNoScrollWithMouse | imgui.WindowFlagsNoCollapse |
		imgui.WindowFlagsNoBringToFrontOnFocus | imgui.WindowFlagsNoSavedSettings
	imgui.PushStyleVarVec2(imgui.StyleVarWindowPadding, imgui.NewVec2(0, 0))
	imgui.PushStyleVarFloat(imgui.StyleVarWindowBorderSize, 0)
	imgui.PushStyleVarFloat(imgui.StyleVarWindowRounding, 0)

	if imgui.BeginV("##SceneBackground", nil, flags) {
		texRef := imgui.NewTextureRefTextureID(imgui.TextureID(textureID))
		imgui.ImageWithBgV(
			*texRef,
			vp.WorkSize(),
			imgui.NewVec2(0, 1), // GL textures are bottom-up
			imgui.NewVec2(1, 0),
			imgui.NewVec4(1, 1, 1, 1),
			imgui.NewVec4(1, 1, 1, 1),
		)

		hovered := imgui.IsItemHovered()
		if hovered {
			mousePos := imgui.MousePos()
			if h.hovered && imgui.IsMouseDragging(imgui.MouseButtonLeft) {
				h.pointer.DX = mousePos.X - h.lastMouse.X
				h.pointer.DY = mousePos.Y - h.lastMouse.Y
			}
			h.lastMouse = mousePos
			h.pointer.Wheel = imgui.CurrentIO().MouseWheel()
		}
		h.hovered = hovered
	}
	imgui.End()
	imgui.PopStyleVar()
	imgui.PopStyleVar()
	imgui.PopStyleVar()

	return h.pointer
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}
