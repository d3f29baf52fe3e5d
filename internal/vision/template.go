package vision

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/gift"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultThreshold is the minimum correlation accepted when neither the
// control nor the "default" key carries an override. 0.65 tolerates the
// rendering noise of the worst control (the retweet arrows).
const DefaultThreshold float32 = 0.65

// Template is one loaded reference image. Immutable after load; the Mat
// lives until Close.
type Template struct {
	Name      string
	Threshold float32

	mat  gocv.Mat
	gray bool
}

// Size reports the template dimensions after any profile rescale.
func (t *Template) Size() image.Point {
	return image.Point{X: t.mat.Cols(), Y: t.mat.Rows()}
}

func (t *Template) Close() {
	t.mat.Close()
}

// LoadOptions tune template loading for one device profile.
type LoadOptions struct {
	// Per-control thresholds; the "default" key covers the rest.
	Thresholds map[string]float32
	// Rescale factor for templates captured on the reference screen.
	// Zero or one means no rescale.
	Scale float64
	// Convert templates (and later every frame) to grayscale.
	Grayscale bool

	Logger *zap.Logger
}

// Registry holds the loaded templates and the locator that matches them.
type Registry struct {
	templates map[string]*Template
	locator   *Locator
	log       *zap.Logger
}

// LoadTemplates reads every template_<control>.png in dir. Other files
// are ignored so the directory can hold notes and reference screenshots.
func LoadTemplates(dir string, opts LoadOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "vision"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	templates := make(map[string]*Template)
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(fname, "template_") || !strings.HasSuffix(fname, ".png") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(fname, "template_"), ".png")

		mat, err := loadTemplateMat(filepath.Join(dir, fname), opts.Scale, opts.Grayscale)
		if err != nil {
			closeAll(templates)
			return nil, fmt.Errorf("template %s: %w", name, err)
		}

		threshold, ok := opts.Thresholds[name]
		if !ok {
			threshold, ok = opts.Thresholds["default"]
		}
		if !ok {
			threshold = DefaultThreshold
		}

		templates[name] = &Template{
			Name:      name,
			Threshold: threshold,
			mat:       mat,
			gray:      opts.Grayscale,
		}
		log.Debug("template loaded",
			zap.String("control", name),
			zap.Int("width", mat.Cols()),
			zap.Int("height", mat.Rows()),
			zap.Float32("threshold", threshold))
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no template_*.png files in %s", dir)
	}

	return &Registry{
		templates: templates,
		locator:   NewLocator(logger),
		log:       log,
	}, nil
}

func loadTemplateMat(path string, scale float64, grayscale bool) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}

	if scale > 0 && scale != 1 {
		b := img.Bounds()
		w := int(math.Round(float64(b.Dx()) * scale))
		h := int(math.Round(float64(b.Dy()) * scale))
		g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
		dst := image.NewRGBA(g.Bounds(b))
		g.Draw(dst, img)
		img = dst
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	if grayscale {
		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)
		mat.Close()
		mat = gray
	}
	return mat, nil
}

func closeAll(templates map[string]*Template) {
	for _, t := range templates {
		t.Close()
	}
}

// Get returns the template for a control name.
func (r *Registry) Get(name string) (*Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Names lists the loaded controls, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Locate matches a named control against the frame.
func (r *Registry) Locate(frame gocv.Mat, control string, policy Policy) (Result, error) {
	t, ok := r.templates[control]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownControl, control)
	}
	return r.locator.Locate(frame, t, policy)
}

// Close releases every template Mat.
func (r *Registry) Close() {
	closeAll(r.templates)
}
