// Package batch validates many models at once: decode, pose with the
// companion animation, skin, and sanity-check the result.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/flywave/go3d/vec3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/skeletor/internal/logger"
	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/math"
	"github.com/Faultbox/skeletor/pkg/skeleton"
)

// Status is the verdict for one model.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

// String returns the report label.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// DefaultHumanKeywords mark paths of character models whose height is checked.
var DefaultHumanKeywords = []string{
	"human", "pilot", "soldier", "german", "allied", "resistance", "manon",
}

// Options configures Validate.
type Options struct {
	// Workers bounds parallel files. Zero uses GOMAXPROCS.
	Workers int
	// Characters outside this standing height, in world units, get a warning.
	HumanHeightMin float32
	HumanHeightMax float32
	// HumanKeywords select which paths the height check applies to.
	HumanKeywords []string
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		HumanHeightMin: 50,
		HumanHeightMax: 90,
		HumanKeywords:  DefaultHumanKeywords,
	}
}

// Result is the outcome for one model file.
type Result struct {
	Path      string
	Animation string // companion .skc, empty if none was found
	Status    Status
	Messages  []string

	Bones     int
	Surfaces  int
	Vertices  int
	Triangles int
	// Bounds of the skinned vertices.
	Bounds vec3.Box
	Height float32
}

func (r *Result) fail(format string, args ...any) {
	r.Status = StatusFail
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	if r.Status < StatusWarn {
		r.Status = StatusWarn
	}
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Validate checks every model in paths, in parallel. Results keep the order
// of paths. The error is non-nil only when ctx is cancelled.
func Validate(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ValidateFile(path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ValidateFile checks one model.
func ValidateFile(path string, opts Options) Result {
	res := Result{Path: path}
	log := logger.With(zap.String("file", path))

	model, err := formats.ParseSKDFile(path)
	if err != nil {
		res.fail("decode: %v", err)
		log.Warn("model failed to decode", zap.Error(err))
		return res
	}
	for _, w := range model.Warnings {
		res.warn("model: %s", w)
	}

	res.Bones = len(model.Bones)
	res.Surfaces = len(model.Surfaces)
	res.Vertices = model.VertexCount()
	res.Triangles = model.TriangleCount()

	var frame *skeleton.FramePose
	if animPath := FindAnimation(path); animPath != "" {
		res.Animation = animPath
		anim, err := formats.ParseSKCFile(animPath)
		if err != nil {
			res.warn("animation %s: %v", filepath.Base(animPath), err)
		} else {
			for _, w := range anim.Warnings {
				res.warn("animation: %s", w)
			}
			frame = skeleton.FrameFromAnimation(anim, 0)
		}
	}

	pose := skeleton.Resolve(model.Bones, frame)
	for _, w := range pose.Warnings {
		res.warn("skeleton: %s", w)
	}

	if res.Vertices == 0 {
		res.fail("model has no vertices")
		return res
	}

	res.Bounds = bounds(skeleton.SkinModel(pose, model))
	res.Height = res.Bounds.Max[2] - res.Bounds.Min[2]

	if isHuman(path, opts.HumanKeywords) && (res.Height < opts.HumanHeightMin || res.Height > opts.HumanHeightMax) {
		res.warn("character height %.1f outside [%.0f, %.0f]", res.Height, opts.HumanHeightMin, opts.HumanHeightMax)
	}

	log.Debug("model validated",
		zap.Stringer("status", res.Status),
		zap.Int("vertices", res.Vertices),
		zap.Float32("height", res.Height),
	)
	return res
}

func bounds(surfaces [][]math.Vec3) vec3.Box {
	var box vec3.Box
	first := true
	for _, verts := range surfaces {
		for _, v := range verts {
			p := vec3.T{v.X, v.Y, v.Z}
			if first {
				box = vec3.Box{Min: p, Max: p}
				first = false
				continue
			}
			box.Min = vec3.Min(&box.Min, &p)
			box.Max = vec3.Max(&box.Max, &p)
		}
	}
	return box
}

func isHuman(path string, keywords []string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// FindAnimation returns the companion animation of a model: a .skc with
// the same base name beside it, or <dir>/<name>/<name>.skc. Empty if neither exists.
func FindAnimation(skdPath string) string {
	dir := filepath.Dir(skdPath)
	name := strings.TrimSuffix(filepath.Base(skdPath), filepath.Ext(skdPath))

	candidates := []string{
		filepath.Join(dir, name+".skc"),
		filepath.Join(dir, name+".SKC"),
		filepath.Join(dir, name, name+".skc"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Collect walks root and returns every .skd file beneath it, sorted.
func Collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".skd") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting models under %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Summary counts results by status.
type Summary struct {
	Pass, Warn, Fail int
}

// Total returns the number of results counted.
func (s Summary) Total() int { return s.Pass + s.Warn + s.Fail }

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Pass++
		case StatusWarn:
			s.Warn++
		default:
			s.Fail++
		}
	}
	return s
}
