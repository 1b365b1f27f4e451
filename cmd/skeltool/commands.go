package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/skeletor/internal/batch"
	"github.com/Faultbox/skeletor/internal/config"
	"github.com/Faultbox/skeletor/internal/logger"
	"github.com/Faultbox/skeletor/pkg/export"
	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/skeleton"
	"github.com/Faultbox/skeletor/pkg/texture"
)

func isAnimation(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".skc")
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool info <file.skd|file.skc>")
		os.Exit(1)
	}

	path := args[0]
	if isAnimation(path) {
		printAnimationInfo(path, loadAnimation(path))
		return
	}
	printModelInfo(path, loadModel(path))
}

func printModelInfo(path string, m *formats.SKD) {
	fmt.Printf("Model: %s\n", path)
	fmt.Printf("Name: %s\n", m.Name)
	fmt.Printf("Version: %d", m.Version)
	if m.Legacy {
		fmt.Print(" (legacy bones)")
	}
	fmt.Println()
	fmt.Printf("Scale: %g\n", m.Scale)
	fmt.Printf("Surfaces: %d\n", len(m.Surfaces))
	fmt.Printf("Vertices: %d\n", m.VertexCount())
	fmt.Printf("Triangles: %d\n", m.TriangleCount())
	fmt.Printf("Hit boxes: %d\n", len(m.HitBoxes))
	fmt.Printf("Morph targets: %d\n", len(m.MorphTargets))

	fmt.Println("\nSurfaces:")
	for _, s := range m.Surfaces {
		fmt.Printf("  %-24s %6d verts %6d tris\n", s.Name, len(s.Vertices), len(s.Triangles))
	}

	fmt.Printf("\nBones (%d):\n", len(m.Bones))
	for i, b := range m.Bones {
		parent := b.Parent
		if b.IsRoot() {
			parent = "-"
		}
		fmt.Printf("  %3d %-24s %-24s %-12s (%g, %g, %g)\n",
			i, b.Name, parent, b.Type, b.Offset[0], b.Offset[1], b.Offset[2])
	}

	printWarnings(m.Warnings)
}

func printAnimationInfo(path string, a *formats.SKC) {
	fmt.Printf("Animation: %s\n", path)
	fmt.Printf("Version: %d\n", a.Header.Version)
	if a.Filename != "" {
		fmt.Printf("Source: %s\n", a.Filename)
	}
	fmt.Printf("Flags: 0x%x\n", int32(a.Header.Flags))
	fmt.Printf("Frames: %d\n", a.NumFrames())
	fmt.Printf("FPS: %g\n", a.FPS())
	fmt.Printf("Duration: %.3fs\n", a.Duration())

	fmt.Printf("\nChannels (%d):\n", a.NumChannels())
	for i, c := range a.Channels {
		fmt.Printf("  %3d %-32s %s\n", i, c.Name, c.Kind)
	}

	printWarnings(a.Warnings)
}

func printWarnings(ws formats.Warnings) {
	if len(ws) == 0 {
		return
	}
	fmt.Printf("\nWarnings (%d):\n", len(ws))
	for _, w := range ws {
		fmt.Printf("  %s\n", w)
	}
}

// animationFor returns the explicit animation path, or the companion file next
// to the model.
func animationFor(model, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return batch.FindAnimation(model)
}

func cmdDumpRest(args []string) {
	fs := flag.NewFlagSet("dump-rest", flag.ExitOnError)
	verts := fs.Bool("verts", false, "Also print rest-pose vertex positions")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool dump-rest [-verts] <file.skd> [file.skc]")
		os.Exit(1)
	}

	m := loadModel(fs.Arg(0))
	rest := skeleton.ResolveTranslationOnly(m.Bones)
	logWarnings(fs.Arg(0), rest.Warnings)

	var posed *skeleton.Pose
	if path := animationFor(fs.Arg(0), fs.Arg(1)); path != "" {
		a := loadAnimation(path)
		if frame := skeleton.FrameFromAnimation(a, 0); frame != nil {
			posed = skeleton.Resolve(m.Bones, frame)
			fmt.Printf("Animation: %s (frame 0)\n", path)
		}
	}

	fmt.Printf("%-4s %-24s %-8s %-30s %-30s", "#", "Bone", "Parent", "Offset", "Rest")
	if posed != nil {
		fmt.Printf(" %-30s", "Frame 0")
	}
	fmt.Println()

	for i, b := range m.Bones {
		p, _ := rest.Position(i)
		fmt.Printf("%-4d %-24s %-8d %-30s %-30s", i, b.Name, rest.Parents[i],
			fmtVec(b.Offset), fmtVec(p.Array()))
		if posed != nil {
			q, _ := posed.Position(i)
			fmt.Printf(" %-30s", fmtVec(q.Array()))
		}
		fmt.Println()
	}

	if *verts {
		for si, surface := range skeleton.WorldVertices(m, rest) {
			fmt.Printf("\nSurface %s:\n", m.Surfaces[si].Name)
			for vi, v := range surface {
				fmt.Printf("  %5d %s\n", vi, fmtVec(v.Array()))
			}
		}
	}
}

func fmtVec(v [3]float32) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2])
}

func cmdReconcile(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: <name>_reconciled.skd)")
	version := fs.Int("version", int(cfg.Import.SKDVersion), "SKD version to write (5 or 6)")
	dryRun := fs.Bool("n", false, "Report shifts without writing")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool reconcile [-o out.skd] [-version n] [-n] <file.skd> [file.skc]")
		os.Exit(1)
	}

	modelPath := fs.Arg(0)
	animPath := animationFor(modelPath, fs.Arg(1))
	if animPath == "" {
		fatalf("no animation found for %s", modelPath)
	}

	m := loadModel(modelPath)
	a := loadAnimation(animPath)

	rec, err := skeleton.Reconcile(m, a)
	if err != nil {
		fatalf("%v", err)
	}
	logWarnings(modelPath, rec.Warnings)

	logger.Info("reconciled",
		zap.String("model", modelPath),
		zap.String("animation", animPath),
		zap.Int("bones_changed", rec.BonesChanged),
		zap.Int("weights_adjusted", rec.WeightsAdjusted),
		zap.Float32("max_shift", rec.MaxShift),
	)

	fmt.Printf("Bones changed: %d of %d\n", rec.BonesChanged, len(m.Bones))
	fmt.Printf("Weights adjusted: %d\n", rec.WeightsAdjusted)
	fmt.Printf("Max shift: %.4f\n", rec.MaxShift)

	if *dryRun {
		return
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + "_reconciled.skd"
	}
	if err := m.WriteFile(out, int32(*version)); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s\n", out)
}

func cmdConvert(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	version := fs.Int("version", 0, "Version to write (default from config)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool convert [-version n] <in> <out>")
		os.Exit(1)
	}

	in, out := fs.Arg(0), fs.Arg(1)
	v := int32(*version)

	var err error
	if isAnimation(in) {
		if v == 0 {
			v = cfg.Import.SKCVersion
		}
		err = loadAnimation(in).WriteFile(out, v)
	} else {
		if v == 0 {
			v = cfg.Import.SKDVersion
		}
		err = loadModel(in).WriteFile(out, v)
	}
	if err != nil {
		fatalf("%v", err)
	}

	logger.Info("converted", zap.String("in", in), zap.String("out", out), zap.Int32("version", v))
	fmt.Printf("Wrote %s (version %d)\n", out, v)
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: <name>.glb or .gltf)")
	anim := fs.String("anim", "", "Pose with frame 0 of this animation")
	reconcile := fs.Bool("reconcile", cfg.Import.Reconcile, "Reconcile with the animation before export")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool export [-o out] [-anim file.skc] [-reconcile] <file.skd>")
		os.Exit(1)
	}

	modelPath := fs.Arg(0)
	m := loadModel(modelPath)

	opts := export.Options{
		Scale:  cfg.Import.Scale,
		FlipV:  cfg.Export.FlipV,
		Binary: cfg.Export.Binary,

		EmbedTextures:  cfg.Textures.Embed,
		TextureRoot:    cfg.Textures.Root,
		MaxTextureSize: cfg.Textures.MaxSize,
	}
	var exportWarnings formats.Warnings
	opts.Warnings = &exportWarnings
	if cfg.Textures.Table != "" {
		table, err := texture.LoadTable(cfg.Textures.Table)
		if err != nil {
			fatalf("%v", err)
		}
		opts.Textures = table
	}

	var pose *skeleton.Pose
	animPath := *anim
	if animPath == "" && *reconcile {
		animPath = batch.FindAnimation(modelPath)
	}
	if animPath != "" {
		a := loadAnimation(animPath)
		if *reconcile {
			rec, err := skeleton.Reconcile(m, a)
			if err != nil {
				fatalf("%v", err)
			}
			logWarnings(modelPath, rec.Warnings)
		} else if frame := skeleton.FrameFromAnimation(a, 0); frame != nil {
			pose = skeleton.Resolve(m.Bones, frame)
			logWarnings(modelPath, pose.Warnings)
		}
	}

	out := *output
	if out == "" {
		ext := ".glb"
		if !opts.Binary {
			ext = ".gltf"
		}
		out = strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ext
	}

	f, err := os.Create(out)
	if err != nil {
		fatalf("%v", err)
	}
	err = export.WriteGLTF(f, m, pose, opts)
	logWarnings(modelPath, exportWarnings)
	if err != nil {
		f.Close()
		fatalf("%v", err)
	}
	if err := f.Close(); err != nil {
		fatalf("%v", err)
	}

	logger.Info("exported", zap.String("model", modelPath), zap.String("out", out))
	fmt.Printf("Wrote %s\n", out)
}

func cmdValidate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Print messages for passing files too")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: skeltool validate [-v] <dir|file.skd>...")
		os.Exit(1)
	}

	var paths []string
	for _, arg := range fs.Args() {
		info, err := os.Stat(arg)
		if err != nil {
			fatalf("%v", err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := batch.Collect(arg)
		if err != nil {
			fatalf("%v", err)
		}
		paths = append(paths, found...)
	}

	opts := batch.Options{
		Workers:        cfg.Validate.Workers,
		HumanHeightMin: cfg.Validate.HumanHeightMin,
		HumanHeightMax: cfg.Validate.HumanHeightMax,
		HumanKeywords:  cfg.Validate.HumanKeywords,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := batch.Validate(ctx, paths, opts)
	if err != nil {
		fatalf("%v", err)
	}

	for _, r := range results {
		fmt.Printf("%-4s %-48s %4d bones %6d verts  height %7.2f\n",
			r.Status, r.Path, r.Bones, r.Vertices, r.Height)
		if r.Status != batch.StatusPass || *verbose {
			for _, msg := range r.Messages {
				fmt.Printf("       %s\n", msg)
			}
		}
	}

	s := batch.Summarize(results)
	fmt.Printf("\n%d files: %d pass, %d warn, %d fail\n", s.Total(), s.Pass, s.Warn, s.Fail)
	if s.Fail > 0 {
		logger.Sync()
		os.Exit(1)
	}
}

func cmdConfig(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: user config directory)")
	fs.Parse(args)

	var err error
	out := *output
	if out == "" {
		out = filepath.Join(config.ConfigDir(), "config.yaml")
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(out)
	}
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s\n", out)
}
