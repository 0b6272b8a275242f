package colorist_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/colorist"
	"github.com/Skryldev/colorist/adapters/fake"
	"github.com/Skryldev/colorist/adapters/storage"
	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
	"github.com/Skryldev/colorist/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func writeJPEG(t *testing.T, path string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return path
}

func newProc(t *testing.T, mutate func(*config.Config)) (*colorist.Processor, *fake.Runner) {
	t.Helper()
	cfg := colorist.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	if mutate != nil {
		mutate(&cfg)
	}
	r := fake.NewRunner().Identity(1600, 900)
	p, err := colorist.New(cfg, colorist.WithRunner(r))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, r
}

func fixture(t *testing.T) (dir, src string) {
	t.Helper()
	dir = t.TempDir()
	return dir, writeJPEG(t, filepath.Join(dir, "photo.jpg"), 16, 9)
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

// ── Convert ───────────────────────────────────────────────────────────────────

func TestConvert_CropCommand(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)
	dst := filepath.Join(dir, "out.avif")

	res, err := proc.Convert(context.Background(), src, dst, map[string]any{"width": 400, "height": 400, "crop": true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	mustExist(t, dst)

	if n := len(r.CallsTo("identify")); n != 1 {
		t.Errorf("identify calls: got %d, want 1", n)
	}
	converts := r.CallsTo("convert")
	if len(converts) != 1 {
		t.Fatalf("convert calls: got %d, want 1", len(converts))
	}
	line := strings.Join(converts[0].Args, " ")
	if !strings.Contains(line, "--resize 400,400 --crop 350,0,900,900") {
		t.Errorf("argv %q lacks the crop geometry", line)
	}
	if res.Command.String() != converts[0].String() {
		t.Errorf("result command %q != run command %q", res.Command.String(), converts[0].String())
	}
	if res.Bytes != int64(len("colorist")) {
		t.Errorf("bytes: got %d", res.Bytes)
	}
	if res.Skipped {
		t.Error("fresh destination reported as skipped")
	}
}

func TestConvert_SkipsExisting(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)
	dst := filepath.Join(dir, "out.avif")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := proc.Convert(context.Background(), src, dst, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !res.Skipped {
		t.Error("existing destination was not skipped")
	}
	if len(r.Calls()) != 0 {
		t.Errorf("tool ran %d times for a skipped conversion", len(r.Calls()))
	}
	if got := proc.Stats().Skipped; got != 1 {
		t.Errorf("skipped count: got %d", got)
	}

	res, err = proc.Inner().Convert(context.Background(), core.Request{Source: src, Destination: dst, Force: true})
	if err != nil {
		t.Fatalf("forced Convert: %v", err)
	}
	if res.Skipped || len(r.CallsTo("convert")) != 1 {
		t.Error("Force did not rerun the tool")
	}
}

func TestConvert_CleanupOnFailure(t *testing.T) {
	for _, cleanup := range []bool{true, false} {
		proc, r := newProc(t, func(c *config.Config) { c.CleanupOnFailure = cleanup })
		r.On("convert", fake.Response{ExitCode: 1, Stdout: []byte("boom")})
		dir, src := fixture(t)
		dst := filepath.Join(dir, "out.avif")
		if err := os.WriteFile(dst, nil, 0o644); err != nil { // partial output
			t.Fatal(err)
		}

		_, err := proc.Convert(context.Background(), src, dst, nil)
		if !apperrors.IsCategory(err, apperrors.CategoryExternalTool) {
			t.Fatalf("cleanup=%v: want external tool failure, got %v", cleanup, err)
		}
		if code, ok := apperrors.ExitCode(err); !ok || code != 1 {
			t.Errorf("exit code: got %d, %v", code, ok)
		}
		_, statErr := os.Stat(dst)
		if removed := errors.Is(statErr, fs.ErrNotExist); removed != cleanup {
			t.Errorf("cleanup=%v: destination removed=%v", cleanup, removed)
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source must survive a failure: %v", err)
		}
	}
}

func TestConvert_RejectsBadSources(t *testing.T) {
	proc, r := newProc(t, func(c *config.Config) { c.MaxImageSize = "64B" })
	dir, src := fixture(t)
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("just text\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		path     string
		cat      apperrors.Category
		sentinel error
	}{
		{"missing", filepath.Join(dir, "nope.jpg"), apperrors.CategoryInput, fs.ErrNotExist},
		{"text file", txt, apperrors.CategoryUnsupportedFileType, apperrors.ErrNotAnImage},
		{"too large", src, apperrors.CategoryInput, apperrors.ErrSourceTooLarge},
	}
	for _, tc := range cases {
		_, err := proc.Convert(context.Background(), tc.path, filepath.Join(dir, "out.avif"), nil)
		if !apperrors.IsCategory(err, tc.cat) || !errors.Is(err, tc.sentinel) {
			t.Errorf("%s: got %v", tc.name, err)
		}
	}
	if len(r.Calls()) != 0 {
		t.Errorf("tool ran for rejected sources: %v", r.Calls())
	}
}

func TestConvert_StrictOptions(t *testing.T) {
	proc, r := newProc(t, func(c *config.Config) { c.Strict = true })
	dir, src := fixture(t)

	_, err := proc.Convert(context.Background(), src, filepath.Join(dir, "out.avif"), map[string]any{"speed": 11})
	if !apperrors.IsCategory(err, apperrors.CategoryInvalidOption) {
		t.Fatalf("want invalid option, got %v", err)
	}
	if len(r.Calls()) != 0 {
		t.Error("tool ran for invalid options")
	}
}

func TestProcess_InPlace(t *testing.T) {
	proc, r := newProc(t, nil)
	_, src := fixture(t)

	opts, err := proc.Process(context.Background(), src, map[string]any{"speed": 5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if opts.Speed == nil || *opts.Speed != 5 {
		t.Errorf("applied speed: %v", opts.Speed)
	}
	args := r.CallsTo("convert")[0].Args
	if args[1] != src || args[len(args)-1] != src {
		t.Errorf("in-place argv: %v", args)
	}
	if !slices.Contains(args, "--tonemap") {
		t.Errorf("config defaults not applied: %v", args)
	}
}

// ── Formats ───────────────────────────────────────────────────────────────────

func TestToFormat(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)

	res, err := proc.ToFormat(context.Background(), src, "avif")
	if err != nil {
		t.Fatalf("ToFormat: %v", err)
	}
	want := filepath.Join(dir, "photo.avif")
	if res.Destination != want || res.Template != "image" {
		t.Errorf("result: %+v", res)
	}
	mustExist(t, want)
	if got := r.CallsTo("convert")[0].Args; !slices.Equal(got, []string{"convert", src, "--format", "avif", want}) {
		t.Errorf("argv: %v", got)
	}
	if !colorist.HasFormat(src, "avif") || colorist.HasFormat(src, "webp") {
		t.Error("HasFormat disagrees with the filesystem")
	}

	res, err = proc.ToFormat(context.Background(), src, "avif")
	if err != nil || !res.Skipped {
		t.Errorf("second ToFormat: skipped=%v err=%v", res != nil && res.Skipped, err)
	}

	res, err = proc.ToFormat(context.Background(), src, "jpeg")
	if err != nil || !res.Skipped || res.Destination != src {
		t.Errorf("same-format ToFormat: %+v, %v", res, err)
	}
	if n := len(r.CallsTo("convert")); n != 1 {
		t.Errorf("convert calls: got %d, want 1", n)
	}
}

func TestToFormat_Templates(t *testing.T) {
	proc, _ := newProc(t, func(c *config.Config) { c.Templates = map[string]string{"avif": "picture"} })
	_, src := fixture(t)

	res, err := proc.ToFormat(context.Background(), src, "avif")
	if err != nil || res.Template != "picture" {
		t.Fatalf("avif: %+v, %v", res, err)
	}
	_, err = proc.ToFormat(context.Background(), src, "webp")
	if !apperrors.IsCategory(err, apperrors.CategoryMissingTemplate) {
		t.Errorf("webp: want missing template, got %v", err)
	}

	proc, _ = newProc(t, func(c *config.Config) { c.Template = "" })
	if _, err := proc.Template("avif"); !errors.Is(err, apperrors.ErrMissingTemplate) {
		t.Errorf("empty template: got %v", err)
	}
}

func TestToFormat_Unknown(t *testing.T) {
	proc, _ := newProc(t, nil)
	_, src := fixture(t)
	if _, err := proc.ToFormat(context.Background(), src, "gif"); !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Errorf("got %v", err)
	}
}

func TestTranscode_FormatOnly(t *testing.T) {
	proc, r := newProc(t, func(c *config.Config) {
		c.Defaults = map[string]any{"speed": 6, "tonemap": "on", "yuv": "444", "quality": 55}
	})
	dir, src := fixture(t)
	dst := filepath.Join(dir, "exports", "photo.webp")

	res, err := proc.Transcode(context.Background(), src, dst, "webp")
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	mustExist(t, dst)
	if res.Destination != dst {
		t.Errorf("destination: got %s, want %s", res.Destination, dst)
	}

	converts := r.CallsTo("convert")
	if len(converts) != 1 {
		t.Fatalf("convert calls: got %d, want 1", len(converts))
	}
	want := []string{"convert", src, "--format", "webp", dst}
	if !slices.Equal(converts[0].Args, want) {
		t.Errorf("argv:\n got  %v\n want %v", converts[0].Args, want)
	}
	if len(r.CallsTo("identify")) != 0 {
		t.Error("format-only conversion ran identify")
	}
}

func TestTranscode_UnknownFormat(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)

	_, err := proc.Transcode(context.Background(), src, filepath.Join(dir, "photo.gif"), "gif")
	if !apperrors.IsCategory(err, apperrors.CategoryInvalidOption) {
		t.Fatalf("got %v, want invalid_option", err)
	}
	if len(r.Calls()) != 0 {
		t.Errorf("tool ran for an unknown format: %v", r.Calls())
	}
}

func TestToFormats(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)

	results, err := proc.ToFormats(context.Background(), src)
	if err != nil {
		t.Fatalf("ToFormats: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	for i, f := range []string{"avif", "webp"} {
		want := filepath.Join(dir, "photo."+f)
		if results[i] == nil || results[i].Destination != want {
			t.Errorf("results[%d]: %+v", i, results[i])
		}
		mustExist(t, want)
	}
	if n := len(r.CallsTo("convert")); n != 2 {
		t.Errorf("convert calls: got %d", n)
	}
}

func TestIsFormat(t *testing.T) {
	tests := []struct {
		path, format string
		want         bool
	}{
		{"a.jpg", "jpeg", true},
		{"a.JPEG", "jpg", true},
		{"a.tif", "tiff", true},
		{"a.jpg", "avif", false},
		{"a", "avif", false},
		{"a.gif", "gif", false},
	}
	for _, tc := range tests {
		if got := colorist.IsFormat(tc.path, tc.format); got != tc.want {
			t.Errorf("IsFormat(%q, %q) = %v; want %v", tc.path, tc.format, got, tc.want)
		}
	}
}

// ── Thumbnails and job files ──────────────────────────────────────────────────

func TestThumb_WritesJobFile(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)
	opts := map[string]any{"width": 400, "height": 400, "crop": true}

	res, err := proc.Thumb(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Thumb: %v", err)
	}
	want := filepath.Join(dir, "photo-400x400-crop.jpg")
	if res.Destination != want {
		t.Errorf("destination: got %s, want %s", res.Destination, want)
	}
	mustExist(t, want)
	mustExist(t, filepath.Join(dir, ".jobs", "photo-400x400-crop.jpg.json"))
	if n := len(r.CallsTo("convert")); n != 1 {
		t.Errorf("convert calls: got %d", n)
	}
}

func TestThumbPath(t *testing.T) {
	thumbs := t.TempDir()
	proc, _ := newProc(t, func(c *config.Config) { c.ThumbsDir = thumbs })

	got, err := proc.ThumbPath("/srv/photo.jpg", map[string]any{"width": 320, "quality": 70, "format": "webp"})
	if err != nil {
		t.Fatalf("ThumbPath: %v", err)
	}
	if want := filepath.Join(thumbs, "photo-320x-q70.webp"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	upper, err := proc.ThumbPath("/srv/photo.jpg", map[string]any{"Width": 320, "Quality": 70, "FORMAT": "webp"})
	if err != nil {
		t.Fatalf("ThumbPath: %v", err)
	}
	if upper != got {
		t.Errorf("mixed-case keys: got %s, want %s", upper, got)
	}
}

func TestGenerate(t *testing.T) {
	proc, r := newProc(t, nil)
	dir, src := fixture(t)
	dst := filepath.Join(dir, "photo-320x.webp")
	store := storage.NewLocal(".jobs", 0)

	if err := store.WriteJob(context.Background(), core.JobFile{
		Destination: dst,
		Source:      src,
		Options:     map[string]any{"width": 320},
	}); err != nil {
		t.Fatal(err)
	}

	res, err := proc.Generate(context.Background(), dst)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mustExist(t, res.Destination)
	if !slices.Contains(r.CallsTo("convert")[0].Args, "320,0") {
		t.Errorf("job options not applied: %v", r.CallsTo("convert")[0].Args)
	}
	if _, err := os.Stat(store.JobPath(dst)); !errors.Is(err, fs.ErrNotExist) {
		t.Error("job file survived a successful Generate")
	}

	if _, err := proc.Generate(context.Background(), dst); !errors.Is(err, apperrors.ErrJobNotFound) {
		t.Errorf("second Generate: got %v", err)
	}
}

// ── Identify ──────────────────────────────────────────────────────────────────

func TestIdentify(t *testing.T) {
	proc, r := newProc(t, nil)
	_, src := fixture(t)

	id, err := proc.Identify(context.Background(), src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id.Width != 1600 || id.Height != 900 {
		t.Errorf("dimensions: %dx%d", id.Width, id.Height)
	}
	if got := r.CallsTo("identify")[0].Args; !slices.Equal(got, []string{"identify", "--json", src}) {
		t.Errorf("argv: %v", got)
	}
}

func TestIdentify_Probe(t *testing.T) {
	proc, r := newProc(t, func(c *config.Config) { c.Identifier = "probe" })
	_, src := fixture(t)

	id, err := proc.Identify(context.Background(), src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id.Width != 16 || id.Height != 9 {
		t.Errorf("dimensions: %dx%d", id.Width, id.Height)
	}
	if len(r.Calls()) != 0 {
		t.Error("probe spawned the tool for a jpeg")
	}
}

// identifyStub stands in for the colorist binary; identify fails on paths
// that do not exist, like the real tool.
const identifyStub = `#!/bin/sh
[ "$1" = identify ] || exit 64
[ -f "$3" ] || { echo "cannot open $3" >&2; exit 1; }
echo '{"width":2,"height":1}'
`

func TestIdentify_ThroughTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "colorist")
	if err := os.WriteFile(bin, []byte(identifyStub), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := colorist.DefaultConfig()
	cfg.Bin = bin
	proc, err := colorist.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := filepath.Join(dir, "tiny.png")
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 1))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	id, err := proc.Identify(context.Background(), src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id.Width != 2 || id.Height != 1 {
		t.Errorf("dimensions: %dx%d, want 2x1", id.Width, id.Height)
	}

	_, err = proc.Identify(context.Background(), filepath.Join(dir, "nope.jpg"))
	if !apperrors.IsCategory(err, apperrors.CategoryExternalTool) {
		t.Fatalf("missing path: got %v, want external_tool", err)
	}
	if code, ok := apperrors.ExitCode(err); !ok || code != 1 {
		t.Errorf("exit code: got %d, %v", code, ok)
	}
}

// ── Async worker pool ─────────────────────────────────────────────────────────

func TestWorkerPool_Async(t *testing.T) {
	proc, _ := newProc(t, nil)
	proc.Start()
	t.Cleanup(proc.Stop)
	dir, src := fixture(t)

	resultCh := make(chan core.JobResult, 1)
	job := core.Job{
		Ctx:      context.Background(),
		Request:  core.Request{Source: src, Destination: filepath.Join(dir, "async.webp")},
		ResultCh: resultCh,
	}
	if err := proc.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			t.Fatalf("async job error: %v", res.Err)
		}
		if res.JobID == "" {
			t.Error("job was not given an ID")
		}
		mustExist(t, res.Result.Destination)
	case <-time.After(5 * time.Second):
		t.Fatal("async job timed out")
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, core.Command) (*core.RunResult, error) {
	panic("tool wrapper exploded")
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	cfg := colorist.DefaultConfig()
	cfg.WorkerCount = 1
	proc, err := colorist.New(cfg, colorist.WithRunner(panicRunner{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	proc.Start()
	t.Cleanup(proc.Stop)
	dir, src := fixture(t)

	resultCh := make(chan core.JobResult, 2)
	for _, name := range []string{"a.webp", "b.webp"} {
		if err := proc.Submit(core.Job{
			Request:  core.Request{Source: src, Destination: filepath.Join(dir, name)},
			ResultCh: resultCh,
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case res := <-resultCh:
			if !apperrors.IsCategory(res.Err, apperrors.CategoryPipeline) {
				t.Errorf("job %s: got %v, want pipeline error", res.JobID, res.Err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not survive the panic")
		}
	}
	if got := proc.Stats().Errors; got != 2 {
		t.Errorf("errors: got %d, want 2", got)
	}
}

// ── Hooks / metrics ───────────────────────────────────────────────────────────

func TestMetricsHook(t *testing.T) {
	proc, _ := newProc(t, nil)
	m := hooks.NewInMemoryMetrics()
	proc.SetMetrics(m)
	proc.AddHook(hooks.NewMetricsHook(m))
	dir, src := fixture(t)

	if _, err := proc.Convert(context.Background(), src, filepath.Join(dir, "out.avif"), map[string]any{"width": 10, "crop": true}); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	snap := m.Snapshot()
	if snap.Calls["exec.convert"] != 1 || snap.Calls["exec.identify"] != 1 {
		t.Errorf("exec calls: %v", snap.Calls)
	}
	if snap.TotalThroughputB == 0 {
		t.Error("bytes written were not recorded")
	}
}

// ── Config validation ─────────────────────────────────────────────────────────

func TestNew_InvalidConfig(t *testing.T) {
	cfg := colorist.DefaultConfig()
	cfg.Bin = ""
	if _, err := colorist.New(cfg); !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Errorf("empty bin: got %v", err)
	}

	cfg = colorist.DefaultConfig()
	cfg.Identifier = "vips"
	if _, err := colorist.New(cfg); err == nil {
		t.Error("vips without an identifier must fail")
	}
}
