package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOracle points the test config at an analysis service endpoint.
func WithOracle(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Oracle.BaseURL = baseURL
		b.cfg.Oracle.APIKey = apiKey
	}
}

// WithStageTimeout overrides every per-stage budget with the same value.
func WithStageTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.StageTimeouts.Download = seconds
		b.cfg.StageTimeouts.Analysis = seconds
		b.cfg.StageTimeouts.CutSmoothing = seconds
		b.cfg.StageTimeouts.AudioResync = seconds
		b.cfg.StageTimeouts.WindNoise = seconds
		b.cfg.StageTimeouts.FrameRecovery = seconds
		b.cfg.StageTimeouts.Export = seconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
// The default ffmpeg stub copies its input to its output so stage artifacts
// exist on disk.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeStub(b.t, binDir, name, defaultStubScript(name))
		}
		prependPath(b.t, binDir)
	}
}

// WithStubScript installs a custom shell script as a named binary on PATH.
func WithStubScript(name, script string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		writeStub(b.t, binDir, name, script)
		prependPath(b.t, binDir)
	}
}

func defaultStubScript(name string) string {
	if name == "ffprobe" {
		return "#!/bin/sh\necho '{\"streams\":[],\"format\":{\"duration\":\"1.0\"}}'\nexit 0\n"
	}
	return `#!/bin/sh
in=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-i" ]; then in="$arg"; fi
  prev="$arg"
  out="$arg"
done
if [ -n "$in" ] && [ -n "$out" ]; then cp "$in" "$out"; fi
exit 0
`
}

func writeStub(t testing.TB, binDir, name, script string) {
	t.Helper()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
}

func prependPath(t testing.TB, binDir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.UploadDir)
}
