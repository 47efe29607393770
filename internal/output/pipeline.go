package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/staticsnap/staticsnap/internal/snap"
)

// Config controls where pages land and which transforms apply.
type Config struct {
	Root         string
	Subfolder    string
	Compress     bool
	InlineCSS    bool
	ScriptHashes bool
}

// Pipeline persists render outcomes to the output tree. Write never raises
// past its boundary; failures are logged and counted on the run report.
type Pipeline struct {
	cfg     Config
	inliner *CSSInliner
	report  *snap.RunReport
	logger  *zap.Logger
}

// New creates the pipeline and its output root.
func New(cfg Config, report *snap.RunReport, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(cfg.Root, cfg.Subfolder), 0o750); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	p := &Pipeline{
		cfg:    cfg,
		report: report,
		logger: logger,
	}
	if cfg.InlineCSS {
		p.inliner = NewCSSInliner(logger.Named("css"))
	}
	return p, nil
}

// Write maps the task to its output path, applies transforms, and writes the
// artifact plus any sidecar. Failed renders are recorded but produce no file.
func (p *Pipeline) Write(ctx context.Context, outcome snap.RenderOutcome) {
	if !outcome.OK() {
		p.logger.Debug("skipping write for failed render", zap.String("url", outcome.Task.URL))
		return
	}
	if err := p.write(ctx, outcome); err != nil {
		p.report.WritesFailed.Add(1)
		p.logger.Error("write failed",
			zap.String("url", outcome.Task.URL),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) write(ctx context.Context, outcome snap.RenderOutcome) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	target, err := MapPath(p.cfg.Root, p.cfg.Subfolder, outcome.Task.URL)
	if err != nil {
		return err
	}

	content := outcome.HTML
	if p.inliner != nil {
		inlined, err := p.inliner.Inline(content, outcome.Task.URL)
		if err != nil {
			p.logger.Warn("css inlining failed, writing original markup",
				zap.String("url", outcome.Task.URL),
				zap.Error(err),
			)
		} else {
			content = inlined
		}
	}

	if p.cfg.ScriptHashes {
		if err := p.writeSidecar(target, content); err != nil {
			return err
		}
	}

	if p.cfg.Compress {
		compressed, err := Compress(content)
		if err != nil {
			return fmt.Errorf("compress %s: %w", target, err)
		}
		content = compressed
		target += compressionSuffix
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	p.logger.Debug("page written", zap.String("path", target), zap.Int("bytes", len(content)))
	return nil
}

func (p *Pipeline) writeSidecar(target string, content []byte) error {
	hashes, err := ExtractScriptHashes(content)
	if err != nil {
		return fmt.Errorf("extract script hashes: %w", err)
	}
	if hashes == nil {
		hashes = []string{}
	}
	sidecar := SidecarPath(target)
	payload, err := json.MarshalIndent(ScriptHashSidecar{ScriptHashes: hashes}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(sidecar), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", sidecar, err)
	}
	if err := os.WriteFile(sidecar, payload, 0o600); err != nil {
		return fmt.Errorf("write sidecar %s: %w", sidecar, err)
	}
	return nil
}
