package renderer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultBinary  = "node"
	DefaultCeiling = 30 * time.Second

	// reapGrace bounds how long Wait blocks on the child's pipes after the kill.
	reapGrace = 2 * time.Second
	// scriptMargin keeps the script's own ceiling inside the process deadline.
	scriptMargin = 2 * time.Second
)

// JsRenderer renders JavaScript-dependent pages with an external headless browser.
// The context deadline, not the child's exit, ends a render.
type JsRenderer struct {
	binary    string
	ceiling   time.Duration
	userAgent string
	tmpRoot   string
	log       *zap.Logger
}

type Option func(*JsRenderer)

// WithTempRoot places the per-render temp directories under dir.
func WithTempRoot(dir string) Option {
	return func(r *JsRenderer) { r.tmpRoot = dir }
}

func WithUserAgent(ua string) Option {
	return func(r *JsRenderer) { r.userAgent = ua }
}

func New(binary string, ceiling time.Duration, log *zap.Logger, opts ...Option) *JsRenderer {
	if binary == "" {
		binary = DefaultBinary
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &JsRenderer{binary: binary, ceiling: ceiling, log: log}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render returns the meaningful HTML of pageURL after client-side rendering.
// ok is false on timeout or any process failure; the error is logged, never returned.
func (r *JsRenderer) Render(ctx context.Context, pageURL string, timeout time.Duration) (string, bool) {
	if timeout <= 0 || timeout > r.ceiling {
		timeout = r.ceiling
	}
	log := r.log.With(zap.String("url", pageURL), zap.Duration("timeout", timeout))

	html, err := r.run(ctx, pageURL, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("render timed out")
		} else {
			log.Warn("render failed", zap.Error(err))
		}
		return "", false
	}

	meaningful, err := MeaningfulHTML(html)
	if err != nil || strings.TrimSpace(meaningful) == "" {
		log.Warn("render produced no usable html", zap.Error(err))
		return "", false
	}
	log.Debug("rendered page", zap.Int("bytes", len(meaningful)))
	return meaningful, true
}

func (r *JsRenderer) run(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	dir, err := os.MkdirTemp(r.tmpRoot, "render-*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inner := timeout - scriptMargin
	if inner < time.Second {
		inner = timeout / 2
	}
	script, err := buildScript(defaultScriptParams(inner, r.userAgent))
	if err != nil {
		return "", fmt.Errorf("build script: %w", err)
	}

	scriptPath := filepath.Join(dir, "render.js")
	outPath := filepath.Join(dir, "out.html")
	errPath := filepath.Join(dir, "err.txt")
	if err := os.WriteFile(scriptPath, script, 0o600); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, scriptPath, pageURL, outPath, errPath)
	cmd.Dir = dir
	cmd.WaitDelay = reapGrace
	runErr := cmd.Run()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runErr != nil {
		detail, _ := os.ReadFile(errPath)
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return "", fmt.Errorf("%w: %s", runErr, firstLine(msg))
		}
		return "", runErr
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("empty output")
	}
	return string(out), nil
}

// MeaningfulHTML keeps the main/article/role=main container, else the body,
// with script, style and noscript removed.
func MeaningfulHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	sel := doc.Find("main, article, [role=main]").First()
	if sel.Length() == 0 || strings.TrimSpace(sel.Text()) == "" {
		sel = doc.Find("body")
	}
	return goquery.OuterHtml(sel)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
