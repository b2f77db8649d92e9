package sitebuild

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Placeholders replaced in every JS file.
const (
	URLPlaceholder     = "process.env.SUPABASE_URL"
	AnonKeyPlaceholder = "process.env.SUPABASE_ANON_KEY"
)

// Env holds the values injected into the JS files.
type Env struct {
	SupabaseURL     string
	SupabaseAnonKey string
}

// Complete reports whether both values are set.
func (e Env) Complete() bool {
	return e.SupabaseURL != "" && e.SupabaseAnonKey != ""
}

// Report counts what a build did.
type Report struct {
	Processed   int  `json:"processed"`
	Copied      int  `json:"copied"`
	Skipped     int  `json:"skipped"`
	EnvInjected bool `json:"env_injected"`
}

// Substitute replaces both placeholders with quoted JS string literals.
func Substitute(content string, env Env) string {
	return strings.NewReplacer(
		URLPlaceholder, strconv.Quote(env.SupabaseURL),
		AnonKeyPlaceholder, strconv.Quote(env.SupabaseAnonKey),
	).Replace(content)
}

// Build writes the site described by m. Missing source files are skipped
// with a warning; any other I/O failure aborts the build.
func Build(m Manifest, env Env, logger *zap.Logger) (*Report, error) {
	src := filepath.Join(m.Root, m.SrcDir)
	out := filepath.Join(m.Root, m.OutDir)
	if err := os.MkdirAll(filepath.Join(out, m.AssetsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	rep := &Report{EnvInjected: env.Complete()}
	if !rep.EnvInjected {
		logger.Warn("sitebuild: SUPABASE_URL or SUPABASE_ANON_KEY not set, injecting empty values")
	}

	skip := func(path string) {
		rep.Skipped++
		logger.Warn("sitebuild: file not found, skipping", zap.String("path", path))
	}

	for _, name := range m.JS {
		in, dst := filepath.Join(src, name), filepath.Join(out, name)
		err := processJS(in, dst, env)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			skip(in)
		case err != nil:
			return rep, err
		default:
			rep.Processed++
			logger.Info("sitebuild: processed", zap.String("src", in), zap.String("dst", dst))
		}
	}

	var copies [][2]string
	for _, group := range [][]string{m.HTML, m.CSS} {
		for _, name := range group {
			copies = append(copies, [2]string{filepath.Join(src, name), filepath.Join(out, name)})
		}
	}

	assets := filepath.Join(src, m.AssetsDir)
	entries, err := os.ReadDir(assets)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("sitebuild: no assets directory, skipping assets", zap.String("path", assets))
	case err != nil:
		return rep, fmt.Errorf("read assets: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		copies = append(copies, [2]string{filepath.Join(assets, e.Name()), filepath.Join(out, m.AssetsDir, e.Name())})
	}

	for _, c := range copies {
		err := copyFile(c[0], c[1])
		switch {
		case errors.Is(err, fs.ErrNotExist):
			skip(c[0])
		case err != nil:
			return rep, err
		default:
			rep.Copied++
			logger.Debug("sitebuild: copied", zap.String("src", c[0]), zap.String("dst", c[1]))
		}
	}

	// extras are optional and not counted as skipped
	for _, name := range m.Extra {
		in := filepath.Join(m.Root, name)
		err := copyFile(in, filepath.Join(out, filepath.Base(name)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return rep, err
		default:
			rep.Copied++
		}
	}

	return rep, nil
}

func processJS(src, dst string, env Env) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(Substitute(string(b), env)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
