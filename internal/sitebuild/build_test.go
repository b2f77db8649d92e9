package sitebuild_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/strangerdangercoffee/portal/internal/sitebuild"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestSubstitute(t *testing.T) {
	in := `const url = process.env.SUPABASE_URL; const key = process.env.SUPABASE_ANON_KEY; log(process.env.SUPABASE_URL)`

	got := sitebuild.Substitute(in, sitebuild.Env{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: `k"ey`})
	assert.Equal(t, `const url = "https://x.supabase.co"; const key = "k\"ey"; log("https://x.supabase.co")`, got)

	assert.Equal(t, `a = ""`, sitebuild.Substitute(`a = process.env.SUPABASE_URL`, sitebuild.Env{}))
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "config.js"), "window.SUPABASE_URL = process.env.SUPABASE_URL;")
	write(t, filepath.Join(root, "src", "auth.js"), "createClient(process.env.SUPABASE_URL, process.env.SUPABASE_ANON_KEY)")
	write(t, filepath.Join(root, "src", "index.html"), "<html></html>")
	write(t, filepath.Join(root, "src", "style.css"), "body{}")
	write(t, filepath.Join(root, "src", "assets", "logo.png"), "png")
	write(t, filepath.Join(root, "netlify.toml"), "[build]")

	m := sitebuild.Manifest{
		Root:      root,
		SrcDir:    "src",
		OutDir:    "dist",
		JS:        []string{"config.js", "auth.js", "missing.js"},
		HTML:      []string{"index.html", "about.html"},
		CSS:       []string{"style.css"},
		AssetsDir: "assets",
		Extra:     []string{"netlify.toml", "EMAILJS_SETUP.md"},
	}
	rep, err := sitebuild.Build(m, sitebuild.Env{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "anon"}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, &sitebuild.Report{Processed: 2, Copied: 4, Skipped: 2, EnvInjected: true}, rep)
	dist := filepath.Join(root, "dist")
	assert.Equal(t, `window.SUPABASE_URL = "https://x.supabase.co";`, read(t, filepath.Join(dist, "config.js")))
	assert.Equal(t, `createClient("https://x.supabase.co", "anon")`, read(t, filepath.Join(dist, "auth.js")))
	assert.Equal(t, "<html></html>", read(t, filepath.Join(dist, "index.html")))
	assert.Equal(t, "png", read(t, filepath.Join(dist, "assets", "logo.png")))
	assert.Equal(t, "[build]", read(t, filepath.Join(dist, "netlify.toml")))
	assert.NoFileExists(t, filepath.Join(dist, "missing.js"))
}

func TestBuild_WithoutEnvOrAssets(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "config.js"), "x = process.env.SUPABASE_ANON_KEY")

	m := sitebuild.DefaultManifest()
	m.Root = root
	rep, err := sitebuild.Build(m, sitebuild.Env{SupabaseURL: "https://x.supabase.co"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, rep.EnvInjected)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, `x = ""`, read(t, filepath.Join(root, "dist", "config.js")))
	assert.DirExists(t, filepath.Join(root, "dist", "assets"))
}

func TestLoadManifest_KeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	write(t, path, "out_dir: public\ncss:\n  - main.css\n")

	m, err := sitebuild.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "public", m.OutDir)
	assert.Equal(t, []string{"main.css"}, m.CSS)
	assert.Equal(t, "src", m.SrcDir)
	assert.Equal(t, "config.js", m.JS[0])

	_, err = sitebuild.LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
