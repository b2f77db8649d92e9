// Package sitebuild produces the deployable static site: JS files get the
// Supabase settings injected, everything else is copied as-is.
package sitebuild

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest lists what goes into the output directory. Source paths are
// relative to Root; Extra paths are relative to Root as well but land at
// the top of OutDir.
type Manifest struct {
	Root      string   `yaml:"root"`
	SrcDir    string   `yaml:"src_dir"`
	OutDir    string   `yaml:"out_dir"`
	JS        []string `yaml:"js"`
	HTML      []string `yaml:"html"`
	CSS       []string `yaml:"css"`
	AssetsDir string   `yaml:"assets_dir"`
	Extra     []string `yaml:"extra"`
}

// DefaultManifest is the portal's site layout.
func DefaultManifest() Manifest {
	return Manifest{
		Root:   ".",
		SrcDir: "src",
		OutDir: "dist",
		// config.js first: the other scripts read its globals
		JS: []string{
			"config.js", "script.js", "admin.js", "auth.js", "contact.js",
			"dashboard.js", "index.js", "onboarding.js", "reset-password.js",
		},
		HTML: []string{
			"index.html", "about.html", "admin.html", "contact.html", "dashboard.html",
			"login.html", "onboarding.html", "reset-password.html", "current-coffee.html",
		},
		CSS:       []string{"globals.css", "style.css", "styleguide.css"},
		AssetsDir: "assets",
		Extra:     []string{"netlify.toml", "SUPABASE_DATABASE_SETUP.md", "EMAILJS_SETUP.md"},
	}
}

// LoadManifest reads a YAML manifest. Keys it leaves out keep their
// DefaultManifest values.
func LoadManifest(path string) (Manifest, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}
