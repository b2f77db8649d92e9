package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/strangerdangercoffee/portal/internal/config"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/sitebuild"

	"go.uber.org/zap"
)

func main() {
	manifestPath := flag.String("manifest", "", "Path to a YAML site manifest (built-in layout when empty)")
	root := flag.String("root", "", "Override the manifest root directory")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(*logLevel)
	defer logger.Sync()

	m := sitebuild.DefaultManifest()
	if *manifestPath != "" {
		var err error
		if m, err = sitebuild.LoadManifest(*manifestPath); err != nil {
			logger.Fatal("failed to load manifest", zap.String("path", *manifestPath), zap.Error(err))
		}
	}
	if *root != "" {
		m.Root = *root
	}

	env := sitebuild.Env{
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
	}
	rep, err := sitebuild.Build(m, env, logger)
	if err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}

	logger.Info("build completed",
		zap.String("out_dir", m.OutDir),
		zap.Int("processed", rep.Processed),
		zap.Int("copied", rep.Copied),
		zap.Int("skipped", rep.Skipped),
		zap.Bool("env_injected", rep.EnvInjected),
	)
	if !rep.EnvInjected {
		logger.Warn("environment variables not found, set SUPABASE_URL and SUPABASE_ANON_KEY in the deploy environment")
	}
}
