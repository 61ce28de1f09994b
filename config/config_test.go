package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StaleShareDays != 100 || cfg.ShareBasis != "diluted" || cfg.DefaultTaxRate != 0.21 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Concurrency <= 0 || cfg.Listen != ":8080" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.RequireDB(); err == nil {
		t.Error("expected RequireDB to fail without db")
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	yaml := "db: duckdb://from-file.db\nstale_share_days: 45\nshare_basis: basic\n"
	if err := os.WriteFile(filepath.Join(dir, "valuedb.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VALUEDB_STALE_SHARE_DAYS", "60")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.Int("stale-share-days", 0, "")
	if err := flags.Parse([]string{"--db", "memory://"}); err != nil {
		t.Fatal(err)
	}

	v := New()
	v.AddConfigPath(dir)
	cfg, err := Load(v, flags)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"flag beats file", cfg.DB, "memory://"},
		{"env beats file", cfg.StaleShareDays, 60},
		{"file beats default", cfg.ShareBasis, "basic"},
	}
	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{StaleShareDays: 100, DefaultTaxRate: 0.21}, false},
		{"bad tax rate", Config{StaleShareDays: 100, DefaultTaxRate: 1.5}, true},
		{"bad stale days", Config{StaleShareDays: -1}, true},
		{"bad basis", Config{StaleShareDays: 100, ShareBasis: "weighted"}, true},
		{"bad log format", Config{StaleShareDays: 100, LogFormat: "xml"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	if err := SetupLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf); err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("ticker", "XYZ").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"ticker":"XYZ"`) {
		t.Errorf("unexpected log output: %s", out)
	}

	if err := SetupLogger(&Config{LogLevel: "loud"}, &buf); err == nil {
		t.Error("expected error for unknown level")
	}
}
