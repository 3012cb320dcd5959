package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/config"
	"github.com/verte-zerg/keyopt/internal/effort"
)

var commentedSetting = regexp.MustCompile(`^# ([a-z-]+ = )`)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	lines := strings.Split(defaultConfigTemplate(), "\n")
	for i, line := range lines {
		lines[i] = commentedSetting.ReplaceAllString(line, "$1")
	}
	var cfg config.FileConfig
	if _, err := toml.Decode(strings.Join(lines, "\n"), &cfg); err != nil {
		t.Fatalf("template does not decode once uncommented: %v", err)
	}
	if cfg.Run.Seed == nil || *cfg.Run.Seed != anneal.DefaultSeed {
		t.Fatalf("unexpected seed %v", cfg.Run.Seed)
	}
	if cfg.Run.Save == nil || *cfg.Run.Save != defaultSave {
		t.Fatalf("unexpected save %v", cfg.Run.Save)
	}
	params, err := cfg.Effort.Apply(effort.Params{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if params != effort.DefaultParams() {
		t.Fatalf("template effort values differ from defaults: %+v", params)
	}
}

func TestOpenTextLogsPerChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "scores.txt")
	logs, err := openTextLogs(path, 3)
	if err != nil {
		t.Fatalf("openTextLogs: %v", err)
	}
	t.Cleanup(logs.close)
	if logs.forChain(2) == nil || logs.forChain(3) != nil {
		t.Fatalf("expected one log per chain")
	}
	for _, name := range []string{"scores.txt", "scores-chain1.txt", "scores-chain2.txt"} {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(path), name))
		if err != nil {
			t.Fatalf("ReadFile %s: %v", name, err)
		}
		if !strings.Contains(string(data), "Starting new Run") {
			t.Fatalf("%s: missing header", name)
		}
	}
}

func TestOpenTextLogsDisabled(t *testing.T) {
	logs, err := openTextLogs("-", 2)
	if err != nil {
		t.Fatalf("openTextLogs: %v", err)
	}
	if logs.forChain(0) != nil {
		t.Fatalf("expected no logs")
	}
}
