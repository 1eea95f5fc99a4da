package main

import (
	"os"
	"path/filepath"
	"testing"

	"PowerPulse/internal/llm/openai"
	"PowerPulse/internal/llm/static"
)

func TestBuildLLMClientDefaultsToOpenAI(t *testing.T) {
	t.Setenv("POWERPULSE_LLM", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	client, err := buildLLMClient()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := client.(*openai.Client); !ok {
		t.Fatalf("默认应使用 OpenAI 客户端, 实际 %T", client)
	}
}

func TestBuildLLMClientMissingKeyFails(t *testing.T) {
	t.Setenv("POWERPULSE_LLM", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := buildLLMClient(); err == nil {
		t.Fatal("无密钥时应报错而不是退回离线客户端")
	}
}

func TestBuildLLMClientStaticOptIn(t *testing.T) {
	t.Setenv("POWERPULSE_LLM", "static")
	t.Setenv("OPENAI_API_KEY", "")

	client, err := buildLLMClient()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := client.(*static.Client); !ok {
		t.Fatalf("显式指定后应使用离线客户端, 实际 %T", client)
	}
}

func TestRunAnalyzeMissingKeyFails(t *testing.T) {
	t.Setenv("POWERPULSE_LLM", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("POWERPULSE_DATA", t.TempDir())

	dir := t.TempDir()
	week1 := filepath.Join(dir, "week1.json")
	week2 := filepath.Join(dir, "week2.json")
	payload := []byte(`{"week_start":"2024-01-01","week_end":"2024-01-07","daily_usage":[{"date":"2024-01-01","total_kwh":10,"peak_hour":18,"peak_value":2,"devices":{"hvac":5}}]}`)
	for _, path := range []string{week1, week2} {
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	err := runAnalyze([]string{"--week1", week1, "--week2", week2})
	if err == nil {
		t.Fatal("无密钥的 analyze 应返回错误而不是离线摘要")
	}
}
