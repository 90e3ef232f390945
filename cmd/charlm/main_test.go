package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/joelsearcy/charlm-go/pkg/config"
)

const corpusText = "The rain in Spain stays mainly in the plain. In Hartford, Hereford, and Hampshire, hurricanes hardly ever happen. "

func writeCorpus(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunReproducible(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(strings.Repeat(corpusText, 10)))

	code, first, stderr := runCommand(t, "3", "The", "80", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	_, second, _ := runCommand(t, "3", "The", "80", "anything-but-random", path)
	if first != second {
		t.Errorf("expected identical output:\n%q\n%q", first, second)
	}
	if !strings.HasPrefix(first, "The") || !strings.HasSuffix(first, "\n") {
		t.Errorf("unexpected output %q", first)
	}
	if stderr != "" {
		t.Errorf("expected no logs at default level, got %q", stderr)
	}
}

func TestRunRandomMode(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(strings.Repeat(corpusText, 10)))

	code, stdout, stderr := runCommand(t, "2", "Th", "40", "random", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "Th") {
		t.Errorf("expected seed prefix, got %q", stdout)
	}
}

func TestRunShortSeed(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(corpusText))

	code, stdout, _ := runCommand(t, "4", "ab", "100", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if stdout != "ab\n" {
		t.Errorf("expected seed unchanged, got %q", stdout)
	}
}

func TestRunCompressedCorpus(t *testing.T) {
	text := []byte(strings.Repeat(corpusText, 10))
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	compressed := encoder.EncodeAll(text, nil)
	encoder.Close()

	plainPath := writeCorpus(t, "corpus.txt", text)
	zstdPath := writeCorpus(t, "corpus.txt.zst", compressed)

	_, plain, _ := runCommand(t, "3", "The", "60", "fixed", plainPath)
	code, decoded, stderr := runCommand(t, "3", "The", "60", "fixed", zstdPath)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if plain != decoded {
		t.Errorf("compressed corpus produced different text:\n%q\n%q", plain, decoded)
	}
}

func TestRunDump(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte("cbabc"))

	code, stdout, _ := runCommand(t, "--dump", "1", "zz", "5", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	want := "a : ((b 1 1 1))\n" +
		"b : ((a 1 0.5 0.5) (c 1 0.5 1))\n" +
		"c : ((b 1 1 1))\n" +
		"zz\n"
	if stdout != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, stdout)
	}
}

func TestRunLogging(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(corpusText))

	code, _, stderr := runCommand(t, "--log-level", "info", "2", "Th", "20", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, want := range []string{`"msg":"trained model"`, `"corpus_blake3":`, `"alphabet":`, `"msg":"generated text"`, `"unseen_window":false`} {
		if !strings.Contains(stderr, want) {
			t.Errorf("expected %s in logs, got %s", want, stderr)
		}
	}
}

// TestRunLogsUnseenWindow tests that an early stop and the alphabet are logged.
func TestRunLogsUnseenWindow(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte("cbabc"))

	code, stdout, stderr := runCommand(t, "--log-level", "info", "1", "zz", "50", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if stdout != "zz\n" {
		t.Errorf("expected %q, got %q", "zz\n", stdout)
	}
	for _, want := range []string{`"alphabet":"abc"`, `"unseen_window":true`} {
		if !strings.Contains(stderr, want) {
			t.Errorf("expected %s in logs, got %s", want, stderr)
		}
	}
}

// TestRunWritesProfiles tests that both profile flags produce non-empty files.
func TestRunWritesProfiles(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(strings.Repeat(corpusText, 10)))
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.prof")
	memPath := filepath.Join(dir, "mem.prof")

	code, _, stderr := runCommand(t, "--cpuprofile", cpuPath, "--memprofile", memPath, "3", "The", "200", "fixed", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, p := range []string{cpuPath, memPath} {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("expected profile %s, got %v", p, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("expected non-empty profile %s", p)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", []byte(corpusText))

	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"2", "Th", "20"}},
		{"too many", []string{"2", "Th", "20", "fixed", path, "extra"}},
		{"window not a number", []string{"two", "Th", "20", "fixed", path}},
		{"length not a number", []string{"2", "Th", "lots", "fixed", path}},
		{"zero window", []string{"0", "Th", "20", "fixed", path}},
		{"unknown flag", []string{"--nope", "2", "Th", "20", "fixed", path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCommand(t, tt.args...)
			if code != 2 {
				t.Errorf("expected exit 2, got %d", code)
			}
			if stdout != "" {
				t.Errorf("expected no output, got %q", stdout)
			}
			if !strings.Contains(stderr, "charlm:") {
				t.Errorf("expected error message, got %q", stderr)
			}
		})
	}
}

func TestRunMissingCorpus(t *testing.T) {
	code, _, stderr := runCommand(t, "2", "Th", "20", "fixed", filepath.Join(t.TempDir(), "missing.txt"))
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "opening corpus") {
		t.Errorf("expected open error, got %q", stderr)
	}
}

func TestRunDownloadsCorpus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat(corpusText, 5))
	}))
	defer server.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "charlm.yaml")
	os.WriteFile(configPath, []byte("corpus:\n  url: "+server.URL+"\n"), 0644)
	corpusPath := filepath.Join(dir, "corpus.txt")

	code, stdout, stderr := runCommand(t, "--config", configPath, "2", "Th", "30", "fixed", corpusPath)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "Th") {
		t.Errorf("unexpected output %q", stdout)
	}
	if _, err := os.Stat(corpusPath); err != nil {
		t.Errorf("corpus not downloaded: %v", err)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	code, stdout, _ := runCommand(t, "--version")
	if code != 0 || !strings.HasPrefix(stdout, "charlm ") {
		t.Errorf("--version: exit %d, output %q", code, stdout)
	}

	code, _, stderr := runCommand(t, "-h")
	if code != 0 || !strings.Contains(stderr, "Usage:") {
		t.Errorf("-h: exit %d, output %q", code, stderr)
	}
}
