// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

//go:build integration

package integration

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-keypin/pkg/pinsource"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

const testHostname = "service.keypin.test"

// Global state populated by TestMain.
var (
	projectRoot string
	cliBinary   string
)

// TestMain builds the CLI into a temporary directory and runs the tests
// against it.
func TestMain(m *testing.M) {
	var err error

	projectRoot, err = findProjectRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	binDir, err := os.MkdirTemp("", "keypin-integration-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	cliBinary = filepath.Join(binDir, "keypin")

	fmt.Println("==> Building CLI binary...")
	build := exec.Command("go", "build", "-o", cliBinary, "./cmd/keypin")
	build.Dir = projectRoot
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: go build failed: %v\n", err)
		os.RemoveAll(binDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(binDir)
	os.Exit(code)
}

// ---------------------------------------------------------------------------
// CLI: version, algorithms
// ---------------------------------------------------------------------------

func TestVersion(t *testing.T) {
	out := runCLIMustSucceed(t, "version")
	if !strings.HasPrefix(out, "keypin version ") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestAlgorithms(t *testing.T) {
	out := runCLIMustSucceed(t, "--format", "json", "algorithms")

	var algs []struct {
		Name    string `json:"name"`
		RawSize int    `json:"raw_key_bytes"`
	}
	if err := json.Unmarshal([]byte(out), &algs); err != nil {
		t.Fatalf("parsing algorithms output: %v\n%s", err, out)
	}
	if len(algs) != 5 {
		t.Fatalf("expected 5 algorithms, got %d", len(algs))
	}
}

// ---------------------------------------------------------------------------
// CLI: noise generate / show
// ---------------------------------------------------------------------------

func TestNoiseGenerateAndShow(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "noise.key")

	genOut := runCLIMustSucceed(t, "noise", "generate", "--key-file", keyFile)
	generated := extractValue(t, genOut, "Public key: ")

	showOut := runCLIMustSucceed(t, "noise", "show", "--key-file", keyFile)
	shown := extractValue(t, showOut, "Public key: ")

	if generated != shown {
		t.Fatalf("public key mismatch:\n  generate: %s\n  show:     %s", generated, shown)
	}
	if len(shown) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(shown))
	}

	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("key file permissions %o, want 0600", info.Mode().Perm())
	}
}

// ---------------------------------------------------------------------------
// CLI: pin show / check / dane generate against a live TLS endpoint
// ---------------------------------------------------------------------------

func TestPinShowAndCheck(t *testing.T) {
	server := startTLSServer(t)

	out := runCLIMustSucceed(t, "--format", "json", "pin", "show", "--cert-file", server.certFile)
	var shown struct {
		Algorithm string `json:"algorithm"`
		Pin       string `json:"pin"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("parsing pin show output: %v\n%s", err, out)
	}
	if shown.Pin != server.pin.String() {
		t.Fatalf("pin show mismatch:\n  got:  %s\n  want: %s", shown.Pin, server.pin)
	}
	if shown.Algorithm != "ecdsa-p256" {
		t.Fatalf("unexpected algorithm %q", shown.Algorithm)
	}

	pinsFile := writePins(t, map[string][]pinstore.Pin{testHostname: {{Digest: server.pin}}})
	checkOut := runCLIMustSucceed(t, "check",
		"--addr", server.addr,
		"--domain", testHostname,
		"--pins-file", pinsFile,
	)
	if !strings.Contains(checkOut, "Result: ACCEPTED") {
		t.Fatalf("expected accepted check, got:\n%s", checkOut)
	}

	otherPins := writePins(t, map[string][]pinstore.Pin{testHostname: {{Digest: pinstore.Sum([]byte("other"))}}})
	_, _, err := runCLI(t, "check",
		"--addr", server.addr,
		"--domain", testHostname,
		"--pins-file", otherPins,
	)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3 for rejected pin, got %v", err)
	}
}

func TestDANEGenerate(t *testing.T) {
	server := startTLSServer(t)

	out := runCLIMustSucceed(t, "dane", "generate",
		"--cert-file", server.certFile,
		"--hostname", testHostname,
		"--port", "8443",
	)
	want := fmt.Sprintf("_8443._tcp.%s. IN TLSA 3 1 1 %s", testHostname, server.pin.Hex())
	if strings.TrimSpace(out) != want {
		t.Fatalf("unexpected TLSA record:\n  got:  %s\n  want: %s", strings.TrimSpace(out), want)
	}
}

// ---------------------------------------------------------------------------
// CLI: serve + fetch over Noise_NK
// ---------------------------------------------------------------------------

func TestServeAndFetch(t *testing.T) {
	want := map[string][]pinstore.Pin{
		"example.com":     {{Digest: pinstore.Sum([]byte("primary"))}, {Digest: pinstore.Sum([]byte("backup"))}},
		"api.example.com": {{Digest: pinstore.Sum([]byte("api"))}},
	}
	pinsFile := writePins(t, want)
	serverPubKey, listenAddr := startPinServer(t, pinsFile, time.Hour)

	out := runCLIMustSucceed(t, "fetch",
		"--noise-addr", listenAddr,
		"--noise-server-key", serverPubKey,
	)
	got, err := pinstore.Parse([]byte(out))
	if err != nil {
		t.Fatalf("parsing fetched pins: %v\n%s", err, out)
	}
	assertPinsEqual(t, want, got)

	filtered := runCLIMustSucceed(t, "fetch",
		"--noise-addr", listenAddr,
		"--noise-server-key", serverPubKey,
		"--domains", "api.example.com",
	)
	got, err = pinstore.Parse([]byte(filtered))
	if err != nil {
		t.Fatalf("parsing filtered pins: %v", err)
	}
	if len(got) != 1 || len(got["api.example.com"]) != 1 {
		t.Fatalf("expected only api.example.com, got %v", got)
	}
}

func TestFetchOutputToFile(t *testing.T) {
	want := map[string][]pinstore.Pin{"example.com": {{Digest: pinstore.Sum([]byte("k"))}}}
	pinsFile := writePins(t, want)
	outFile := filepath.Join(t.TempDir(), "fetched.yaml")

	runCLIMustSucceed(t, "fetch", "--pins-file", pinsFile, "--output", outFile)

	got, err := pinstore.LoadFile(outFile)
	if err != nil {
		t.Fatalf("loading output file: %v", err)
	}
	assertPinsEqual(t, want, got)
}

func TestFetchAllSourcesFail(t *testing.T) {
	_, stderr, err := runCLI(t, "fetch",
		"--pins-file", filepath.Join(t.TempDir(), "missing.yaml"),
		"--noise-addr", "127.0.0.1:1",
		"--noise-server-key", strings.Repeat("00", 32),
		"--per-source-timeout", "2s",
	)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(stderr, "all sources failed") {
		t.Fatalf("expected aggregate failure in stderr, got:\n%s", stderr)
	}
}

// ---------------------------------------------------------------------------
// Library: pins distributed over Noise_NK pin a live TLS connection
// ---------------------------------------------------------------------------

func TestPinnedTLSWithDistributedPins(t *testing.T) {
	server := startTLSServer(t)
	backup := pinstore.Sum([]byte("backup key"))

	pinsFile := writePins(t, map[string][]pinstore.Pin{
		testHostname: {{Digest: backup}, {Digest: server.pin}},
	})
	serverPubKey, listenAddr := startPinServer(t, pinsFile, 200*time.Millisecond)

	src, err := pinsource.NewNoiseSource(&pinsource.NoiseConfig{
		ServerAddr:      listenAddr,
		ServerStaticKey: serverPubKey,
	})
	if err != nil {
		t.Fatalf("creating noise source: %v", err)
	}

	store := pinstore.New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pinsource.Reload(ctx, src, store); err != nil {
		t.Fatalf("reloading pins: %v", err)
	}

	validator, err := spkipin.NewValidator(&spkipin.ValidatorConfig{Pins: store})
	if err != nil {
		t.Fatalf("creating validator: %v", err)
	}
	tlsCfg, err := spkipin.NewPinnedTLSConfig(&spkipin.TLSConfig{
		Validator: validator,
		Domain:    testHostname,
	})
	if err != nil {
		t.Fatalf("creating pinned TLS config: %v", err)
	}

	if err := tlsGet(tlsCfg, server.addr); err != nil {
		t.Fatalf("pinned request failed: %v", err)
	}

	// Rotate the served pin set to the backup key only. After the next
	// reload the live key is no longer pinned.
	data, err := pinstore.Marshal(map[string][]pinstore.Pin{testHostname: {{Digest: backup}}})
	if err != nil {
		t.Fatalf("marshal pins: %v", err)
	}
	if err := os.WriteFile(pinsFile, data, 0600); err != nil {
		t.Fatalf("rewriting pins file: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := pinsource.Reload(ctx, src, store); err != nil {
			t.Fatalf("reloading pins: %v", err)
		}
		pins := store.PinsFor(testHostname)
		if len(pins) == 1 && pins[0].Digest.Equal(backup) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not pick up the rotated pin set")
		}
		time.Sleep(100 * time.Millisecond)
	}

	err = tlsGet(tlsCfg, server.addr)
	if !errors.Is(err, spkipin.ErrSPKIPinMismatch) {
		t.Fatalf("expected pin mismatch after rotation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// runCLI executes the CLI binary with the given arguments.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Logf("CLI: %s %s", cliBinary, strings.Join(args, " "))

	cmd := exec.Command(cliBinary, args...)
	cmd.Dir = projectRoot

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	stderrStr := stderr.String()
	if stderrStr != "" {
		t.Logf("stderr:\n%s", stderrStr)
	}

	return stdout.String(), stderrStr, err
}

// runCLIMustSucceed executes the CLI binary and fails the test on error.
func runCLIMustSucceed(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("CLI command failed: %v\nstdout: %s\nstderr: %s", err, stdout, stderr)
	}
	return stdout
}

// tlsServer is a local TLS endpoint with a fresh P-256 certificate.
type tlsServer struct {
	addr     string
	certFile string
	pin      pinstore.Digest
}

// startTLSServer starts an HTTPS server on a loopback port.
func startTLSServer(t *testing.T) *tlsServer {
	t.Helper()

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: testHostname},
		DNSNames:              []string{testHostname},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privKey.PublicKey, privKey)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}
	pin, _, err := spkipin.ComputeCertificatePin(cert)
	if err != nil {
		t.Fatalf("computing pin: %v", err)
	}

	certFile := filepath.Join(t.TempDir(), "server.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("writing certificate: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privKey}},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { srv.Close() })

	return &tlsServer{addr: ln.Addr().String(), certFile: certFile, pin: pin}
}

// startPinServer runs `keypin serve` for pinsFile and returns the server
// public key and listen address.
func startPinServer(t *testing.T, pinsFile string, refresh time.Duration) (pubKey, addr string) {
	t.Helper()

	port := findFreePort(t)
	listenAddr := fmt.Sprintf("127.0.0.1:%d", port)
	keyFile := filepath.Join(t.TempDir(), "noise.key")

	cmd := exec.Command(cliBinary, "--debug", "serve",
		"--pins-file", pinsFile,
		"--key-file", keyFile,
		"--listen", listenAddr,
		"--refresh", refresh.String(),
	)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		t.Fatalf("creating stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("starting pin server: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill() //nolint:errcheck
		cmd.Wait()         //nolint:errcheck
	})

	// slog output: time=... level=INFO msg="server public key" key=<hex>
	//              time=... level=INFO msg=listening addr=<addr>
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var serverPubKey string
	deadline := time.After(10 * time.Second)
	for ready := false; !ready; {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for pin server to be ready")
		case line, ok := <-lines:
			if !ok {
				t.Fatal("pin server stderr ended unexpectedly")
			}
			t.Logf("serve stderr: %s", line)
			if strings.Contains(line, `msg="server public key"`) {
				serverPubKey = extractSlogValue(line, "key")
			}
			if strings.Contains(line, "msg=listening") {
				ready = true
			}
		}
	}

	// Keep draining so the server never blocks on a full pipe.
	go func() {
		for range lines {
		}
	}()

	if serverPubKey == "" {
		t.Fatal("could not parse server public key from serve output")
	}
	if err := waitForPort(listenAddr, 5*time.Second); err != nil {
		t.Fatalf("pin server port not ready: %v", err)
	}
	return serverPubKey, listenAddr
}

// tlsGet performs one HTTPS request with cfg against addr.
func tlsGet(cfg *tls.Config, addr string) error {
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: cfg, DisableKeepAlives: true},
	}
	resp, err := client.Get("https://" + addr + "/")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// writePins writes a pin document into a temporary file.
func writePins(t *testing.T, pins map[string][]pinstore.Pin) string {
	t.Helper()
	data, err := pinstore.Marshal(pins)
	if err != nil {
		t.Fatalf("marshal pins: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pins.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writing pins: %v", err)
	}
	return path
}

// assertPinsEqual compares two pin sets domain by domain.
func assertPinsEqual(t *testing.T, want, got map[string][]pinstore.Pin) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("domain count mismatch: got %d, want %d", len(got), len(want))
	}
	for domain, wantPins := range want {
		gotPins := got[domain]
		if len(gotPins) != len(wantPins) {
			t.Fatalf("%s: got %d pins, want %d", domain, len(gotPins), len(wantPins))
		}
		for i := range wantPins {
			if !gotPins[i].Digest.Equal(wantPins[i].Digest) {
				t.Fatalf("%s: pin %d mismatch: got %s, want %s", domain, i, gotPins[i].Digest, wantPins[i].Digest)
			}
		}
	}
}

// waitForPort polls until a TCP connection to addr succeeds or timeout elapses.
func waitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("port %s not ready after %v", addr, timeout)
}

// findFreePort returns a currently unused loopback TCP port.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// extractValue finds a line containing the prefix and returns the text after it.
func extractValue(t *testing.T, output, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, prefix); idx >= 0 {
			return strings.TrimSpace(line[idx+len(prefix):])
		}
	}
	t.Fatalf("prefix %q not found in output:\n%s", prefix, output)
	return ""
}

// extractSlogValue extracts key=value from a slog text line.
func extractSlogValue(line, key string) string {
	prefix := key + "="
	for _, field := range strings.Fields(line) {
		if strings.HasPrefix(field, prefix) {
			return strings.Trim(strings.TrimPrefix(field, prefix), `"`)
		}
	}
	return ""
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find go.mod in any parent directory")
		}
		dir = parent
	}
}
