// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	pkgdane "github.com/jeremyhahn/go-keypin/pkg/dane"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
	"github.com/jeremyhahn/go-keypin/pkg/spkipin"
)

// testInfra holds a local DNS server publishing the TLSA pin of a local TLS
// server, plus the files describing both.
type testInfra struct {
	dnsAddr    string
	tlsAddr    string
	certFile   string
	pinsFile   string
	hostname   string
	port       uint16
	pin        pinstore.Digest
	dnsServer  *dns.Server
	httpServer *http.Server
}

// generateTestCert creates a self-signed P-256 certificate for hostname.
func generateTestCert(t *testing.T, hostname string) (*x509.Certificate, *ecdsa.PrivateKey, []byte) {
	t.Helper()

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   hostname,
			Organization: []string{"Test"},
		},
		DNSNames:              []string{hostname},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privKey.PublicKey, privKey)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)

	return cert, privKey, certDER
}

// writeCertFile writes certDER as a PEM certificate file.
func writeCertFile(t *testing.T, certDER []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cert.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	require.NoError(t, os.WriteFile(path, certPEM, 0644))
	return path
}

// writePinsFile writes a pin document mapping each domain to pins.
func writePinsFile(t *testing.T, pins map[string][]pinstore.Pin) string {
	t.Helper()
	data, err := pinstore.Marshal(pins)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pins.yaml")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// setupTestInfra starts a TLS server with a fresh certificate and a DNS
// server answering DNSSEC-authenticated TLSA queries with its pin.
func setupTestInfra(t *testing.T) *testInfra {
	t.Helper()

	hostname := "test.example.com"
	cert, privKey, certDER := generateTestCert(t, hostname)

	pin, _, err := spkipin.ComputeCertificatePin(cert)
	require.NoError(t, err)

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privKey}},
		MinVersion:   tls.VersionTLS12,
	}
	tcpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tlsListener := tls.NewListener(tcpListener, tlsCfg)

	_, portStr, err := net.SplitHostPort(tlsListener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	httpServer := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go httpServer.Serve(tlsListener)

	dnsListener, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	qname := fmt.Sprintf("_%d._tcp.%s.", port, hostname)
	dnsHandler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Authoritative = true
		m.AuthenticatedData = true

		for _, q := range r.Question {
			if q.Qtype == dns.TypeTLSA && q.Name == qname {
				m.Answer = append(m.Answer, &dns.TLSA{
					Hdr: dns.RR_Header{
						Name:   qname,
						Rrtype: dns.TypeTLSA,
						Class:  dns.ClassINET,
						Ttl:    300,
					},
					Usage:        pkgdane.UsageDANEEE,
					Selector:     pkgdane.SelectorSPKI,
					MatchingType: pkgdane.MatchingSHA256,
					Certificate:  pin.Hex(),
				})
			}
		}
		w.WriteMsg(m)
	})

	dnsServer := &dns.Server{PacketConn: dnsListener, Handler: dnsHandler}
	go dnsServer.ActivateAndServe()

	infra := &testInfra{
		dnsAddr:    dnsListener.LocalAddr().String(),
		tlsAddr:    tlsListener.Addr().String(),
		certFile:   writeCertFile(t, certDER),
		pinsFile:   writePinsFile(t, map[string][]pinstore.Pin{hostname: {{Digest: pin}}}),
		hostname:   hostname,
		port:       uint16(port),
		pin:        pin,
		dnsServer:  dnsServer,
		httpServer: httpServer,
	}
	t.Cleanup(infra.Close)
	return infra
}

func (ti *testInfra) Close() {
	ti.httpServer.Close()
	ti.dnsServer.Shutdown()
}

// captureOutput redirects command output into a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// withFormat sets the --format value for the test.
func withFormat(t *testing.T, f string) {
	t.Helper()
	old := format
	format = f
	t.Cleanup(func() { format = old })
}

// setFlags sets command flags for the test and restores every flag of the
// command to its default afterwards.
func setFlags(t *testing.T, cmd *cobra.Command, values map[string]string) {
	t.Helper()
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
	for name, value := range values {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
}
