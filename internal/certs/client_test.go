package certs

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authority struct {
	t *testing.T

	mu         sync.Mutex
	challenges map[string]string
	publicKeys map[string]*ecdsa.PublicKey
	subjects   []string
	rejectAll  bool

	caKey  *ecdsa.PrivateKey
	caCert *x509.Certificate
	caPEM  []byte
}

func newAuthority(t *testing.T) *authority {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &authority{
		t:          t,
		challenges: map[string]string{},
		publicKeys: map[string]*ecdsa.PublicKey{},
		caKey:      key,
		caCert:     cert,
		caPEM:      pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func (a *authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rejectAll {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "node is not allowed"})
		return
	}

	switch r.URL.Path {
	case "/ca/request-challenge":
		var req challengeRequest
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))

		pubPEM, err := base64.StdEncoding.DecodeString(req.PublicKey)
		require.NoError(a.t, err)
		block, _ := pem.Decode(pubPEM)
		require.NotNil(a.t, block)
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		require.NoError(a.t, err)

		a.publicKeys[req.NodeID] = pub.(*ecdsa.PublicKey)
		a.challenges[req.NodeID] = "challenge-" + req.NodeID
		_ = json.NewEncoder(w).Encode(challengeResponse{Challenge: a.challenges[req.NodeID]})

	case "/ca/issue-certificate":
		var req issueRequest
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))

		if req.Challenge != a.challenges[req.NodeID] {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "unknown challenge"})
			return
		}

		signature, err := base64.StdEncoding.DecodeString(req.Signature)
		require.NoError(a.t, err)
		digest := sha256.Sum256([]byte(req.Challenge))
		if !ecdsa.VerifyASN1(a.publicKeys[req.NodeID], digest[:], signature) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "bad signature"})
			return
		}

		csrPEM, err := base64.StdEncoding.DecodeString(req.CSR)
		require.NoError(a.t, err)
		block, _ := pem.Decode(csrPEM)
		require.NotNil(a.t, block)
		csr, err := x509.ParseCertificateRequest(block.Bytes)
		require.NoError(a.t, err)
		require.NoError(a.t, csr.CheckSignature())
		a.subjects = append(a.subjects, csr.Subject.CommonName)

		template := &x509.Certificate{
			SerialNumber: big.NewInt(int64(len(a.subjects) + 1)),
			Subject:      csr.Subject,
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(time.Hour),
		}
		der, err := x509.CreateCertificate(rand.Reader, template, a.caCert, csr.PublicKey, a.caKey)
		require.NoError(a.t, err)

		_ = json.NewEncoder(w).Encode(issueResponse{
			Certificate: base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
			CABundle:    base64.StdEncoding.EncodeToString(a.caPEM),
		})

	default:
		http.NotFound(w, r)
	}
}

func setUp(t *testing.T) (*authority, *Client) {
	ca := newAuthority(t)
	srv := httptest.NewServer(ca)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return ca, client
}

func TestIssueCertificate(t *testing.T) {
	t.Run("issues node certificate into conf", func(t *testing.T) {
		ca, client := setUp(t)
		dir := t.TempDir()

		bundle, err := client.IssueCertificate(context.Background(), dir, "abc123")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "conf", "node.key"), bundle.KeyPath)
		assert.Equal(t, []string{"node.abc123"}, ca.subjects)

		for _, path := range []string{bundle.KeyPath, bundle.CertPath, bundle.CAPath} {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.NotZero(t, info.Size())
		}

		info, err := os.Stat(bundle.KeyPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		certPEM, err := os.ReadFile(bundle.CertPath)
		require.NoError(t, err)
		block, _ := pem.Decode(certPEM)
		require.NotNil(t, block)
		cert, err := x509.ParseCertificate(block.Bytes)
		require.NoError(t, err)
		assert.NoError(t, cert.CheckSignatureFrom(ca.caCert))

		keyPEM, err := os.ReadFile(bundle.KeyPath)
		require.NoError(t, err)
		keyBlock, _ := pem.Decode(keyPEM)
		require.NotNil(t, keyBlock)
		assert.Equal(t, "PRIVATE KEY", keyBlock.Type)
		key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		require.NoError(t, err)
		assert.True(t, key.(*ecdsa.PrivateKey).PublicKey.Equal(cert.PublicKey))
	})

	t.Run("second call replaces previous artifacts", func(t *testing.T) {
		_, client := setUp(t)
		dir := t.TempDir()

		first, err := client.IssueCertificate(context.Background(), dir, "abc123")
		require.NoError(t, err)
		second, err := client.IssueCertificate(context.Background(), dir, "abc123")
		require.NoError(t, err)

		assert.NotEqual(t, first.Key, second.Key)
		content, err := os.ReadFile(second.KeyPath)
		require.NoError(t, err)
		assert.Equal(t, second.Key, content)

		entries, err := os.ReadDir(filepath.Join(dir, "conf"))
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("sdk profile", func(t *testing.T) {
		ca, client := setUp(t)
		dir := t.TempDir()

		bundle, err := client.IssueSDKCertificate(context.Background(), dir, "abc123")
		require.NoError(t, err)
		assert.Equal(t, []string{"console.sdk.abc123"}, ca.subjects)
		assert.FileExists(t, filepath.Join(dir, "sdk.key"))
		assert.FileExists(t, filepath.Join(dir, "sdk.crt"))
		assert.FileExists(t, filepath.Join(dir, "ca.crt"))
		assert.Equal(t, filepath.Join(dir, "sdk.crt"), bundle.CertPath)
	})

	t.Run("rejection writes nothing", func(t *testing.T) {
		ca, client := setUp(t)
		ca.rejectAll = true
		dir := t.TempDir()

		_, err := client.IssueCertificate(context.Background(), dir, "abc123")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authority))
		assert.Contains(t, err.Error(), "node is not allowed")
		assert.Contains(t, err.Error(), "certificate")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unreachable authority", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		client, err := NewClient(srv.URL)
		require.NoError(t, err)
		srv.Close()

		_, err = client.IssueCertificate(context.Background(), t.TempDir(), "abc123")
		assert.True(t, errs.Is(err, errs.Authority))
	})

	t.Run("empty node id", func(t *testing.T) {
		_, client := setUp(t)
		_, err := client.IssueCertificate(context.Background(), t.TempDir(), " ")
		assert.True(t, errs.Is(err, errs.Authority))
	})
}

func TestDecodePEM(t *testing.T) {
	_, err := decodePEM("", "certificate")
	assert.Error(t, err)

	_, err = decodePEM("!!!", "certificate")
	assert.Error(t, err)

	_, err = decodePEM(base64.StdEncoding.EncodeToString([]byte("plain")), "certificate")
	assert.Error(t, err)
}
