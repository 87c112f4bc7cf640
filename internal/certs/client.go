// Package certs issues node certificates through the challenge/response exchange of the certificate authority
package certs

import (
	"bytes"
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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	challengePath = "ca/request-challenge"
	issuePath     = "ca/issue-certificate"

	defaultTimeout = 10 * time.Second
)

// Profile describes the subject and file names of an issued certificate
type Profile struct {
	CommonNamePrefix string
	KeyFile          string
	CertFile         string
	CAFile           string
}

var (
	// NodeProfile is used for the light node itself
	NodeProfile = Profile{CommonNamePrefix: "node.", KeyFile: "node.key", CertFile: "node.crt", CAFile: "ca.crt"}
	// SDKProfile is used for the console sdk connecting to the node
	SDKProfile = Profile{CommonNamePrefix: "console.sdk.", KeyFile: "sdk.key", CertFile: "sdk.crt", CAFile: "ca.crt"}
)

// Bundle is the outcome of an issuance, contents and where they were written
type Bundle struct {
	Key  []byte
	Cert []byte
	CA   []byte

	KeyPath  string
	CertPath string
	CAPath   string
}

// Client for the certificate authority
type Client struct {
	base   *url.URL
	http   *http.Client
	logger zerolog.Logger
}

// Option configures a client
type Option func(*Client)

// WithTimeout sets the timeout of each authority call
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a certificate authority client
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid authority url %q", baseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("authority url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// IssueCertificate issues the node certificate into <nodeDir>/conf
func (c *Client) IssueCertificate(ctx context.Context, nodeDir, nodeID string) (Bundle, error) {
	return c.Issue(ctx, filepath.Join(nodeDir, "conf"), nodeID, NodeProfile)
}

// IssueSDKCertificate issues a console sdk certificate into dir
func (c *Client) IssueSDKCertificate(ctx context.Context, dir, nodeID string) (Bundle, error) {
	return c.Issue(ctx, dir, nodeID, SDKProfile)
}

type challengeRequest struct {
	NodeID    string `json:"original_node_id"`
	PublicKey string `json:"public_key"`
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

type issueRequest struct {
	NodeID    string `json:"original_node_id"`
	CSR       string `json:"csr"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

type issueResponse struct {
	Certificate string `json:"certificate"`
	CABundle    string `json:"ca_bundle"`
}

// Issue runs the whole exchange for profile and writes the three artifacts into dir.
// Files are only written once the authority returned a usable certificate, previous
// artifacts are replaced.
func (c *Client) Issue(ctx context.Context, dir, nodeID string, profile Profile) (Bundle, error) {
	if strings.TrimSpace(nodeID) == "" {
		return Bundle{}, errs.New(errs.Authority, "node id is required to request a certificate")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "failed to generate private key")
	}

	keyPEM, pubPEM, err := encodeKey(key)
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "failed to encode private key")
	}

	c.logger.Debug().Str("node_id", nodeID).Msg("requesting certificate challenge")

	var challenge challengeResponse
	err = c.post(ctx, challengePath, challengeRequest{
		NodeID:    nodeID,
		PublicKey: base64.StdEncoding.EncodeToString(pubPEM),
	}, &challenge)
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "certificate challenge request failed")
	}
	if challenge.Challenge == "" {
		return Bundle{}, errs.New(errs.Authority, "certificate authority returned an empty challenge")
	}

	digest := sha256.Sum256([]byte(challenge.Challenge))
	signature, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "failed to sign certificate challenge")
	}

	csrPEM, err := createCSR(key, profile.CommonNamePrefix+nodeID)
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "failed to create certificate request")
	}

	c.logger.Debug().Str("node_id", nodeID).Msg("requesting certificate issuance")

	var issued issueResponse
	err = c.post(ctx, issuePath, issueRequest{
		NodeID:    nodeID,
		CSR:       base64.StdEncoding.EncodeToString(csrPEM),
		Challenge: challenge.Challenge,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}, &issued)
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "certificate issuance failed")
	}

	cert, err := decodePEM(issued.Certificate, "certificate")
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "certificate authority returned an invalid certificate")
	}

	ca, err := decodePEM(issued.CABundle, "ca bundle")
	if err != nil {
		return Bundle{}, errs.Wrap(errs.Authority, err, "certificate authority returned an invalid ca bundle")
	}

	bundle := Bundle{
		Key:      keyPEM,
		Cert:     cert,
		CA:       ca,
		KeyPath:  filepath.Join(dir, profile.KeyFile),
		CertPath: filepath.Join(dir, profile.CertFile),
		CAPath:   filepath.Join(dir, profile.CAFile),
	}

	if err := bundle.write(); err != nil {
		return Bundle{}, err
	}

	c.logger.Info().Str("node_id", nodeID).Str("dir", dir).Msg("certificate issued")
	return bundle, nil
}

func (b Bundle) write() error {
	files := []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{b.KeyPath, b.Key, 0o600},
		{b.CertPath, b.Cert, 0o644},
		{b.CAPath, b.CA, 0o644},
	}

	for _, f := range files {
		if err := fsutil.WriteFileAtomic(f.path, f.data, f.perm); err != nil {
			return errs.Wrap(errs.Authority, err, "failed to store certificate material")
		}
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	u := c.base.ResolveReference(&url.URL{Path: path}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return errors.Errorf("authority rejected the request with status code %d: %s", resp.StatusCode, rejection(resBody))
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return errors.Wrap(err, "malformed authority response")
	}

	return nil
}

func rejection(body []byte) string {
	var detail struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != nil {
		return fmt.Sprint(detail.Detail)
	}
	return strings.TrimSpace(string(body))
}

func encodeKey(key *ecdsa.PrivateKey) ([]byte, []byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	return keyPEM, pubPEM, nil
}

func createCSR(key *ecdsa.PrivateKey, commonName string) ([]byte, error) {
	template := x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: commonName},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}), nil
}

func decodePEM(encoded, what string) ([]byte, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, errors.Errorf("%s is missing", what)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.Wrapf(err, "%s is not base64", what)
	}

	if block, _ := pem.Decode(data); block == nil {
		return nil, errors.Errorf("%s is not pem encoded", what)
	}

	return data, nil
}
