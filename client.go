package fcmpush

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/norrin-labs/fcmpush/mcs"
	"github.com/norrin-labs/fcmpush/register"
	"github.com/norrin-labs/fcmpush/webpush"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets a custom logger for Client. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient sets a custom HTTP client for registration requests. The
// default is http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// newMCSTransport builds the Transport Listen dials. Tests override this to
// drive Listen over an in-memory connection instead of a real TLS dial.
var newMCSTransport = mcs.NewTLSTransport

// Client wires registration, the MCS session driver and the Web Push
// decryptor together into the single long-lived push client described by
// this module. A Client is used once per device identity: Register (or a
// caller supplying already-persisted DeviceCredentials) followed by Listen.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	mu      sync.Mutex
	session *mcs.Session

	onMessage      func([]byte)
	onPersistentID func(string)
	onConnected    func()
}

// NewClient constructs a Client. The zero Config resolves to the documented
// defaults (mtalk.google.com:5228, 600s heartbeat, 4096-byte records).
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		logger:     slog.Default(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers a callback for decrypted push payloads. Must be
// called before Listen.
func (c *Client) OnMessage(fn func([]byte)) { c.onMessage = fn }

// OnPersistentID registers a callback fired with the ';'-joined persistent
// id set every time it grows. Must be called before Listen.
func (c *Client) OnPersistentID(fn func(string)) { c.onPersistentID = fn }

// OnConnected registers a callback fired once the MCS LoginResponse arrives.
// Must be called before Listen.
func (c *Client) OnConnected(fn func()) { c.onConnected = fn }

// Register runs the four-step HTTPS registration sequence and returns the
// resulting device credentials. The caller is responsible for persisting
// them; this module does not read or write any files itself.
func (c *Client) Register(ctx context.Context, fb register.FirebaseParams) (DeviceCredentials, error) {
	keys, err := webpush.GenerateKeyPair()
	if err != nil {
		return DeviceCredentials{}, fmt.Errorf("fcmpush: generate keys: %w", err)
	}

	res, err := register.Register(ctx, c.loggingHTTPClient(), c.logger, fb, keys)
	if err != nil {
		return DeviceCredentials{}, err
	}

	creds := DeviceCredentials{
		AndroidID:     res.AndroidID,
		SecurityToken: res.SecurityToken,
		ECEPrivateKey: res.Keys.PrivateKey,
		ECEPublicKey:  res.Keys.PublicKey,
		AuthSecret:    res.Keys.AuthSecret,
		FCMToken:      res.FCMToken,
	}
	if err := creds.Validate(); err != nil {
		return DeviceCredentials{}, err
	}
	return creds, nil
}

// Listen opens an MCS session with creds and runs the receive loop until a
// fatal error, a peer close, or ctx cancellation. persistentIDs may be nil,
// meaning an empty set (a fresh device with no history). Listen blocks;
// callers that want to stop it early should cancel ctx.
func (c *Client) Listen(ctx context.Context, creds DeviceCredentials, persistentIDs *PersistentIDSet) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	cfg := c.cfg.withDefaults()

	transport := newMCSTransport(cfg.Host, cfg.Port)
	session, err := mcs.Open(ctx, transport, mcs.Credentials{
		AndroidID:     creds.AndroidID,
		SecurityToken: creds.SecurityToken,
		PrivateKey:    creds.ECEPrivateKey,
		AuthSecret:    creds.AuthSecret,
	}, persistentIDs, mcs.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		RecordSize:        cfg.RecordSize,
		Logger:            c.logger,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
	}()
	defer session.Close()

	if c.onConnected != nil {
		session.On(mcs.EventConnected, func(any) { c.onConnected() })
	}
	if c.onPersistentID != nil {
		session.On(mcs.EventPersistentID, func(p any) { c.onPersistentID(p.(string)) })
	}
	if c.onMessage != nil {
		session.On(mcs.EventMessage, func(p any) { c.onMessage([]byte(p.(string))) })
	}

	return session.ReceiveForever(ctx)
}

// PersistentIDs returns the live persistent-id set of the current session,
// or nil if Listen has not been called (or has returned).
func (c *Client) PersistentIDs() *PersistentIDSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.PersistentIDs()
}

// loggingHTTPClient wraps httpClient with request/response logging when
// VerboseLogging is set.
func (c *Client) loggingHTTPClient() *http.Client {
	if !c.cfg.VerboseLogging {
		return c.httpClient
	}
	transport := c.httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &loggingRoundTripper{inner: transport, logger: c.logger},
		Timeout:   c.httpClient.Timeout,
	}
}

// loggingRoundTripper logs every registration request and response at debug
// level.
type loggingRoundTripper struct {
	inner  http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t.logger.Debug(">>> "+req.Method, "url", req.URL.String())
	if req.Body != nil && req.Body != http.NoBody {
		bodyBytes, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err == nil {
			t.logger.Debug("  request body", "length", len(bodyBytes), "data", truncate(string(bodyBytes), 2000))
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		t.logger.Debug("<<< error", "error", err)
		return nil, err
	}

	t.logger.Debug("<<< response", "status", resp.StatusCode, "url", req.URL.String())
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr == nil {
		t.logger.Debug("  response body", "length", len(respBody), "data", truncate(string(respBody), 2000))
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
	}
	return resp, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// RegisterData mirrors fcm_register_data.json's on-disk shape: the subset of
// DeviceCredentials a host persists after Register, in the exact field
// names and nesting a compatible host application expects.
type RegisterData struct {
	ACG struct {
		ID            string `json:"ID"`
		SecurityToken string `json:"SecurityToken"`
	} `json:"acg"`
	ECE struct {
		AuthSecret string `json:"AuthSecret"`
		PrivateKey string `json:"PrivateKey"`
	} `json:"ece"`
	Token string `json:"Token"`
}

// ToRegisterData converts c into the persisted fcm_register_data.json
// shape. The receiver public key is not part of that shape: it is
// recomputed from the private key by FromRegisterData.
func (c DeviceCredentials) ToRegisterData() RegisterData {
	var d RegisterData
	d.ACG.ID = strconv.FormatUint(c.AndroidID, 10)
	d.ACG.SecurityToken = strconv.FormatUint(c.SecurityToken, 10)
	d.ECE.AuthSecret = base64.RawURLEncoding.EncodeToString(c.AuthSecret)
	d.ECE.PrivateKey = base64.RawURLEncoding.EncodeToString(c.ECEPrivateKey)
	d.Token = c.FCMToken
	return d
}

// FromRegisterData reconstructs DeviceCredentials from the persisted
// fcm_register_data.json shape, deriving the receiver public key from the
// stored private key.
func FromRegisterData(d RegisterData) (DeviceCredentials, error) {
	androidID, err := strconv.ParseUint(d.ACG.ID, 10, 64)
	if err != nil {
		return DeviceCredentials{}, &ConfigInvalidError{Field: "acg.ID", Detail: "not a decimal uint64"}
	}
	securityToken, err := strconv.ParseUint(d.ACG.SecurityToken, 10, 64)
	if err != nil {
		return DeviceCredentials{}, &ConfigInvalidError{Field: "acg.SecurityToken", Detail: "not a decimal uint64"}
	}
	authSecret, err := base64.RawURLEncoding.DecodeString(d.ECE.AuthSecret)
	if err != nil {
		return DeviceCredentials{}, &ConfigInvalidError{Field: "ece.AuthSecret", Detail: "not valid base64url"}
	}
	privateKey, err := base64.RawURLEncoding.DecodeString(d.ECE.PrivateKey)
	if err != nil {
		return DeviceCredentials{}, &ConfigInvalidError{Field: "ece.PrivateKey", Detail: "not valid base64url"}
	}
	publicKey, err := webpush.PublicKeyFromPrivate(privateKey)
	if err != nil {
		return DeviceCredentials{}, &ConfigInvalidError{Field: "ece.PrivateKey", Detail: err.Error()}
	}

	return DeviceCredentials{
		AndroidID:     androidID,
		SecurityToken: securityToken,
		ECEPrivateKey: privateKey,
		ECEPublicKey:  publicKey,
		AuthSecret:    authSecret,
		FCMToken:      d.Token,
	}, nil
}

// InitFCMData mirrors init_fcm_data.json, the per-project parameters a host
// loads from disk to drive Register.
type InitFCMData struct {
	AppID     string `json:"appid"`
	ProjectID string `json:"projectid"`
	APIKey    string `json:"apikey"`
	VAPIDKey  string `json:"vapidkey"`
}

// ToFirebaseParams converts d into the register package's input shape.
func (d InitFCMData) ToFirebaseParams() register.FirebaseParams {
	return register.FirebaseParams{
		AppID:     d.AppID,
		ProjectID: d.ProjectID,
		APIKey:    d.APIKey,
		VAPIDKey:  d.VAPIDKey,
	}
}
