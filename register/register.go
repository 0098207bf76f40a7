// Package register implements the four-step HTTPS registration sequence
// that produces the credential bundle the MCS client needs: Android checkin,
// GCM registration, a Firebase installation, and finally an FCM Web Push
// registration. Each step's output feeds the next.
package register

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/norrin-labs/fcmpush/internal/checkinpb"
	"github.com/norrin-labs/fcmpush/webpush"
)

// Base URLs are package-level vars so tests can override them.
var (
	checkinURL                   = "https://android.clients.google.com/checkin"
	gcmRegisterURL               = "https://android.clients.google.com/c2dm/register3"
	firebaseInstallationsBaseURL = "https://firebaseinstallations.googleapis.com"
	fcmRegistrationsBaseURL      = "https://fcmregistrations.googleapis.com"
)

// serverKey is the fixed 65-byte uncompressed P-256 public key the GCM
// registration endpoint expects as the base64url "sender" parameter. It
// identifies the GCM/FCM project this client registers against and is not
// device- or account-specific.
var serverKey = []byte{
	0x04, 0x33, 0x94, 0xf7, 0xdf, 0xa1, 0xeb, 0xb1,
	0xdc, 0x03, 0xa2, 0x5e, 0x15, 0x71, 0xdb, 0x48,
	0xd3, 0x2e, 0xed, 0xed, 0xb2, 0x34, 0xdb, 0xb7,
	0x47, 0x3a, 0x0c, 0x8f, 0xc4, 0xcc, 0xe1, 0x6f,
	0x3c, 0x8c, 0x84, 0xdf, 0xab, 0xb6, 0x66, 0x3e,
	0xf2, 0x0c, 0xd4, 0x8b, 0xfe, 0xe3, 0xf9, 0x76,
	0x2f, 0x14, 0x1c, 0x63, 0x08, 0x6a, 0x6f, 0x2d,
	0xb1, 0x1a, 0x95, 0xb0, 0xce, 0x37, 0xc0, 0x9c,
	0x6e,
}

// FirebaseParams names the per-project values the host supplies, loaded by
// convention from init_fcm_data.json.
type FirebaseParams struct {
	AppID     string
	ProjectID string
	APIKey    string
	VAPIDKey  string
}

// Result is the credential bundle produced by Register, shaped for direct
// conversion into a DeviceCredentials (the caller owns persistence).
type Result struct {
	AndroidID     uint64
	SecurityToken uint64
	FCMToken      string
	Keys          *webpush.KeyPair
}

// Register runs all four steps and returns the resulting credential bundle.
// keys is the ECE keypair to register (typically freshly generated with
// webpush.GenerateKeyPair); httpClient and logger default to
// http.DefaultClient and slog.Default() if nil.
func Register(ctx context.Context, httpClient *http.Client, logger *slog.Logger, fb FirebaseParams, keys *webpush.KeyPair) (*Result, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	androidID, securityToken, err := checkin(ctx, httpClient, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("register: checkin: %w", err)
	}
	logger.Debug("register: checkin complete", "android_id", androidID)

	gcmToken, err := gcmRegister(ctx, httpClient, fb.AppID, androidID, securityToken)
	if err != nil {
		return nil, fmt.Errorf("register: gcm register: %w", err)
	}
	logger.Debug("register: gcm register complete")

	installToken, err := postInstallations(ctx, httpClient, fb.AppID, fb.ProjectID, fb.APIKey)
	if err != nil {
		return nil, fmt.Errorf("register: firebase installations: %w", err)
	}
	logger.Debug("register: firebase installation complete")

	fcmToken, err := postFCMRegistration(ctx, httpClient, fb.ProjectID, fb.APIKey, fb.VAPIDKey, installToken, gcmToken, keys)
	if err != nil {
		return nil, fmt.Errorf("register: fcm registration: %w", err)
	}
	logger.Debug("register: fcm registration complete")

	return &Result{
		AndroidID:     androidID,
		SecurityToken: securityToken,
		FCMToken:      fcmToken,
		Keys:          keys,
	}, nil
}

// checkin performs the Android checkin request, identifying as a Chrome
// browser client per the registration contract. If androidID is non-zero
// this is a re-checkin carrying the existing identity.
func checkin(ctx context.Context, httpClient *http.Client, androidID uint64, securityToken uint64) (uint64, uint64, error) {
	build := DefaultChromeBuild()
	req := &checkinpb.AndroidCheckinRequest{
		Version:          3,
		Fragment:         0,
		Locale:           "en_US",
		TimeZone:         "America/New_York",
		UserSerialNumber: 0,
		Checkin: &checkinpb.AndroidCheckinProto{
			Type: checkinpb.DeviceType_DEVICE_CHROME_BROWSER,
			ChromeBuild: &checkinpb.ChromeBuildProto{
				Platform:      build.Platform,
				ChromeVersion: build.ChromeVersion,
				Channel:       build.Channel,
			},
		},
	}
	if androidID != 0 {
		id := int64(androidID)
		req.Id = &id
		req.SecurityToken = &securityToken
	}

	body, err := req.Marshal()
	if err != nil {
		return 0, 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, checkinURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")

	respBody, err := doRequest(httpClient, httpReq)
	if err != nil {
		return 0, 0, err
	}

	var resp checkinpb.AndroidCheckinResponse
	if err := resp.Unmarshal(respBody); err != nil {
		return 0, 0, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.GetAndroidId() == 0 || resp.GetSecurityToken() == 0 {
		return 0, 0, fmt.Errorf("checkin did not return a valid android_id/security_token")
	}
	return resp.GetAndroidId(), resp.GetSecurityToken(), nil
}

// gcmRegister registers appID against the fixed serverKey, returning the GCM
// registration token.
func gcmRegister(ctx context.Context, httpClient *http.Client, appID string, androidID, securityToken uint64) (string, error) {
	senderKey := base64.RawURLEncoding.EncodeToString(serverKey)

	form := strings.NewReader(fmt.Sprintf(
		"app=org.chromium.linux&X-subtype=%s&device=%s&sender=%s",
		appID, strconv.FormatUint(androidID, 10), senderKey,
	))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, gcmRegisterURL, form)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", fmt.Sprintf("AidLogin %d:%d", androidID, securityToken))

	respBody, err := doRequest(httpClient, httpReq)
	if err != nil {
		return "", err
	}

	token, found := strings.CutPrefix(strings.TrimSpace(string(respBody)), "token=")
	if !found {
		return "", fmt.Errorf("unexpected response: %s", string(respBody))
	}
	return token, nil
}

// generateFirebaseFID produces a random Firebase installation ID: 17 random
// bytes with the top nibble of the first byte forced to 0x7, base64url
// encoded without padding.
func generateFirebaseFID() (string, error) {
	buf := make([]byte, 17)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	buf[0] = 0x70 | (buf[0] & 0x0F)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func postInstallations(ctx context.Context, httpClient *http.Client, appID, projectID, apiKey string) (string, error) {
	fid, err := generateFirebaseFID()
	if err != nil {
		return "", fmt.Errorf("generate fid: %w", err)
	}

	reqBody, err := json.Marshal(map[string]string{
		"appId":       appID,
		"authVersion": "FIS_v2",
		"sdkVersion":  "w:0.6.4",
		"fid":         fid,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/installations", firebaseInstallationsBaseURL, projectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)
	httpReq.Header.Set("x-firebase-client", base64.RawURLEncoding.EncodeToString([]byte(`{"heartbeats":[],"version":2}`)))

	respBody, err := doRequest(httpClient, httpReq)
	if err != nil {
		return "", err
	}

	var parsed struct {
		AuthToken struct {
			Token string `json:"token"`
		} `json:"authToken"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.AuthToken.Token == "" {
		return "", fmt.Errorf("response missing authToken.token")
	}
	return parsed.AuthToken.Token, nil
}

func postFCMRegistration(ctx context.Context, httpClient *http.Client, projectID, apiKey, vapidKey, installToken, gcmToken string, keys *webpush.KeyPair) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"web": map[string]string{
			"applicationPubKey": vapidKey,
			"auth":              base64.RawURLEncoding.EncodeToString(keys.AuthSecret),
			"endpoint":          "https://fcm.googleapis.com/fcm/send/" + gcmToken,
			"p256dh":            base64.RawURLEncoding.EncodeToString(keys.PublicKey),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/registrations", fcmRegistrationsBaseURL, projectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)
	httpReq.Header.Set("x-goog-firebase-installations-auth", installToken)

	respBody, err := doRequest(httpClient, httpReq)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("response missing token")
	}
	return parsed.Token, nil
}

func doRequest(httpClient *http.Client, req *http.Request) ([]byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
