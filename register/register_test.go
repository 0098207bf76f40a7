package register

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/norrin-labs/fcmpush/internal/checkinpb"
	"github.com/norrin-labs/fcmpush/webpush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckin(t *testing.T) {
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))

		var err error
		receivedBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		resp := &checkinpb.AndroidCheckinResponse{AndroidId: 123456789, SecurityToken: 987654321}
		data, err := resp.Marshal()
		require.NoError(t, err)
		w.Write(data)
	}))
	defer srv.Close()

	orig := checkinURL
	checkinURL = srv.URL
	defer func() { checkinURL = orig }()

	androidID, securityToken, err := checkin(context.Background(), srv.Client(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), androidID)
	assert.Equal(t, uint64(987654321), securityToken)

	var req checkinpb.AndroidCheckinRequest
	require.NoError(t, req.Unmarshal(receivedBody))
	assert.Equal(t, "en_US", req.Locale)
	assert.Equal(t, "America/New_York", req.TimeZone)
	assert.Equal(t, int32(3), req.Version)
	require.NotNil(t, req.Checkin)
	assert.Equal(t, checkinpb.DeviceType_DEVICE_CHROME_BROWSER, req.Checkin.Type)
	require.NotNil(t, req.Checkin.ChromeBuild)
	assert.Equal(t, "87.0.4280.66", req.Checkin.ChromeBuild.ChromeVersion)
}

func TestCheckinRejectsZeroIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := &checkinpb.AndroidCheckinResponse{AndroidId: 0, SecurityToken: 0}
		data, _ := resp.Marshal()
		w.Write(data)
	}))
	defer srv.Close()

	orig := checkinURL
	checkinURL = srv.URL
	defer func() { checkinURL = orig }()

	_, _, err := checkin(context.Background(), srv.Client(), 0, 0)
	assert.Error(t, err)
}

func TestGCMRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AidLogin 111:222", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "X-subtype=my-app")
		assert.Contains(t, string(body), "device=111")
		w.Write([]byte("token=abc123"))
	}))
	defer srv.Close()

	orig := gcmRegisterURL
	gcmRegisterURL = srv.URL
	defer func() { gcmRegisterURL = orig }()

	token, err := gcmRegister(context.Background(), srv.Client(), "my-app", 111, 222)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestGCMRegisterUnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-a-token-response"))
	}))
	defer srv.Close()

	orig := gcmRegisterURL
	gcmRegisterURL = srv.URL
	defer func() { gcmRegisterURL = orig }()

	_, err := gcmRegister(context.Background(), srv.Client(), "app", 1, 2)
	assert.Error(t, err)
}

func TestGenerateFirebaseFIDShapeAndRandomness(t *testing.T) {
	a, err := generateFirebaseFID()
	require.NoError(t, err)
	b, err := generateFirebaseFID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	decoded, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, decoded, 17)
	assert.Equal(t, byte(0x70), decoded[0]&0xF0)
}

func TestPostInstallations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/proj123/installations", r.URL.Path)
		assert.Equal(t, "apikey", r.Header.Get("x-goog-api-key"))
		assert.NotEmpty(t, r.Header.Get("x-firebase-client"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "app1", body["appId"])
		assert.Equal(t, "FIS_v2", body["authVersion"])
		assert.NotEmpty(t, body["fid"])

		json.NewEncoder(w).Encode(map[string]any{
			"authToken": map[string]string{"token": "install-token"},
		})
	}))
	defer srv.Close()

	orig := firebaseInstallationsBaseURL
	firebaseInstallationsBaseURL = srv.URL
	defer func() { firebaseInstallationsBaseURL = orig }()

	token, err := postInstallations(context.Background(), srv.Client(), "app1", "proj123", "apikey")
	require.NoError(t, err)
	assert.Equal(t, "install-token", token)
}

func TestPostFCMRegistration(t *testing.T) {
	keys, err := webpush.GenerateKeyPair()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/proj123/registrations", r.URL.Path)
		assert.Equal(t, "install-token", r.Header.Get("x-goog-firebase-installations-auth"))

		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		web := body["web"]
		assert.Equal(t, "vapid-key", web["applicationPubKey"])
		assert.Contains(t, web["endpoint"], "gcm-tok")

		json.NewEncoder(w).Encode(map[string]string{"token": "fcm-token-value"})
	}))
	defer srv.Close()

	orig := fcmRegistrationsBaseURL
	fcmRegistrationsBaseURL = srv.URL
	defer func() { fcmRegistrationsBaseURL = orig }()

	token, err := postFCMRegistration(context.Background(), srv.Client(), "proj123", "apikey", "vapid-key", "install-token", "gcm-tok", keys)
	require.NoError(t, err)
	assert.Equal(t, "fcm-token-value", token)
}
