package webhook_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/webhook"
)

// recordingStore records applied events; lookups resolve only "abc-123".
type recordingStore struct {
	applied []*model.ProviderEvent
}

func (s *recordingStore) Create(m *model.EmailMessage) error { return nil }

func (s *recordingStore) GetByID(id string) (*model.EmailMessage, error) {
	return &model.EmailMessage{ID: id}, nil
}

func (s *recordingStore) GetByProviderMessageID(providerID string) (*model.EmailMessage, error) {
	if providerID == "abc-123" {
		return &model.EmailMessage{ID: "msg_1", ProviderMessageID: providerID}, nil
	}
	return nil, apperrors.NewMessageNotFound(providerID)
}

func (s *recordingStore) MarkSent(id, providerMessageID string, at time.Time) error { return nil }
func (s *recordingStore) MarkFailed(id, errText string) error                       { return nil }

func (s *recordingStore) ApplyEvent(id string, ev *model.ProviderEvent) error {
	s.applied = append(s.applied, ev)
	return nil
}

type testSigner struct {
	key       *ecdsa.PrivateKey
	publicB64 string
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return &testSigner{key: key, publicB64: base64.StdEncoding.EncodeToString(der)}
}

func (s *testSigner) sign(t *testing.T, timestamp string, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(append([]byte(timestamp), body...))
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func signedRequest(t *testing.T, signer *testSigner, body string, at time.Time) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", strings.NewReader(body))
	req.Header.Set(webhook.HeaderTimestamp, ts)
	req.Header.Set(webhook.HeaderSignature, signer.sign(t, ts, []byte(body)))
	return req
}

func newTestHandler(t *testing.T, signer *testSigner, store *recordingStore) *webhook.Handler {
	t.Helper()
	verifier, err := webhook.NewVerifier(signer.publicB64, 600*time.Second, true)
	require.NoError(t, err)
	return webhook.NewHandler(verifier, service.NewEventProcessor(store))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleEvents_ValidSignedBatch(t *testing.T) {
	signer := newTestSigner(t)
	store := &recordingStore{}
	h := newTestHandler(t, signer, store)

	body := fmt.Sprintf(`[{"recipient":"dana@example.com","eventType":"open","providerMessageId":"abc-123","eventTimestamp":%d}]`, time.Now().Unix())
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, signedRequest(t, signer, body, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1), resp["processed"])
	assert.Equal(t, float64(0), resp["failed"])
	require.Len(t, store.applied, 1)
	assert.Equal(t, model.EventOpen, store.applied[0].Type)
}

func TestHandleEvents_SingleObjectIsNormalizedToBatch(t *testing.T) {
	signer := newTestSigner(t)
	store := &recordingStore{}
	h := newTestHandler(t, signer, store)

	body := fmt.Sprintf(`{"recipient":"dana@example.com","eventType":"delivered","providerMessageId":"abc-123","eventTimestamp":%d}`, time.Now().Unix())
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, signedRequest(t, signer, body, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, float64(1), resp["total"])
	require.Len(t, store.applied, 1)
}

func TestHandleEvents_InvalidSignatureIsRejected(t *testing.T) {
	signer := newTestSigner(t)
	store := &recordingStore{}
	h := newTestHandler(t, signer, store)

	body := `[{"eventType":"open","providerMessageId":"abc-123"}]`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", strings.NewReader(body))
	req.Header.Set(webhook.HeaderTimestamp, ts)
	req.Header.Set(webhook.HeaderSignature, signer.sign(t, ts, []byte("tampered body")))

	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.applied, "no partial processing on authenticity failure")
}

func TestHandleEvents_MissingHeadersAreRejected(t *testing.T) {
	signer := newTestSigner(t)
	h := newTestHandler(t, signer, &recordingStore{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", strings.NewReader(`[]`))
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEvents_StaleTimestampIsRejectedDespiteValidSignature(t *testing.T) {
	signer := newTestSigner(t)
	h := newTestHandler(t, signer, &recordingStore{})

	body := `[{"eventType":"open","providerMessageId":"abc-123"}]`
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, signedRequest(t, signer, body, time.Now().Add(-11*time.Minute)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEvents_UnparsablePayloadIsBadRequest(t *testing.T) {
	signer := newTestSigner(t)
	h := newTestHandler(t, signer, &recordingStore{})

	body := `this is not json`
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, signedRequest(t, signer, body, time.Now()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvents_UnresolvableEventDoesNotFailTheBatch(t *testing.T) {
	signer := newTestSigner(t)
	store := &recordingStore{}
	h := newTestHandler(t, signer, store)

	now := time.Now().Unix()
	body := fmt.Sprintf(`[
		{"eventType":"delivered","providerMessageId":"unknown-id","eventTimestamp":%d},
		{"eventType":"click","providerMessageId":"abc-123","eventTimestamp":%d,"url":"https://listings.example.com/42"}
	]`, now, now)

	rec := httptest.NewRecorder()
	h.HandleEvents(rec, signedRequest(t, signer, body, time.Now()))

	// Still 200: the provider must never be told to retry.
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, float64(1), resp["processed"])
	assert.Equal(t, float64(1), resp["failed"])
	assert.Equal(t, float64(2), resp["total"])
	require.Len(t, store.applied, 1)
	assert.Equal(t, "https://listings.example.com/42", store.applied[0].URL)
}

func TestHandleEvents_BypassModeSkipsVerification(t *testing.T) {
	store := &recordingStore{}
	verifier, err := webhook.NewVerifier("", 600*time.Second, false)
	require.NoError(t, err)
	h := webhook.NewHandler(verifier, service.NewEventProcessor(store))

	body := fmt.Sprintf(`[{"eventType":"bounce","providerMessageId":"abc-123","eventTimestamp":%d,"reason":"mailbox full","statusCode":"550"}]`, time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", strings.NewReader(body))

	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.applied, 1)
	assert.Equal(t, model.EventBounce, store.applied[0].Type)
	assert.Equal(t, "mailbox full", store.applied[0].Reason)
}
