package integration

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ergoveritas/config"
	httpHandler "ergoveritas/internal/adapter/http/handler"
	"ergoveritas/internal/adapter/http/middleware"
	redisStorage "ergoveritas/internal/adapter/storage/redis"
	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/internal/service"
	"ergoveritas/pkg/logger"
	"ergoveritas/pkg/merkle"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack over in-memory repositories and
// an in-memory Redis (miniredis). This exercises the real HTTP layer,
// middleware, handlers, services and Redis stores end-to-end.

const (
	adminPassword = "operator-pass"
	aesTestKey    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

// adminHash is computed once; Argon2id is deliberately slow.
var adminHash = sync.OnceValue(func() string {
	h, err := service.NewArgon2HashService().Hash(adminPassword)
	if err != nil {
		panic(err)
	}
	return h
})

type appOptions struct {
	rateLimit    int64
	noSigningKey bool
	anchorURL    string
	anchorSecret string
}

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	store  *memStore
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWith(t, appOptions{})
}

func newTestAppWith(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	// Signing keys
	var keys config.Ed25519Config
	if !opts.noSigningKey {
		priv, pub, err := service.GenerateEd25519KeyPair()
		require.NoError(t, err)
		keys = config.Ed25519Config{PrivateKeyDERB64: priv, PublicKeyDERB64: pub}
	}
	signer := service.NewEd25519Signer(service.NewEd25519KeyProvider(keys))

	// Core services with real implementations
	encSvc, err := service.NewAESEncryptionService(aesTestKey)
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!!!!", time.Hour, "ergoveritas-test")

	// In-memory repos
	store := newMemStore()
	receiptRepo := &memReceiptRepo{store: store}
	batchRepo := &memBatchRepo{store: store}
	disputeRepo := &memDisputeRepo{store: store}

	log := logger.New("error", false)

	notifier := service.NewAnchorNotifier(
		&memDeliveryRepo{store: store},
		sigSvc,
		&http.Client{Timeout: 2 * time.Second},
		opts.anchorURL,
		opts.anchorSecret,
		log,
	)

	// Business services
	receiptSvc := service.NewReceiptService(receiptRepo, signer, log)
	batchSvc := service.NewBatchService(
		receiptRepo,
		batchRepo,
		&memTransactor{store: store},
		redisStorage.NewBuildLock(rdb),
		notifier,
		service.BatchServiceOptions{BatchCap: 1000, LockTTL: time.Minute},
		log,
	)
	verifySvc := service.NewVerifyService(receiptRepo, redisStorage.NewVerifyCache(rdb), log)
	disputeSvc := service.NewDisputeService(disputeRepo, receiptRepo, encSvc, 0, log)
	adminSvc := service.NewAdminService(receiptRepo, batchRepo, hashSvc, tokenSvc, adminHash(), 0, log)
	auditSvc := service.NewAuditService(&memAuditRepo{store: store}, log)

	limit := opts.rateLimit
	if limit == 0 {
		limit = 10_000
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ReceiptSvc:     receiptSvc,
		BatchSvc:       batchSvc,
		VerifySvc:      verifySvc,
		DisputeSvc:     disputeSvc,
		AdminSvc:       adminSvc,
		Signer:         signer,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		RateLimits:     middleware.RateLimitRules(limit, time.Minute),
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server: server,
		redis:  mr,
		store:  store,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// envelope is the success/error response shape.
type envelope struct {
	Data      json.RawMessage        `json:"data"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details"`
	RequestID string                 `json:"request_id"`
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// issue creates a sha256 receipt and returns its bundle.
func (a *testApp) issue(t *testing.T, hashValue string) domain.ReceiptBundle {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
		"hash_algorithm": "sha256",
		"hash_value":     hashValue,
	}, "")
	require.Equal(t, http.StatusCreated, status, "error_code=%s", env.ErrorCode)
	return decodeData[domain.ReceiptBundle](t, env)
}

func (a *testApp) queue(t *testing.T, receiptID string) {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/anchor/queue", map[string]string{"receipt_id": receiptID}, "")
	require.Equal(t, http.StatusOK, status, "error_code=%s", env.ErrorCode)
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"password": adminPassword}, "")
	require.Equal(t, http.StatusOK, status, "error_code=%s", env.ErrorCode)
	return decodeData[struct {
		Token string `json:"token"`
	}](t, env).Token
}

func randomHex(t *testing.T) string {
	t.Helper()
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return hex.EncodeToString(sum[:])
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_ReceiptVerifiesWithPublishedKey(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	hashValue := "5e3" + strings.Repeat("0a", 30) + "f"
	require.Len(t, hashValue, 64)

	bundle := app.issue(t, hashValue)
	assert.Equal(t, hashValue, bundle.Payload.HashValue)
	assert.Equal(t, "public", bundle.Payload.Visibility)
	assert.Equal(t, domain.AnchorStatusNone, bundle.AnchorStatus)
	assert.Equal(t, "Ed25519", bundle.Alg)

	status, env := app.do(t, http.MethodGet, "/api/v1/public-key", nil, "")
	require.Equal(t, http.StatusOK, status)
	key := decodeData[ports.PublicKeyInfo](t, env)
	assert.Equal(t, bundle.KID, key.KID)

	raw, err := base64.StdEncoding.DecodeString(key.PublicKeyRawB64)
	require.NoError(t, err)
	require.Len(t, raw, ed25519.PublicKeySize)

	sig, err := base64.StdEncoding.DecodeString(bundle.Signature)
	require.NoError(t, err)

	// Verification needs nothing but the published key and the canonical bytes.
	assert.True(t, ed25519.Verify(ed25519.PublicKey(raw), bundle.Payload.Bytes(), sig))

	// Fetching the receipt reproduces the same signed payload.
	status, env = app.do(t, http.MethodGet, "/api/v1/receipts/"+bundle.Payload.ReceiptID, nil, "")
	require.Equal(t, http.StatusOK, status)
	fetched := decodeData[domain.ReceiptBundle](t, env)
	assert.Equal(t, bundle.Payload, fetched.Payload)
	assert.Equal(t, bundle.Signature, fetched.Signature)
}

func TestIntegration_QueueBuildCommitsMerkleRoot(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	h1, h2 := randomHex(t), randomHex(t)
	r1 := app.issue(t, h1)
	time.Sleep(2 * time.Millisecond) // distinct created_at fixes leaf order
	r2 := app.issue(t, h2)

	app.queue(t, r1.Payload.ReceiptID)
	app.queue(t, r2.Payload.ReceiptID)

	token := app.login(t)
	status, env := app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	require.Equal(t, http.StatusCreated, status, "error_code=%s", env.ErrorCode)
	built := decodeData[ports.BuildResult](t, env)
	assert.Equal(t, 2, built.ReceiptCount)
	assert.Equal(t, domain.BatchStatusBuilt, built.Status)

	leaf := func(v string) []byte {
		sum := sha256.Sum256([]byte("sha256:" + v))
		return sum[:]
	}
	expected := sha256.Sum256(append(leaf(h1), leaf(h2)...))
	assert.Equal(t, hex.EncodeToString(expected[:]), built.MerkleRoot)

	for _, id := range []string{r1.Payload.ReceiptID, r2.Payload.ReceiptID} {
		status, env := app.do(t, http.MethodGet, "/api/v1/receipts/"+id, nil, "")
		require.Equal(t, http.StatusOK, status)
		b := decodeData[domain.ReceiptBundle](t, env)
		assert.Equal(t, domain.AnchorStatusBuilt, b.AnchorStatus)
		require.NotNil(t, b.AnchorBatchID)
		assert.Equal(t, built.BatchID, *b.AnchorBatchID)
	}

	// Public batch page lists receipts in leaf order.
	status, env = app.do(t, http.MethodGet, "/api/v1/batches/"+built.BatchID.String(), nil, "")
	require.Equal(t, http.StatusOK, status)
	batch := decodeData[domain.Batch](t, env)
	require.Len(t, batch.ReceiptIDs, 2)
	assert.Equal(t, r1.Payload.ReceiptID, batch.ReceiptIDs[0].String())
	assert.Equal(t, r2.Payload.ReceiptID, batch.ReceiptIDs[1].String())

	// The inclusion proof recomputes the root.
	status, env = app.do(t, http.MethodGet, "/api/v1/receipts/"+r2.Payload.ReceiptID+"/proof", nil, "")
	require.Equal(t, http.StatusOK, status)
	proof := decodeData[ports.InclusionProof](t, env)
	assert.Equal(t, 1, proof.Index)

	leafDigest, err := merkle.ParseDigest(proof.Leaf)
	require.NoError(t, err)
	root, err := merkle.ParseDigest(proof.MerkleRoot)
	require.NoError(t, err)
	path := make([]merkle.Digest, len(proof.Path))
	for i, p := range proof.Path {
		path[i], err = merkle.ParseDigest(p)
		require.NoError(t, err)
	}
	assert.True(t, merkle.VerifyProof(leafDigest, proof.Index, path, root))

	// Built receipts cannot be queued again.
	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/queue", map[string]string{"receipt_id": r1.Payload.ReceiptID}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ANCHOR_002", env.ErrorCode)

	// Nothing left to build.
	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ANCHOR_001", env.ErrorCode)
}

func TestIntegration_FailedReceiptRequeue(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	r1 := app.issue(t, randomHex(t))
	r2 := app.issue(t, randomHex(t))
	app.queue(t, r1.Payload.ReceiptID)
	app.queue(t, r2.Payload.ReceiptID)

	token := app.login(t)
	status, env := app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	require.Equal(t, http.StatusCreated, status)
	first := decodeData[ports.BuildResult](t, env)

	// Anchoring of the batch failed downstream; r1 stays committed to it.
	app.store.setAnchorStatus(uuid.MustParse(r1.Payload.ReceiptID), domain.AnchorStatusFailed)

	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/queue", map[string]string{"receipt_id": r1.Payload.ReceiptID}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ANCHOR_002", env.ErrorCode)
	assert.Equal(t, "failed", env.Details["anchor_status"])

	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ANCHOR_001", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/receipts/"+r1.Payload.ReceiptID, nil, "")
	require.Equal(t, http.StatusOK, status)
	b := decodeData[domain.ReceiptBundle](t, env)
	require.NotNil(t, b.AnchorBatchID)
	assert.Equal(t, first.BatchID, *b.AnchorBatchID)

	// Proofs for the rest of the batch are unaffected.
	status, env = app.do(t, http.MethodGet, "/api/v1/receipts/"+r2.Payload.ReceiptID+"/proof", nil, "")
	require.Equal(t, http.StatusOK, status, "error_code=%s", env.ErrorCode)
	assert.Equal(t, first.MerkleRoot, decodeData[ports.InclusionProof](t, env).MerkleRoot)

	// A receipt that failed before ever being batched may be retried.
	r3 := app.issue(t, randomHex(t))
	app.store.setAnchorStatus(uuid.MustParse(r3.Payload.ReceiptID), domain.AnchorStatusFailed)
	app.queue(t, r3.Payload.ReceiptID)

	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	require.Equal(t, http.StatusCreated, status)
	second := decodeData[ports.BuildResult](t, env)
	assert.Equal(t, 1, second.ReceiptCount)

	status, env = app.do(t, http.MethodGet, "/api/v1/batches/"+second.BatchID.String(), nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(r3.Payload.ReceiptID)}, decodeData[domain.Batch](t, env).ReceiptIDs)
}

func TestIntegration_DuplicateHashReturnsExistingID(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	h := randomHex(t)
	first := app.issue(t, h)

	status, env := app.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
		"hash_algorithm": "sha256",
		"hash_value":     strings.ToUpper(h),
	}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "RCPT_001", env.ErrorCode)
	assert.Equal(t, first.Payload.ReceiptID, env.Details["existing_receipt_id"])
}

func TestIntegration_HashLengthValidation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	tests := []struct {
		alg    string
		length int
		status int
	}{
		{"sha256", 63, http.StatusBadRequest},
		{"sha256", 64, http.StatusCreated},
		{"sha256", 65, http.StatusBadRequest},
		{"sha512", 128, http.StatusCreated},
		{"sha512", 64, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.alg+"_"+strconv.Itoa(tt.length), func(t *testing.T) {
			value := (randomHex(t) + randomHex(t) + randomHex(t))[:tt.length]
			status, env := app.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
				"hash_algorithm": tt.alg,
				"hash_value":     value,
			}, "")
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, "VAL_001", env.ErrorCode)
			}
		})
	}
}

func TestIntegration_VerifyByHash(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	h := randomHex(t)
	bundle := app.issue(t, h)

	type verifyResult struct {
		Exists  bool                  `json:"exists"`
		Receipt *domain.SignedReceipt `json:"receipt"`
	}

	// Upper-case input finds the lower-cased receipt; the second call is served from cache.
	for i := 0; i < 2; i++ {
		status, env := app.do(t, http.MethodGet, "/api/v1/verify?hash_algorithm=sha256&hash_value="+strings.ToUpper(h), nil, "")
		require.Equal(t, http.StatusOK, status)
		result := decodeData[verifyResult](t, env)
		assert.True(t, result.Exists)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, bundle.Payload, result.Receipt.Payload)
		assert.Equal(t, bundle.Signature, result.Receipt.Signature)
	}
	assert.True(t, app.redis.Exists("verify:sha256:"+h))

	status, env := app.do(t, http.MethodGet, "/api/v1/verify?hash_algorithm=sha256&hash_value="+randomHex(t), nil, "")
	require.Equal(t, http.StatusOK, status)
	result := decodeData[verifyResult](t, env)
	assert.False(t, result.Exists)
	assert.Nil(t, result.Receipt)
}

func TestIntegration_UnknownReceipt(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, env := app.do(t, http.MethodGet, "/api/v1/receipts/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "RCPT_002", env.ErrorCode)

	status, _ = app.do(t, http.MethodGet, "/api/v1/receipts/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/queue", map[string]string{"receipt_id": uuid.NewString()}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "RCPT_002", env.ErrorCode)

	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/queue", map[string]string{"receipt_id": "not-a-uuid"}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "RCPT_002", env.ErrorCode)
}

func TestIntegration_MissingSigningKeyIsDistinctFromValidation(t *testing.T) {
	app := newTestAppWith(t, appOptions{noSigningKey: true})
	defer app.close()

	status, env := app.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
		"hash_algorithm": "sha256",
		"hash_value":     randomHex(t),
	}, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "KEY_001", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/public-key", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "KEY_001", env.ErrorCode)

	// Validation still wins for malformed input.
	status, env = app.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
		"hash_algorithm": "sha256",
		"hash_value":     "abc",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func TestIntegration_AdminAuth(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, env := app.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", env.ErrorCode)

	status, _ = app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/admin/receipts", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)

	token := app.login(t)
	app.issue(t, randomHex(t))

	status, env = app.do(t, http.MethodGet, "/api/v1/admin/receipts", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]domain.Receipt](t, env), 1)

	status, env = app.do(t, http.MethodGet, "/api/v1/admin/batches", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeData[[]domain.Batch](t, env))
}

func TestIntegration_DisputeLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	bundle := app.issue(t, randomHex(t))

	status, env := app.do(t, http.MethodPost, "/api/v1/disputes", map[string]interface{}{
		"receipt_id":    bundle.Payload.ReceiptID,
		"reason":        "I made this first",
		"contact_email": "claimant@example.com",
		"evidence_urls": []string{"https://example.com/sketch.png"},
	}, "")
	require.Equal(t, http.StatusCreated, status, "error_code=%s", env.ErrorCode)
	created := decodeData[struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, env)
	assert.Equal(t, "new", created.Status)

	// The email is encrypted at rest.
	app.store.mu.RLock()
	stored := app.store.disputes[uuid.MustParse(created.ID)]
	app.store.mu.RUnlock()
	assert.NotEmpty(t, stored.ContactEmailEnc)
	assert.NotContains(t, stored.ContactEmailEnc, "claimant@example.com")

	// Unknown receipt is rejected.
	status, _ = app.do(t, http.MethodPost, "/api/v1/disputes", map[string]interface{}{
		"receipt_id":    uuid.NewString(),
		"reason":        "I made this first",
		"contact_email": "claimant@example.com",
	}, "")
	assert.Equal(t, http.StatusNotFound, status)

	token := app.login(t)
	status, env = app.do(t, http.MethodGet, "/api/v1/admin/disputes", nil, token)
	require.Equal(t, http.StatusOK, status)
	disputes := decodeData[[]domain.Dispute](t, env)
	require.Len(t, disputes, 1)
	assert.Equal(t, "claimant@example.com", disputes[0].ContactEmail)
	assert.False(t, disputes[0].WantsIDVerification)

	status, env = app.do(t, http.MethodPatch, "/api/v1/admin/disputes/"+created.ID, map[string]string{"status": "sent_to_arbitrator"}, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sent_to_arbitrator", decodeData[map[string]string](t, env)["status"])

	// Admin actions are audited in the background.
	assert.Eventually(t, func() bool {
		app.store.mu.RLock()
		defer app.store.mu.RUnlock()
		var login, update bool
		for _, a := range app.store.audits {
			switch a.Action {
			case domain.AuditActionAdminLogin:
				login = true
			case domain.AuditActionUpdateDispute:
				update = a.ResourceID == created.ID && a.Actor == service.AdminSubject
			}
		}
		return login && update
	}, 2*time.Second, 20*time.Millisecond)
}

func TestIntegration_RateLimit(t *testing.T) {
	app := newTestAppWith(t, appOptions{rateLimit: 2})
	defer app.close()

	for i := 0; i < 2; i++ {
		app.issue(t, randomHex(t))
	}

	status, env := app.do(t, http.MethodPost, "/api/v1/receipts", map[string]string{
		"hash_algorithm": "sha256",
		"hash_value":     randomHex(t),
	}, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", env.ErrorCode)

	// Reads are not limited.
	status, _ = app.do(t, http.MethodGet, "/api/v1/receipts/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIntegration_AnchorNotification(t *testing.T) {
	const secret = "anchor-shared-secret"

	type captured struct {
		body      []byte
		timestamp string
		signature string
		event     string
	}
	received := make(chan captured, 1)
	anchor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- captured{
			body:      body,
			timestamp: r.Header.Get(service.HeaderTimestamp),
			signature: r.Header.Get(service.HeaderSignature),
			event:     r.Header.Get(service.HeaderEvent),
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer anchor.Close()

	app := newTestAppWith(t, appOptions{anchorURL: anchor.URL, anchorSecret: secret})
	defer app.close()

	bundle := app.issue(t, randomHex(t))
	app.queue(t, bundle.Payload.ReceiptID)

	token := app.login(t)
	status, env := app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	require.Equal(t, http.StatusCreated, status)
	built := decodeData[ports.BuildResult](t, env)

	var got captured
	select {
	case got = <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("anchor endpoint not called")
	}

	assert.Equal(t, service.EventBatchBuilt, got.event)
	ts, err := strconv.ParseInt(got.timestamp, 10, 64)
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	assert.True(t, sigSvc.Verify(secret, sigSvc.BuildDeliveryString(ts, string(got.body)), got.signature))

	var event service.BatchBuiltEvent
	require.NoError(t, json.Unmarshal(got.body, &event))
	assert.Equal(t, built.BatchID, event.BatchID)
	assert.Equal(t, built.MerkleRoot, event.MerkleRoot)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(bundle.Payload.ReceiptID)}, event.ReceiptIDs)

	assert.Eventually(t, func() bool {
		deliveries, _ := (&memDeliveryRepo{store: app.store}).GetByBatchID(t.Context(), built.BatchID)
		return len(deliveries) == 1 && deliveries[0].Status == domain.DeliveryStatusDelivered
	}, 2*time.Second, 20*time.Millisecond)
}
