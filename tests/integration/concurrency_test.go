package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawPost is safe to call from goroutines; it never touches t.
func rawPost(url, token string, body interface{}) (int, envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, envelope{}, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return 0, envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	err = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env, err
}

// TestConcurrentDuplicateReceipts fires the same hash from many clients at
// once. Exactly one receipt is issued and every loser is pointed at it.
func TestConcurrentDuplicateReceipts(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	hashValue := randomHex(t)
	concurrency := 20

	var wg sync.WaitGroup
	var created atomic.Int64
	var conflicts atomic.Int64
	var other atomic.Int64
	results := make(chan envelope, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, env, err := rawPost(app.server.URL+"/api/v1/receipts", "", map[string]string{
				"hash_algorithm": "sha256",
				"hash_value":     hashValue,
			})
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusCreated:
				created.Add(1)
				results <- env
			case status == http.StatusConflict && env.ErrorCode == "RCPT_001":
				conflicts.Add(1)
				results <- env
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()
	close(results)

	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, int64(concurrency-1), conflicts.Load())
	assert.Zero(t, other.Load())

	var winner string
	var losers []string
	for env := range results {
		if env.ErrorCode == "" {
			winner = decodeData[domain.ReceiptBundle](t, env).Payload.ReceiptID
			continue
		}
		id, _ := env.Details["existing_receipt_id"].(string)
		losers = append(losers, id)
	}
	require.NotEmpty(t, winner)
	for _, id := range losers {
		assert.Equal(t, winner, id)
	}

	app.store.mu.RLock()
	assert.Len(t, app.store.receipts, 1)
	app.store.mu.RUnlock()
}

// TestConcurrentBuilds runs several builds against one queue. Every queued
// receipt ends up in exactly one batch.
func TestConcurrentBuilds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	queued := 20
	for i := 0; i < queued; i++ {
		bundle := app.issue(t, randomHex(t))
		app.queue(t, bundle.Payload.ReceiptID)
	}
	token := app.login(t)

	concurrency := 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var built []ports.BuildResult
	var unexpected atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, env, err := rawPost(app.server.URL+"/api/v1/anchor/build", token, nil)
			if err != nil {
				unexpected.Add(1)
				return
			}
			switch {
			case status == http.StatusCreated:
				var res ports.BuildResult
				if json.Unmarshal(env.Data, &res) != nil {
					unexpected.Add(1)
					return
				}
				mu.Lock()
				built = append(built, res)
				mu.Unlock()
			case env.ErrorCode == "ANCHOR_001", env.ErrorCode == "ANCHOR_003":
			default:
				unexpected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, unexpected.Load())
	require.NotEmpty(t, built)

	total := 0
	for _, b := range built {
		total += b.ReceiptCount
	}
	assert.Equal(t, queued, total)

	app.store.mu.RLock()
	defer app.store.mu.RUnlock()

	seen := make(map[uuid.UUID]uuid.UUID)
	for _, batch := range app.store.batches {
		for _, id := range batch.ReceiptIDs {
			prev, dup := seen[id]
			assert.False(t, dup, "receipt %s in batches %s and %s", id, prev, batch.ID)
			seen[id] = batch.ID
		}
	}
	assert.Len(t, seen, queued)

	for id, r := range app.store.receipts {
		assert.Equal(t, domain.AnchorStatusBuilt, r.AnchorStatus)
		require.NotNil(t, r.AnchorBatchID)
		assert.Equal(t, seen[id], *r.AnchorBatchID)
	}
}

// TestBatchBuild_FailureLeavesNoTrace forces the receipt update to fail
// after the batch row is staged. Neither the batch nor any status change
// may survive.
func TestBatchBuild_FailureLeavesNoTrace(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	var ids []string
	for i := 0; i < 3; i++ {
		bundle := app.issue(t, randomHex(t))
		app.queue(t, bundle.Payload.ReceiptID)
		ids = append(ids, bundle.Payload.ReceiptID)
	}
	token := app.login(t)

	app.store.failMarkBuilt.Store(true)
	status, env := app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SYS_001", env.ErrorCode)

	app.store.mu.RLock()
	assert.Empty(t, app.store.batches)
	app.store.mu.RUnlock()

	for _, id := range ids {
		status, env := app.do(t, http.MethodGet, "/api/v1/receipts/"+id, nil, "")
		require.Equal(t, http.StatusOK, status)
		b := decodeData[domain.ReceiptBundle](t, env)
		assert.Equal(t, domain.AnchorStatusQueued, b.AnchorStatus)
		assert.Nil(t, b.AnchorBatchID)
	}

	// The build lock was released, so a retry succeeds with the same receipts.
	app.store.failMarkBuilt.Store(false)
	status, env = app.do(t, http.MethodPost, "/api/v1/anchor/build", nil, token)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 3, decodeData[ports.BuildResult](t, env).ReceiptCount)
}
