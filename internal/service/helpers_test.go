package service

import (
	"context"
	"io"
	"testing"

	"ergoveritas/config"
	"ergoveritas/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// newTestSigner returns a signer over a freshly generated key pair.
func newTestSigner(t *testing.T) (*Ed25519Signer, config.Ed25519Config) {
	t.Helper()
	priv, pub, err := GenerateEd25519KeyPair()
	require.NoError(t, err)
	cfg := config.Ed25519Config{PrivateKeyDERB64: priv, PublicKeyDERB64: pub}
	return NewEd25519Signer(NewEd25519KeyProvider(cfg)), cfg
}
