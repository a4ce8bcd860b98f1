package token

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueFormat(t *testing.T) {
	s := NewStore(time.Minute)

	tok := s.Issue()
	require.True(t, strings.HasPrefix(tok, Prefix))
	_, err := uuid.Parse(strings.TrimPrefix(tok, Prefix))
	require.NoError(t, err)
	assert.True(t, s.Valid(tok))
	assert.NotEqual(t, tok, s.Issue())
}

func TestRememberAndForget(t *testing.T) {
	s := NewStore(time.Minute)

	assert.False(t, s.Valid("MOJupstream"))
	require.NoError(t, s.Remember("MOJupstream"))
	assert.True(t, s.Valid("MOJupstream"))

	exp, ok := s.Expires("MOJupstream")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	s.Forget("MOJupstream")
	assert.False(t, s.Valid("MOJupstream"))

	assert.ErrorIs(t, s.Remember("  "), ErrEmptyToken)
	assert.False(t, s.Valid(""))
}

func TestTokensExpire(t *testing.T) {
	s := NewStore(20 * time.Millisecond)

	tok := s.Issue()
	require.True(t, s.Valid(tok))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, s.Valid(tok))
}

func TestStoreIsSource(t *testing.T) {
	var src Source = NewStore(time.Minute)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, Prefix))
}

func TestCachedGaugeFollowsExpiry(t *testing.T) {
	s := NewStore(20 * time.Millisecond)

	s.Issue()
	s.Issue()
	assert.Equal(t, float64(2), cachedGauge(t))

	time.Sleep(50 * time.Millisecond)
	s.c.DeleteExpired()
	assert.Equal(t, float64(0), cachedGauge(t))

	tok := s.Issue()
	assert.Equal(t, float64(1), cachedGauge(t))
	s.Forget(tok)
	assert.Equal(t, float64(0), cachedGauge(t))
}

func cachedGauge(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, tokensCached.Write(&m))
	return m.GetGauge().GetValue()
}
