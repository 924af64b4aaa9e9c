package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolReusesSessionPerOrg(t *testing.T) {
	pool := NewPool(time.Minute, zap.NewNop())
	defer pool.Close()

	first, err := pool.Get("https://acme.my.salesforce.com")
	require.NoError(t, err)
	second, err := pool.Get("https://acme.my.salesforce.com")
	require.NoError(t, err)
	other, err := pool.Get("https://globex.my.salesforce.com")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Nil(t, first.Jar)
	assert.Equal(t, 2, pool.Len())
}

func TestPoolConcurrentGet(t *testing.T) {
	pool := NewPool(time.Minute, zap.NewNop())
	defer pool.Close()

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([]interface{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := pool.Get("https://acme.my.salesforce.com")
			assert.NoError(t, err)
			results[i] = client
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.Same(t, results[0], result)
	}
	assert.Equal(t, 1, pool.Len())
}

func TestPoolEvictsIdleSessions(t *testing.T) {
	pool := NewPool(50*time.Millisecond, zap.NewNop())
	defer pool.Close()

	first, err := pool.Get("https://acme.my.salesforce.com")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return pool.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	second, err := pool.Get("https://acme.my.salesforce.com")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestNewPoolDefaultTTL(t *testing.T) {
	pool := NewPool(0, zap.NewNop())
	defer pool.Close()

	_, err := pool.Get("https://acme.my.salesforce.com")
	assert.NoError(t, err)
}
