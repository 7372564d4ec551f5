package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGoWithCleanup_RunsCleanupAfterPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGoWithCleanup("test", func() { panic("boom") }, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not run")
	}
}

func TestSafeGo(t *testing.T) {
	ran := make(chan struct{})
	SafeGo("test", func() {
		defer close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestCall(t *testing.T) {
	err := Call("reload", func() { panic("bad config") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in reload: bad config")

	assert.NoError(t, Call("reload", func() {}))
}
