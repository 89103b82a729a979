package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("pq: relation does not exist")))

	// Wrapped infrastructure errors stay recognizable through the chain.
	assert.True(t, isTransient(fmt.Errorf("list line items: %w", syscall.ECONNRESET)))
	assert.True(t, isTransient(fmt.Errorf("send email: %w", context.DeadlineExceeded)))
	assert.True(t, isTransient(timeoutErr{}))

	// A plain error that merely talks about timeouts is not enough; only
	// typed evidence counts.
	assert.False(t, isTransient(errors.New("validation timeout budget exceeded")))
}
