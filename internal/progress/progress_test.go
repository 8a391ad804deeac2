package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilBarIsNoop(t *testing.T) {
	b := New(nil, "jobs", 3)
	assert.Nil(t, b)
	b.Increment()
	b.Finish()
}

func TestBarConcurrentIncrement(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, "jobs", 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Increment()
		}()
	}
	wg.Wait()
	b.Finish()
	assert.NotNil(t, b)
}
