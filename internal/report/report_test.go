package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	cases := map[int64]string{
		0:          "0",
		7:          "7",
		999:        "999",
		1000:       "1,000",
		12345:      "12,345",
		123456:     "123,456",
		1234567:    "1,234,567",
		-1234:      "-1,234",
		-12:        "-12",
		9876543210: "9,876,543,210",
	}
	for in, want := range cases {
		assert.Equal(t, want, Count(in), "%d", in)
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, "1.25s", Seconds(1250*time.Millisecond))
	assert.Equal(t, "0.00s", Seconds(0))
}
