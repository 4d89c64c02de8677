package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" auth/validate ": "auth_validate",
		"foo..bar":        "foo.bar",
		"a:b|c":           "a_b_c",
		"..":              "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestEncodeLine(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " opsconsole "}
	local := map[string]string{"result": " ok ", "": "ignored", "env": "stage"}

	got := encodeLine("auth.validate", "1", "c", global, local)
	assert.Equal(t, "auth.validate:1|c|#env:stage,result:ok,service:opsconsole", got)
	assert.Equal(t, "x:2|ms", encodeLine("x", "2", "ms", nil, nil))
}

func TestNilAndDisabledClient(t *testing.T) {
	t.Parallel()

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	assert.NoError(t, nilClient.Close())
	nilClient.Count("x", 1, nil)

	c, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Timing("x", time.Second, nil)
	assert.NoError(t, c.Close())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	assert.ErrorContains(t, err, "statsd dial")
}

func TestClientSendsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     ".opsconsole.",
		GlobalTags: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	require.True(t, c.Enabled())

	c.Count("auth.validate", 1, map[string]string{"outcome": "ok"})
	c.Timing("auth.validate.duration", 1500*time.Microsecond, nil)

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))

	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "opsconsole.auth.validate:1|c|#env:test,outcome:ok", string(buf[:n]))

	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "opsconsole.auth.validate.duration:1.5|ms|#env:test", string(buf[:n]))

	require.NoError(t, c.Close())
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Close())
}
