package chooser

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotpaste/agent/internal/modes"
)

func TestEncodeShowWireFormat(t *testing.T) {
	b, err := EncodeShow(modes.FlowSave, "7", 800*time.Millisecond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"show","mode":"save","token":"7","timeout_ms":800,"anchor":"mouse"}`, string(b))

	b, err = EncodeHide("7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hide","token":"7"}`, string(b))
}

func TestShowRoundTripDigitTokens(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	flows := []modes.Flow{modes.FlowSave, modes.FlowPaste}

	for i := 0; i < 500; i++ {
		var sb strings.Builder
		n := 1 + rng.Intn(20)
		for j := 0; j < n; j++ {
			sb.WriteByte(byte('0' + rng.Intn(10)))
		}
		token := sb.String()
		flow := flows[rng.Intn(len(flows))]
		timeout := time.Duration(rng.Intn(60000)) * time.Millisecond

		b, err := EncodeShow(flow, token, timeout)
		require.NoError(t, err)
		got, err := DecodeShow(b)
		require.NoError(t, err)

		assert.Equal(t, string(flow), got.Mode)
		assert.Equal(t, token, got.Token)
		assert.Equal(t, uint64(timeout/time.Millisecond), got.TimeoutMs)
		assert.Equal(t, AnchorMouse, got.Anchor)
	}
}

func TestDecodeReplies(t *testing.T) {
	tests := []struct {
		name string
		line string
		want modes.Event
	}{
		{"chosen", `{"type":"chosen","token":"3","slot":3}`, modes.Chosen("3", 3)},
		{"chosen upper bound", `{"type":"chosen","token":"3","slot":6}`, modes.Chosen("3", 6)},
		{"cancel with reason", `{"type":"cancel","token":"4","reason":"esc"}`, modes.Cancel("4", "esc")},
		{"cancel default reason", `{"type":"cancel","token":"4"}`, modes.Cancel("4", "timeout")},
		{"unknown fields ignored", `{"type":"chosen","token":"5","slot":1,"extra":{"a":1}}`, modes.Chosen("5", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	lines := []string{
		`not json`,
		`{"type":"chosen","slot":2}`,
		`{"token":"1","slot":2}`,
		`{"type":"chosen","token":"1"}`,
		`{"type":"chosen","token":"1","slot":0}`,
		`{"type":"chosen","token":"1","slot":7}`,
		`{"type":"chosen","token":"1","slot":-1}`,
		`{"type":"chosen","token":"1","slot":2.5}`,
		`{"type":"chosen","token":1,"slot":2}`,
		`{"type":"show","token":"1"}`,
		`{"type":"hide","token":"1"}`,
	}
	for _, line := range lines {
		_, err := Decode([]byte(line))
		assert.ErrorIs(t, err, ErrMalformed, "line %s", line)
	}
}

func TestEncodeRepliesDecode(t *testing.T) {
	b, err := EncodeChosen("12", 4)
	require.NoError(t, err)
	ev, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, modes.Chosen("12", 4), ev)

	b, err = EncodeCancel("12", "esc")
	require.NoError(t, err)
	ev, err = Decode(b)
	require.NoError(t, err)
	assert.Equal(t, modes.Cancel("12", "esc"), ev)
}
