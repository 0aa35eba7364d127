package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shade/internal/wire"
)

func TestScriptedTransport_ServesInOrder(t *testing.T) {
	st := NewScriptedTransport(&wire.Response{}, &wire.Response{HasReturn: true})
	assert.Equal(t, 2, st.Pending())

	first, err := st.Exchange([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, first)

	second, err := st.Exchange([]byte{2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, second)

	_, err = st.Exchange([]byte{3})
	assert.True(t, errors.Is(err, ErrScriptExhausted))
	assert.Equal(t, [][]byte{{1}, {2}, {3}}, st.Requests())
}

func TestScriptedTransport_CopiesRequests(t *testing.T) {
	st := NewScriptedTransport(&wire.Response{})
	req := []byte{1, 2}
	_, err := st.Exchange(req)
	require.NoError(t, err)

	req[0] = 9
	assert.Equal(t, []byte{1, 2}, st.Requests()[0])
}

func TestScriptedTransport_Commands(t *testing.T) {
	st := NewScriptedTransport(&wire.Response{})
	req, err := wire.Codec{}.EncodeCommand(&wire.ExecCommand{Offset: 3, NewFrames: []uint32{7}})
	require.NoError(t, err)
	_, err = st.Exchange(req)
	require.NoError(t, err)

	cmds, err := st.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, uint32(3), cmds[0].Offset)
	assert.Equal(t, []uint32{7}, cmds[0].NewFrames)
}

func TestScriptedTransport_PushRaw(t *testing.T) {
	st := NewScriptedTransport()
	st.PushRaw([]byte{0xFF})

	got, err := st.Exchange(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, got)
}
