package msgbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractNoDataYieldsNothing(t *testing.T) {
	var b Buffer
	frame, ok := b.Extract()
	require.False(t, ok)
	require.Nil(t, frame)
}

func TestExtractWithoutCRLFWaitsForMore(t *testing.T) {
	var b Buffer
	require.NoError(t, b.Append([]byte("PRIVMSG #chan")))

	frame, ok := b.Extract()
	require.False(t, ok)
	require.Nil(t, frame)
	require.Equal(t, len("PRIVMSG #chan"), b.Len())
}

func TestExtractOneFrame(t *testing.T) {
	var b Buffer
	require.NoError(t, b.Append([]byte("NICK alice\r\n")))

	frame, ok := b.Extract()
	require.True(t, ok)
	require.Equal(t, []byte("NICK alice\r\n"), frame)
	require.Equal(t, 0, b.Len())
}

func TestExtractShiftsRemainderDown(t *testing.T) {
	var b Buffer
	require.NoError(t, b.Append([]byte("NICK alice\r\nUSER a 0")))

	frame, ok := b.Extract()
	require.True(t, ok)
	require.Equal(t, []byte("NICK alice\r\n"), frame)
	require.Equal(t, len("USER a 0"), b.Len())

	// No CRLF yet in the remainder.
	frame, ok = b.Extract()
	require.False(t, ok)
	require.Nil(t, frame)

	require.NoError(t, b.Append([]byte(" * :Alice\r\n")))
	frame, ok = b.Extract()
	require.True(t, ok)
	require.Equal(t, []byte("USER a 0 * :Alice\r\n"), frame)
	require.Equal(t, 0, b.Len())
}

func TestAppendOverflowFailsWithoutPartialWrite(t *testing.T) {
	var b Buffer
	// Fill to one byte short of capacity with no CRLF.
	filler := bytes.Repeat([]byte("x"), Capacity-1)
	require.NoError(t, b.Append(filler))

	err := b.Append([]byte("yz"))
	require.Error(t, err)
	// The failed append must not have partially written: length unchanged.
	require.Equal(t, Capacity-1, b.Len())
}

func TestRoundTripConcatenatedFrames(t *testing.T) {
	var b Buffer
	input := "NICK alice\r\nUSER alice 0 * :Alice A\r\nJOIN #rust\r\n"

	// Feed it in arbitrary small chunks.
	chunks := []string{}
	for i := 0; i < len(input); i += 7 {
		end := i + 7
		if end > len(input) {
			end = len(input)
		}
		chunks = append(chunks, input[i:end])
	}

	var got []string
	for _, chunk := range chunks {
		require.NoError(t, b.Append([]byte(chunk)))
		for {
			frame, ok := b.Extract()
			if !ok {
				break
			}
			got = append(got, string(frame))
		}
	}

	require.Equal(t, []string{
		"NICK alice\r\n",
		"USER alice 0 * :Alice A\r\n",
		"JOIN #rust\r\n",
	}, got)
}

func Test510BytePayloadFits512ByteCapacity(t *testing.T) {
	var b Buffer
	payload := bytes.Repeat([]byte("a"), 510)
	payload = append(payload, '\r', '\n')
	require.Equal(t, 512, len(payload))

	require.NoError(t, b.Append(payload))
	frame, ok := b.Extract()
	require.True(t, ok)
	require.Len(t, frame, 512)
}

func Test511BytePayloadOverflows(t *testing.T) {
	var b Buffer
	payload := bytes.Repeat([]byte("a"), 511)
	payload = append(payload, '\r', '\n')
	require.Equal(t, 513, len(payload))

	err := b.Append(payload)
	require.Error(t, err)
}
