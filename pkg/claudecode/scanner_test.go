package claudecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_WellFormedStream(t *testing.T) {
	input := `{"type":"system","subtype":"init"}
{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}
{"type":"result","subtype":"success","result":"done"}
`
	sc := NewScanner(strings.NewReader(input))

	var types []string
	for sc.Scan() {
		types = append(types, sc.Message().Type)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"system", "assistant", "result"}, types)
}

func TestScanner_SkipsEmptyAndMalformedLines(t *testing.T) {
	input := "{\"type\":\"system\",\"subtype\":\"init\"}\n" +
		"\n" +
		"   \n" +
		"this is not json\n" +
		"{\"type\":\"result\",\"subtype\":\"success\"}\n"

	var malformed []string
	sc := NewScanner(strings.NewReader(input), WithMalformedLineFunc(func(line string, err error) {
		malformed = append(malformed, line)
	}))

	var types []string
	for sc.Scan() {
		types = append(types, sc.Message().Type)
	}
	require.NoError(t, sc.Err())

	assert.Equal(t, []string{"system", "result"}, types)
	require.Len(t, malformed, 1)
	assert.Equal(t, "this is not json", malformed[0])
}

func TestScanner_MissingTrailingNewline(t *testing.T) {
	input := `{"type":"result","subtype":"success"}`
	sc := NewScanner(strings.NewReader(input))

	require.True(t, sc.Scan())
	assert.Equal(t, "result", sc.Message().Type)
	assert.False(t, sc.Scan())
	require.NoError(t, sc.Err())
}

func TestScanner_UnknownMessageTypeStillDelivered(t *testing.T) {
	input := "{\"type\":\"stream_event\",\"delta\":{}}\n"
	sc := NewScanner(strings.NewReader(input))

	require.True(t, sc.Scan())
	assert.True(t, sc.Message().IsUnknown())
	assert.Equal(t, "stream_event", sc.Message().Type)
}

func TestScanner_OversizedLineSkippedStreamContinues(t *testing.T) {
	huge := strings.Repeat("x", MaxLineSize+1024)
	input := "{\"type\":\"system\",\"subtype\":\"init\"}\n" +
		huge + "\n" +
		"{\"type\":\"result\",\"subtype\":\"success\"}\n"

	var malformedCount int
	sc := NewScanner(strings.NewReader(input), WithMalformedLineFunc(func(line string, err error) {
		malformedCount++
	}))

	var types []string
	for sc.Scan() {
		types = append(types, sc.Message().Type)
	}
	require.NoError(t, sc.Err())

	assert.Equal(t, []string{"system", "result"}, types)
	assert.Equal(t, 1, malformedCount)
}
