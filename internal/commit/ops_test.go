package commit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNDJSON_RequiresHeaderFirst(t *testing.T) {
	body := `{"file":{"path":"a.txt","content_b64":"aGk=","size":2,"sha256":"x"}}` + "\n"

	_, err := ParseNDJSON(strings.NewReader(body))
	require.Error(t, err)
}

func TestParseNDJSON_RejectsMultipleHeaders(t *testing.T) {
	body := `{"header":{"summary":"one"}}` + "\n" + `{"header":{"summary":"two"}}` + "\n"

	_, err := ParseNDJSON(strings.NewReader(body))
	require.Error(t, err)
}

func TestParseNDJSON_ParsesFullSequence(t *testing.T) {
	body := `{"header":{"summary":"update"}}` + "\n" +
		`{"file":{"path":"a.txt","content_b64":"aGk=","size":2,"sha256":"placeholder"}}` + "\n" +
		`{"deletedFile":{"path":"old.txt"}}` + "\n" +
		`{"lfsFile":{"path":"big.bin","oid":"` + strings.Repeat("a", 64) + `","size":100}}` + "\n"

	ops, err := ParseNDJSON(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, OpHeader, ops[0].Kind)
	assert.Equal(t, OpFile, ops[1].Kind)
	assert.Equal(t, OpDeletedFile, ops[2].Kind)
	assert.Equal(t, OpLFSFile, ops[3].Kind)
}

func TestParseNDJSON_RejectsSizeMismatch(t *testing.T) {
	body := `{"header":{"summary":"x"}}` + "\n" +
		`{"file":{"path":"a.txt","content_b64":"aGk=","size":999,"sha256":"x"}}` + "\n"

	_, err := ParseNDJSON(strings.NewReader(body))
	require.Error(t, err)
}
