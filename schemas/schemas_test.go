package schemas

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jonathan/cvperfect-sessions/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFile_ValidJSON(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(".", "session_record.schema.json"))
	require.NoError(t, err, "should be able to read schema file")

	var v interface{}
	err = json.Unmarshal(data, &v)
	assert.NoError(t, err, "schema file should be valid JSON")
}

// TestSessionRecordSchema_MatchesFile verifies the embedded schema constant
// and the schema file on disk describe the same document.
func TestSessionRecordSchema_MatchesFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(".", "session_record.schema.json"))
	require.NoError(t, err)

	var fromFile, fromConst interface{}
	require.NoError(t, json.Unmarshal(data, &fromFile))
	require.NoError(t, json.Unmarshal([]byte(schemas.SessionRecordSchema), &fromConst))

	assert.True(t, reflect.DeepEqual(fromFile, fromConst),
		"schemas/session_record.schema.json has drifted from schemas.SessionRecordSchema")
}
