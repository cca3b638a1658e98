package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetList(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	k, err := s.Put("reports/./10A1.xlsx", strings.NewReader("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "reports/10A1.xlsx", k)
	_, err = s.Put("imports/bank.xlsx", strings.NewReader("bank"))
	require.NoError(t, err)

	rc, err := s.Get(k)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "xlsx", string(b))

	objs, err := s.List("reports/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "reports/10A1.xlsx", objs[0].Key)
	assert.Equal(t, int64(4), objs[0].Size)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	u, err := s.URL(k)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
}

func TestKeysCannotEscape(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	for _, k := range []string{"", "../x", "/etc/passwd", "a/../../x", ".."} {
		_, err := s.Put(k, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrBadKey, k)
	}
	_, err = s.Get("missing.xlsx")
	assert.ErrorIs(t, err, ErrNotFound)
}
