package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/scanhost/pkg/finding"
)

func newFinding(url string) finding.Finding {
	return finding.Finding{OriginURL: url, Description: "d", Plugin: "test"}
}

func TestStore_AppendAndAll(t *testing.T) {
	s := New()

	require.NoError(t, s.Append("mails", "mails", newFinding("http://x/1")))
	require.NoError(t, s.Append("mails", "mails", newFinding("http://x/2")))
	require.NoError(t, s.Append("xss", "xss", newFinding("http://x/3")))

	got := s.All("mails", "mails")
	require.Len(t, got, 2)
	assert.Equal(t, "http://x/1", got[0].OriginURL)
	assert.Equal(t, "http://x/2", got[1].OriginURL)

	assert.Equal(t, 3, s.Total())
	assert.Equal(t, 1, s.Len("xss", "xss"))
	assert.Nil(t, s.All("nope", "nope"))
}

func TestStore_AllIsSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("a", "b", newFinding("http://x/1")))

	snap := s.All("a", "b")
	require.NoError(t, s.Append("a", "b", newFinding("http://x/2")))

	assert.Len(t, snap, 1)
	assert.Len(t, s.All("a", "b"), 2)
}

func TestStore_AppendRejects(t *testing.T) {
	s := New()

	assert.ErrorIs(t, s.Append("", "k", newFinding("http://x")), ErrEmptyPartition)
	assert.ErrorIs(t, s.Append("ns", "k", finding.Finding{Plugin: "p"}), finding.ErrMissingURL)
	assert.Zero(t, s.Total())
}

func TestStore_ConcurrentAppendNoLostWrites(t *testing.T) {
	s := New()

	const writers, per = 16, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				_ = s.Append("ns", "k", newFinding(fmt.Sprintf("http://x/%d/%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers*per, s.Len("ns", "k"))
	assert.Equal(t, writers*per, s.Total())
}

func TestStore_KeysNamespacesReset(t *testing.T) {
	s := New()
	require.NoError(t, s.Append("mailfinder", "mails", newFinding("http://x")))
	require.NoError(t, s.Append("mails", "mails", newFinding("http://x")))
	require.NoError(t, s.Append("mails", "users", newFinding("http://x")))

	assert.Equal(t, []string{"mailfinder", "mails"}, s.Namespaces())
	assert.Equal(t, []string{"mails", "users"}, s.Keys("mails"))

	s.Reset()
	assert.Empty(t, s.Namespaces())
	assert.Zero(t, s.Total())
}
