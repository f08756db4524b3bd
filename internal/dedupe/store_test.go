package dedupe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"couponwatch/internal/storage"
	logx "couponwatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	links   []string
	saves   int
	loadErr error
	saveErr error
}

func (m *memBackend) Load(context.Context) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]string(nil), m.links...), nil
}

func (m *memBackend) Save(_ context.Context, links []string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.links = append([]string(nil), links...)
	return nil
}

func (m *memBackend) Close() error { return nil }

func TestRecordAndContains(t *testing.T) {
	t.Parallel()
	b := &memBackend{links: []string{"https://a.example/1"}}
	s, err := Load(context.Background(), b, Options{Capacity: 10}, logx.Nop())
	require.NoError(t, err)

	assert.True(t, s.Contains("https://a.example/1"))
	assert.False(t, s.Contains("https://a.example/2"))

	s.Record("https://a.example/2")
	s.Record("https://a.example/2")
	s.Record("  ")
	assert.True(t, s.Contains("https://a.example/2"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Added())

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, b.links)
}

func TestLoadDropsDuplicates(t *testing.T) {
	t.Parallel()
	b := &memBackend{links: []string{"x", "y", "x", ""}}
	s, err := Load(context.Background(), b, Options{}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, s.Links())
}

func TestFlushKeepsNewestWithinCapacity(t *testing.T) {
	t.Parallel()
	const capacity = 5
	b := &memBackend{}
	s, err := Load(context.Background(), b, Options{Capacity: capacity}, logx.Nop())
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		s.Record(fmt.Sprintf("https://a.example/%d", i))
	}
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, b.links, capacity)
	assert.Equal(t, "https://a.example/7", b.links[0])
	assert.Equal(t, "https://a.example/11", b.links[capacity-1])

	// evicted links are no longer known
	assert.False(t, s.Contains("https://a.example/0"))
	assert.True(t, s.Contains("https://a.example/11"))
	assert.Equal(t, capacity, s.Len())
}

func TestCapacityHoldsOverPasses(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data.json")
	backend, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer backend.Close()

	const capacity = 7
	for pass := 0; pass < 4; pass++ {
		s, err := Load(context.Background(), backend, Options{Capacity: capacity}, logx.Nop())
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			s.Record(fmt.Sprintf("https://feed.example/%d/%d", pass, i))
		}
		require.NoError(t, s.Flush(context.Background()))

		saved, err := backend.Load(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, len(saved), capacity)
	}
	saved, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://feed.example/3/2", saved[len(saved)-1])
}

func TestReadOnlyFlush(t *testing.T) {
	t.Parallel()
	b := &memBackend{}
	s, err := Load(context.Background(), b, Options{ReadOnly: true}, logx.Nop())
	require.NoError(t, err)
	s.Record("https://a.example/1")
	require.NoError(t, s.Flush(context.Background()))
	assert.Zero(t, b.saves)
}

func TestBackendErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	_, err := Load(context.Background(), &memBackend{loadErr: boom}, Options{}, logx.Nop())
	assert.ErrorIs(t, err, boom)

	s, err := Load(context.Background(), &memBackend{saveErr: boom}, Options{}, logx.Nop())
	require.NoError(t, err)
	s.Record("https://a.example/1")
	assert.ErrorIs(t, s.Flush(context.Background()), boom)
}
