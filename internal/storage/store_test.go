package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recording() *Recording {
	frames := make([]*snapshot.Frame, 3)
	for i := range frames {
		z := 1 - 0.1*float64(i)
		frames[i] = &snapshot.Frame{
			Step:       uint64(i),
			Time:       0.01 * float64(i),
			Generation: uint64(i + 1),
			Domains: []snapshot.DomainFrame{
				{Kind: dynamo.KindSPH, Positions: []dynamo.Vec3{{0.1, 0.2, z}, {0.3, 0.4, z}}, Owners: []dynamo.ID{1, 1}},
				{Kind: dynamo.KindMPM, Positions: []dynamo.Vec3{{0.5, 0.5, z}}, Owners: []dynamo.ID{2}},
			},
			Counters: dynamo.Counters{Contacts: uint64(i)},
		}
	}
	return &Recording{
		Meta:   RunMetadata{Scenario: "sph_mpm", Seed: 42, Dt: 0.01, Substeps: 10, Backend: "cpu"},
		Frames: frames,
	}
}

func assertSameFrames(t *testing.T, want, got []*snapshot.Frame) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Step, got[i].Step)
		assert.Equal(t, want[i].Time, got[i].Time)
		require.Len(t, got[i].Domains, len(want[i].Domains))
		for k := range want[i].Domains {
			assert.Equal(t, want[i].Domains[k].Kind, got[i].Domains[k].Kind)
			assert.Equal(t, want[i].Domains[k].Positions, got[i].Domains[k].Positions)
			assert.Equal(t, want[i].Domains[k].Owners, got[i].Domains[k].Owners)
		}
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	rec := recording()
	id, err := st.Save(rec)
	require.NoError(t, err)
	assert.Contains(t, id, "sph_mpm_")

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Frames)
	assert.Equal(t, int64(42), meta.Seed)
	assert.Equal(t, uint64(2), meta.Counters.Contacts, "counters of the last frame")

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)

	frames, err := st.LoadFrames(id)
	require.NoError(t, err)
	assertSameFrames(t, rec.Frames, frames)
}

func TestStoreListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	rec := recording()
	id, err := Write(path, rec)
	require.NoError(t, err)

	st, err := OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "cpu", runs[0].Backend)
	assert.Equal(t, 3, runs[0].Frames)

	frames, err := st.LoadFrames(id)
	require.NoError(t, err)
	assertSameFrames(t, rec.Frames, frames)
	assert.Equal(t, uint64(2), frames[2].Counters.Contacts)
	assert.Equal(t, uint64(3), frames[2].Generation)
}

func TestWriteDirectoryDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rec := recording()
	_, err := Write(dir, rec)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "metadata.json"))

	frames, err := ReadFrames(dir)
	require.NoError(t, err)
	assertSameFrames(t, rec.Frames, frames)
}

func TestWriteFailureIsReported(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err := Write(filepath.Join(blocker, "sub"), recording())
	assert.Error(t, err)
}

func TestIsDatabase(t *testing.T) {
	assert.True(t, IsDatabase("a/b.db"))
	assert.True(t, IsDatabase("run.SQLITE"))
	assert.False(t, IsDatabase("runs/out"))
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, recording()))
	var out struct {
		Meta   RunMetadata       `json:"meta"`
		Frames []*snapshot.Frame `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "sph_mpm", out.Meta.Scenario)
	assert.Len(t, out.Frames, 3)
}
