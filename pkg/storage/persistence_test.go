package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

func TestFileHeader_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, FlagLZ4))
	assert.Len(t, buf.Bytes(), 8) // 4 bytes magic + version + flags + 2 reserved

	header, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, string(header.Magic[:]))
	assert.EqualValues(t, FormatVersion, header.Version)
	assert.True(t, header.Compressed())
}

func TestFileHeader_Invalid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, FileHeader{Magic: [4]byte{'I', 'N', 'V', 'L'}, Version: FormatVersion}))
	_, err := ReadHeader(&buf)
	assert.ErrorContains(t, err, "invalid file format")

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, FileHeader{Magic: [4]byte{'D', 'O', 'C', 'S'}, Version: 99}))
	_, err = ReadHeader(&buf)
	assert.ErrorContains(t, err, "unsupported file version")

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, FileHeader{Magic: [4]byte{'D', 'O', 'C', 'S'}, Version: FormatVersion, Flags: 0x80}))
	_, err = ReadHeader(&buf)
	assert.ErrorContains(t, err, "unsupported file flags")
}

func seedEngine(t *testing.T, engine *StorageEngine) {
	t.Helper()
	ctx := context.Background()
	_, err := engine.InsertMany(ctx, testDB, "customers", customers(), true)
	require.NoError(t, err)
	_, err = engine.InsertOne(ctx, testDB, "customers", d(
		domain.E("name", "Fede"),
		domain.E("date", time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)),
		domain.E("score", 2.0),
	))
	require.NoError(t, err)
	_, err = engine.CreateIndex(ctx, testDB, "mynewcol", domain.IndexModel{
		Keys: []domain.IndexKey{{Field: "user_id", Direction: 1}}, Unique: true,
	})
	require.NoError(t, err)
	_, err = engine.InsertOne(ctx, testDB, "mynewcol", d(domain.E("user_id", 211), domain.E("name", "Luke")))
	require.NoError(t, err)
}

func assertSameContents(t *testing.T, want, got *StorageEngine) {
	t.Helper()
	ctx := context.Background()

	wantDBs, _ := want.ListDatabaseNames(ctx)
	gotDBs, _ := got.ListDatabaseNames(ctx)
	require.Equal(t, wantDBs, gotDBs)

	for _, db := range wantDBs {
		wantColls, _ := want.ListCollectionNames(ctx, db)
		gotColls, _ := got.ListCollectionNames(ctx, db)
		require.Equal(t, wantColls, gotColls)
		for _, coll := range wantColls {
			wantDocs, err := want.Find(ctx, db, coll, nil, domain.FindOptions{})
			require.NoError(t, err)
			gotDocs, err := got.Find(ctx, db, coll, nil, domain.FindOptions{})
			require.NoError(t, err)
			require.Len(t, gotDocs, len(wantDocs))
			for i := range wantDocs {
				assert.True(t, wantDocs[i].Equal(gotDocs[i]), "%s != %s", wantDocs[i], gotDocs[i])
			}
			wantIdx, _ := want.ListIndexes(ctx, db, coll)
			gotIdx, _ := got.ListIndexes(ctx, db, coll)
			assert.Equal(t, wantIdx, gotIdx)
		}
	}
}

func TestStorageEngine_SnapshotRoundTrip(t *testing.T) {
	engine := NewStorageEngine()
	seedEngine(t, engine)

	var buf bytes.Buffer
	require.NoError(t, engine.SaveSnapshot(&buf))

	restored := NewStorageEngine()
	require.NoError(t, restored.LoadSnapshot(&buf))
	assertSameContents(t, engine, restored)

	// restored unique index still enforces uniqueness
	_, err := restored.InsertOne(context.Background(), testDB, "mynewcol", d(domain.E("user_id", 211)))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestStorageEngine_UncompressedSnapshot(t *testing.T) {
	engine := NewStorageEngine(WithoutCompression())
	seedEngine(t, engine)

	var buf bytes.Buffer
	require.NoError(t, engine.SaveSnapshot(&buf))
	header, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.False(t, header.Compressed())

	// readers follow the header, whatever their own setting
	restored := NewStorageEngine()
	require.NoError(t, restored.LoadSnapshot(&buf))
	assertSameContents(t, engine, restored)
}

func TestStorageEngine_SaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data"+FileExtension)

	engine := NewStorageEngine()
	seedEngine(t, engine)
	require.NoError(t, engine.SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(8))

	restored := NewStorageEngine()
	require.NoError(t, restored.LoadFromFile(path))
	assertSameContents(t, engine, restored)

	empty := NewStorageEngine()
	require.NoError(t, empty.LoadFromFile(filepath.Join(t.TempDir(), "missing.docs")))
	assert.Zero(t, empty.GetStats().Documents)

	require.NoError(t, os.WriteFile(path, []byte("garbage!"), 0644))
	assert.Error(t, NewStorageEngine().LoadFromFile(path))
}

func TestStorageEngine_JournalRecovery(t *testing.T) {
	dir := t.TempDir()
	opts := []StorageOption{
		WithDataFile(filepath.Join(dir, "data"+FileExtension)),
		WithJournal(filepath.Join(dir, "journal.log")),
		WithDurability(DurabilityFull),
	}
	ctx := context.Background()

	engine := NewStorageEngine(opts...)
	require.NoError(t, engine.Recover())
	seedEngine(t, engine)
	_, err := engine.DeleteMany(ctx, testDB, "customers", d(domain.E("name", "John")))
	require.NoError(t, err)
	require.NoError(t, engine.DropCollection(ctx, testDB, "gone"))
	_, err = engine.InsertOne(ctx, "other", "gone", d(domain.E("x", 1)))
	require.NoError(t, err)
	require.NoError(t, engine.DropDatabase(ctx, "other"))

	// simulate a crash: no snapshot, journal only
	require.NoError(t, engine.journal.Close())

	recovered := NewStorageEngine(opts...)
	require.NoError(t, recovered.Recover())
	assertSameContents(t, engine, recovered)

	n, err := recovered.CountDocuments(ctx, testDB, "customers", d(domain.E("name", "John")))
	require.NoError(t, err)
	assert.Zero(t, n)

	// checkpoint, keep writing, crash again
	require.NoError(t, recovered.SaveToFile(filepath.Join(dir, "data"+FileExtension)))
	_, err = recovered.InsertOne(ctx, testDB, "customers", d(domain.E("name", "AfterSnapshot")))
	require.NoError(t, err)
	require.NoError(t, recovered.journal.Close())

	final := NewStorageEngine(opts...)
	require.NoError(t, final.Recover())
	assertSameContents(t, recovered, final)
	require.NoError(t, final.Close())
}

func TestStorageEngine_RecoverSkipsEntriesCoveredBySnapshot(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "data"+FileExtension)
	journalPath := filepath.Join(dir, "journal.log")
	ctx := context.Background()

	engine := NewStorageEngine(WithDataFile(dataFile), WithJournal(journalPath))
	require.NoError(t, engine.Recover())
	_, err := engine.InsertOne(ctx, testDB, "c", d(domain.E(domain.IDField, 1)))
	require.NoError(t, err)

	// snapshot without truncating, as if the process died in between
	f, err := os.Create(dataFile)
	require.NoError(t, err)
	require.NoError(t, engine.SaveSnapshot(f))
	require.NoError(t, f.Close())
	require.NoError(t, engine.journal.Close())

	recovered := NewStorageEngine(WithDataFile(dataFile), WithJournal(journalPath))
	require.NoError(t, recovered.Recover())
	n, err := recovered.CountDocuments(ctx, testDB, "c", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReadJournal_TornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := OpenJournal(path, DurabilityOS)
	require.NoError(t, err)
	require.NoError(t, j.Append(JournalEntry{Op: JournalInsert, Database: "db", Collection: "c",
		Documents: []domain.Document{d(domain.E(domain.IDField, 1))}}))
	require.NoError(t, j.Append(JournalEntry{Op: JournalDropCollection, Database: "db", Collection: "c"}))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries, err := ReadJournal(bytes.NewReader(append(data, []byte(`{"lsn":3,"op":"ins`)...)))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.EqualValues(t, 1, entries[0].LSN)
	assert.Equal(t, JournalDropCollection, entries[1].Op)

	corrupted := bytes.Replace(data, []byte(`"db":"db"`), []byte(`"db":"xx"`), 1)
	_, err = ReadJournal(bytes.NewReader(corrupted))
	assert.ErrorContains(t, err, "checksum")
}

func TestStorageEngine_BackgroundSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data"+FileExtension)
	engine := NewStorageEngine(WithDataFile(path), WithBackgroundSave(10*time.Millisecond))
	_, err := engine.InsertOne(context.Background(), testDB, "c", d(domain.E("a", 1)))
	require.NoError(t, err)

	engine.StartBackgroundWorkers()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, engine.Close())
	engine.StopBackgroundWorkers() // safe to call twice
}
