package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func beginTx(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

var (
	testAddr = ir.MustParseAddress("0x00000000000000000000000000000000000000aa")
	testNS   = ir.Namespace("test.storage")
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	tx := beginTx(t, s)
	require.NoError(t, tx.SetBalance(testAddr, 5))
	require.NoError(t, tx.Commit())

	// The single connection keeps the in-memory database alive.
	acct, ok, err := s.Account(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), acct.Balance)
}

func TestCodeAndAccounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	code := []byte("module:test")
	hash := ir.CodeHash(code)

	tx := beginTx(t, s)
	require.NoError(t, tx.PutCode(hash, code))
	require.NoError(t, tx.PutCode(hash, code), "PutCode is idempotent")
	require.NoError(t, tx.SetCode(testAddr, hash))
	require.NoError(t, tx.SetBalance(testAddr, ^uint64(0)))
	require.NoError(t, tx.Commit())

	acct, ok, err := s.Account(ctx, testAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, acct.HasCode)
	assert.Equal(t, hash, acct.CodeHash)
	assert.Equal(t, ^uint64(0), acct.Balance, "full uint64 range round-trips")

	got, ok, err := s.Code(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, code, got)

	_, ok, err = s.Account(ctx, ir.AccountAddress("nobody"))
	require.NoError(t, err)
	assert.False(t, ok)

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSetCodeRequiresStoredCode(t *testing.T) {
	s := createTestStore(t)
	tx := beginTx(t, s)

	err := tx.SetCode(testAddr, ir.CodeHash([]byte("never stored")))
	assert.Error(t, err, "foreign key on code_hash")
}

func TestSlots(t *testing.T) {
	s := createTestStore(t)
	tx := beginTx(t, s)

	v, err := tx.LoadSlot(testAddr, testNS, []byte("x"))
	require.NoError(t, err)
	assert.Nil(t, v, "absent slot reads as nil")

	require.NoError(t, tx.StoreSlot(testAddr, testNS, []byte("x"), []byte{1}))
	require.NoError(t, tx.StoreSlot(testAddr, testNS, []byte("x"), []byte{2}))
	require.NoError(t, tx.StoreSlot(testAddr, testNS, []byte("a"), []byte{3}))

	v, err = tx.LoadSlot(testAddr, testNS, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, v)

	// Other namespaces never alias.
	other, err := tx.LoadSlot(testAddr, ir.Namespace("other.storage"), []byte("x"))
	require.NoError(t, err)
	assert.Nil(t, other)

	slots, err := tx.Slots(testAddr, testNS)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, []byte("a"), slots[0].Key, "ordered by key bytes")

	require.NoError(t, tx.StoreSlot(testAddr, testNS, []byte("x"), nil), "empty value clears")
	require.NoError(t, tx.ClearSlot(testAddr, testNS, []byte("missing")))

	slots, err = tx.Slots(testAddr, testNS)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestSavepoints(t *testing.T) {
	s := createTestStore(t)
	tx := beginTx(t, s)
	key := []byte("k")

	require.NoError(t, tx.StoreSlot(testAddr, testNS, key, []byte("outer")))

	sp1, err := tx.Savepoint()
	require.NoError(t, err)
	require.NoError(t, tx.StoreSlot(testAddr, testNS, key, []byte("inner")))

	sp2, err := tx.Savepoint()
	require.NoError(t, err)
	require.NoError(t, tx.StoreSlot(testAddr, testNS, key, []byte("innermost")))
	require.NoError(t, tx.RollbackTo(sp2))

	v, err := tx.LoadSlot(testAddr, testNS, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("inner"), v)

	require.NoError(t, tx.Release(sp1))
	v, err = tx.LoadSlot(testAddr, testNS, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("inner"), v)

	sp3, err := tx.Savepoint()
	require.NoError(t, err)
	require.NoError(t, tx.ClearSlot(testAddr, testNS, key))
	require.NoError(t, tx.RollbackTo(sp3))

	v, err = tx.LoadSlot(testAddr, testNS, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("inner"), v)
}

func TestRollbackDiscardsEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.StoreSlot(testAddr, testNS, []byte("k"), []byte("v")))
	require.NoError(t, tx.AppendLog(ir.Log{Seq: 1, TxID: "t1", Address: testAddr, Event: "E", Data: []byte("{}")}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	slots, err := s.Slots(ctx, testAddr, testNS)
	require.NoError(t, err)
	assert.Empty(t, slots)

	logs, err := s.Logs(ctx, ir.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	_, err = tx.Savepoint()
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestLogs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	other := ir.AccountAddress("other")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, l := range []ir.Log{
		{Seq: 1, TxID: "t1", Address: testAddr, Event: "DiamondCut", Data: []byte(`{"a":1}`)},
		{Seq: 2, TxID: "t1", Address: other, Event: "Transfer", Data: []byte(`{}`)},
		{Seq: 3, TxID: "t2", Address: testAddr, Event: "OwnershipTransferred", Data: []byte(`{}`)},
	} {
		require.NoError(t, tx.AppendLog(l), "log %d", i)
	}
	require.NoError(t, tx.SetMeta("engine_version", ir.EngineVersion))
	require.NoError(t, tx.Commit())

	all, err := s.Logs(ctx, ir.LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, `{"a":1}`, string(all[0].Data))

	mine, err := s.Logs(ctx, ir.LogFilter{Address: testAddr})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	cuts, err := s.Logs(ctx, ir.LogFilter{Address: testAddr, Event: "DiamondCut"})
	require.NoError(t, err)
	assert.Len(t, cuts, 1)

	after, err := s.Logs(ctx, ir.LogFilter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(2), after[0].Seq)

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)

	v, ok, err := s.Meta(ctx, "engine_version")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.EngineVersion, v)
}

func TestMaxSeqEmpty(t *testing.T) {
	s := createTestStore(t)
	seq, err := s.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
