package kvsql_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/replisync/kvsql"
	"github.com/replisync/kvsql/mocks"
)

var ctx = context.TODO()

type person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
}

func openStore(t *testing.T, engine kvsql.Engine, name string) kvsql.Store {
	t.Helper()
	s, err := kvsql.OpenStore(ctx, engine, nil, kvsql.StoreOptions{Name: name})
	if err != nil {
		t.Fatalf("OpenStore failed, details: %v.", err)
	}
	return s
}

func Test_NeverWrittenKeyIsAbsent(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	err := s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		found, err := tr.Has(ctx, "ghost")
		if err != nil {
			return err
		}
		if found {
			t.Error("Has(ghost), got = true, want = false.")
		}
		var p person
		found, err = tr.Get(ctx, "ghost", &p)
		if err != nil {
			return err
		}
		if found {
			t.Error("Get(ghost), got = found, want = absent.")
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithRead failed, details: %v.", err)
	}
}

func Test_ReadYourOwnWrites(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	tw, err := s.Write()
	if err != nil {
		t.Fatalf("Write failed, details: %v.", err)
	}
	p := person{FirstName: "joe", LastName: "petit", Age: 20}
	if err := tw.Put(ctx, "joe", p); err != nil {
		t.Fatalf("Put failed, details: %v.", err)
	}

	// Staged value is visible inside the transaction before commit.
	var got person
	found, err := tw.Get(ctx, "joe", &got)
	if err != nil {
		t.Fatalf("Get failed, details: %v.", err)
	}
	if !found || got != p {
		t.Errorf("Get(joe) pre-commit, got = %v, want = %v.", got, p)
	}
	// And not visible to a concurrent read transaction.
	tr, _ := s.Read()
	if found, _ = tr.Has(ctx, "joe"); found {
		t.Error("Has(joe) in separate reader pre-commit, got = true, want = false.")
	}
	tr.Release(ctx)

	if err := tw.Commit(ctx); err != nil {
		t.Fatalf("Commit failed, details: %v.", err)
	}

	// Committed value is visible to a new transaction.
	err = s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		var got person
		found, err := tr.Get(ctx, "joe", &got)
		if err != nil {
			return err
		}
		if !found || got != p {
			t.Errorf("Get(joe) post-commit, got = %v, want = %v.", got, p)
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithRead failed, details: %v.", err)
	}
}

func Test_LastWriteWinsWithinTransaction(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	err := s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		if err := tw.Put(ctx, "x", map[string]int{"x": 1}); err != nil {
			return err
		}
		if err := tw.Put(ctx, "x", map[string]int{"x": 2}); err != nil {
			return err
		}
		return tw.Commit(ctx)
	})
	if err != nil {
		t.Fatalf("WithWrite failed, details: %v.", err)
	}

	var got map[string]int
	s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		tr.Get(ctx, "x", &got)
		return nil
	})
	if got["x"] != 2 {
		t.Errorf("Get(x), got = %v, want = map[x:2].", got)
	}
	// Both staged puts collapsed to one upsert row.
	if c := engine.TableCount(kvsql.FormatTableName("barstoreco")); c != 1 {
		t.Errorf("table row count, got = %d, want = 1.", c)
	}
}

func Test_PutThenDeleteLeavesKeyAbsent(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	err := s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		if err := tw.Put(ctx, "joe", person{FirstName: "joe"}); err != nil {
			return err
		}
		if err := tw.Delete(ctx, "joe"); err != nil {
			return err
		}
		if found, _ := tw.Has(ctx, "joe"); found {
			t.Error("Has(joe) after staged delete, got = true, want = false.")
		}
		return tw.Commit(ctx)
	})
	if err != nil {
		t.Fatalf("WithWrite failed, details: %v.", err)
	}

	s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		if found, _ := tr.Has(ctx, "joe"); found {
			t.Error("Has(joe) post-commit, got = true, want = false.")
		}
		return nil
	})
}

func Test_NoOpCommitIssuesNoStatements(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	before := engine.StatementCount()
	tw, err := s.Write()
	if err != nil {
		t.Fatalf("Write failed, details: %v.", err)
	}
	if err := tw.Commit(ctx); err != nil {
		t.Fatalf("Commit failed, details: %v.", err)
	}
	if got := engine.StatementCount(); got != before {
		t.Errorf("statement count after empty commit, got = %d, want = %d.", got, before)
	}
}

func Test_CleanReadEntriesNotFlushed(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		tw.Put(ctx, "joe", person{FirstName: "joe"})
		return tw.Commit(ctx)
	})

	before := engine.StatementCount()
	tw, _ := s.Write()
	if found, _ := tw.Has(ctx, "joe"); !found {
		t.Fatal("Has(joe), got = false, want = true.")
	}
	if err := tw.Commit(ctx); err != nil {
		t.Fatalf("Commit failed, details: %v.", err)
	}
	// One select for the read, zero mutations, plus no flush statements.
	if got := engine.StatementCount(); got != before+1 {
		t.Errorf("statement count, got = %d, want = %d.", got, before+1)
	}
}

func Test_RolledBackWritesAreDiscarded(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	tw, _ := s.Write()
	tw.Put(ctx, "joe", person{FirstName: "joe"})
	if err := tw.Release(ctx); err != nil {
		t.Fatalf("Release failed, details: %v.", err)
	}

	s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		if found, _ := tr.Has(ctx, "joe"); found {
			t.Error("Has(joe) after release, got = true, want = false.")
		}
		return nil
	})
}

func Test_TransactionInertAfterCommit(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	tw, _ := s.Write()
	tw.Put(ctx, "joe", person{FirstName: "joe"})
	if err := tw.Commit(ctx); err != nil {
		t.Fatalf("Commit failed, details: %v.", err)
	}
	if !tw.Closed() {
		t.Error("Closed after commit, got = false, want = true.")
	}
	if err := tw.Put(ctx, "jane", person{}); !kvsql.IsClosedError(err) {
		t.Errorf("Put after commit, got = %v, want = ClosedError.", err)
	}
	if _, err := tw.Has(ctx, "joe"); !kvsql.IsClosedError(err) {
		t.Errorf("Has after commit, got = %v, want = ClosedError.", err)
	}
	if err := tw.Commit(ctx); !kvsql.IsClosedError(err) {
		t.Errorf("second Commit, got = %v, want = ClosedError.", err)
	}
	// Release after commit is a no-op.
	if err := tw.Release(ctx); err != nil {
		t.Errorf("Release after commit, got = %v, want = nil.", err)
	}
}

func Test_ClosedStoreRejectsNewTransactions(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed, details: %v.", err)
	}
	if !s.Closed() {
		t.Error("Closed, got = false, want = true.")
	}
	if _, err := s.Read(); !kvsql.IsClosedError(err) {
		t.Errorf("Read on closed store, got = %v, want = ClosedError.", err)
	}
	if _, err := s.Write(); !kvsql.IsClosedError(err) {
		t.Errorf("Write on closed store, got = %v, want = ClosedError.", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close, got = %v, want = nil.", err)
	}
}

func Test_InFlightTransactionSurvivesStoreClose(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	tw, _ := s.Write()
	tw.Put(ctx, "joe", person{FirstName: "joe"})
	s.Close()
	// The transaction holds its own engine reference.
	if err := tw.Commit(ctx); err != nil {
		t.Errorf("Commit after store close, got = %v, want = nil.", err)
	}
}

func Test_CommitFlushFailureRollsBack(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	tw, _ := s.Write()
	tw.Put(ctx, "joe", person{FirstName: "joe"})
	engine.InduceErrorOnMethod(mocks.MethodExecute)
	err := tw.Commit(ctx)
	if kvsql.CodeOf(err) != kvsql.StatementError {
		t.Errorf("Commit, got = %v, want = StatementError.", err)
	}
	if !tw.Closed() {
		t.Error("Closed after failed commit, got = false, want = true.")
	}
	// No partial effect.
	if c := engine.TableCount(kvsql.FormatTableName("barstoreco")); c != 0 {
		t.Errorf("table row count, got = %d, want = 0.", c)
	}
}

func Test_BeginFailureSurfacesOnFirstOperation(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	engine.InduceErrorOnMethod(mocks.MethodBegin)
	tr, _ := s.Read()
	if _, err := tr.Has(ctx, "joe"); kvsql.CodeOf(err) != kvsql.StatementError {
		t.Errorf("Has with failing begin, got = %v, want = StatementError.", err)
	}
	tr.Release(ctx)
}

func Test_WithWriteReleasesOnError(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	var leaked kvsql.WriteTransaction
	err := s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		leaked = tw
		tw.Put(ctx, "joe", person{FirstName: "joe"})
		return kvsql.Error{Code: kvsql.Unknown, Err: context.Canceled}
	})
	if err == nil {
		t.Fatal("WithWrite, got = nil, want = fn's error.")
	}
	if !leaked.Closed() {
		t.Error("transaction after WithWrite error, got = open, want = closed.")
	}
	s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		if found, _ := tr.Has(ctx, "joe"); found {
			t.Error("Has(joe), got = true, want = false.")
		}
		return nil
	})
}

func Test_TransactionIDsAreUnique(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	t1, _ := s.Read()
	t2, _ := s.Read()
	defer t1.Release(ctx)
	defer t2.Release(ctx)
	if t1.GetID() == t2.GetID() {
		t.Error("transaction IDs, got = equal, want = distinct.")
	}
	if t1.GetID().IsNil() {
		t.Error("transaction ID, got = nil UUID, want = assigned.")
	}
}

func Test_NegativeLookupIsCached(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	tr, _ := s.Read()
	defer tr.Release(ctx)
	before := engine.StatementCount()
	tr.Has(ctx, "ghost")
	tr.Has(ctx, "ghost")
	var p person
	tr.Get(ctx, "ghost", &p)
	// One backing select; repeats answered by the transaction cache.
	if got := engine.StatementCount(); got != before+1 {
		t.Errorf("statement count, got = %d, want = %d.", got, before+1)
	}
}

func Test_RepeatedGetHitsTransactionCache(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		tw.Put(ctx, "joe", person{FirstName: "joe", Age: 20})
		return tw.Commit(ctx)
	})

	tr, _ := s.Read()
	defer tr.Release(ctx)
	before := engine.StatementCount()
	var p person
	for i := 0; i < 3; i++ {
		found, err := tr.Get(ctx, "joe", &p)
		if err != nil || !found {
			t.Fatalf("Get(joe) #%d, got = (%v, %v), want = (true, nil).", i, found, err)
		}
	}
	if got := engine.StatementCount(); got != before+1 {
		t.Errorf("statement count, got = %d, want = %d.", got, before+1)
	}
}

func Test_NestedValueRoundTrip(t *testing.T) {
	s := openStore(t, mocks.NewEngine(), "barstoreco")

	want := map[string]any{
		"str":    "text",
		"num":    float64(42),
		"flag":   true,
		"none":   nil,
		"list":   []any{float64(1), "two", nil},
		"nested": map[string]any{"deep": []any{map[string]any{"x": float64(1)}}},
	}
	s.WithWrite(ctx, func(tw kvsql.WriteTransaction) error {
		if err := tw.Put(ctx, "doc", want); err != nil {
			t.Fatalf("Put failed, details: %v.", err)
		}
		return tw.Commit(ctx)
	})

	var got map[string]any
	s.WithRead(ctx, func(tr kvsql.ReadTransaction) error {
		found, err := tr.Get(ctx, "doc", &got)
		if err != nil || !found {
			t.Fatalf("Get(doc), got = (%v, %v), want = (true, nil).", found, err)
		}
		return nil
	})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip, got = %v, want = %v.", got, want)
	}
}

func Test_BadStoreNameFailsOpen(t *testing.T) {
	names := []string{"", "1abc", "a;drop", "with space", `quo"ted`}
	for _, name := range names {
		_, err := kvsql.OpenStore(ctx, mocks.NewEngine(), nil, kvsql.StoreOptions{Name: name})
		if kvsql.CodeOf(err) != kvsql.SchemaError {
			t.Errorf("OpenStore(%q), got = %v, want = SchemaError.", name, err)
		}
	}
}
