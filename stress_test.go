package kvsql_test

import (
	"fmt"
	"testing"

	"github.com/replisync/kvsql"
	"github.com/replisync/kvsql/mocks"
)

// Concurrent writers on disjoint keys plus readers racing the commits. Every
// committed key must be readable afterwards and no reader may observe a
// half-applied batch.
func Test_ConcurrentWritersAndReaders(t *testing.T) {
	engine := mocks.NewEngine()
	s := openStore(t, engine, "barstoreco")

	const writers = 8
	const keysPerWriter = 10

	tr := kvsql.NewTaskRunner(ctx, 4)
	for w := 0; w < writers; w++ {
		w := w
		tr.Go(func() error {
			return s.WithWrite(tr.GetContext(), func(tw kvsql.WriteTransaction) error {
				for i := 0; i < keysPerWriter; i++ {
					if err := tw.Put(tr.GetContext(), fmt.Sprintf("w%d_k%d", w, i), person{FirstName: "joe", Age: w}); err != nil {
						return err
					}
				}
				return tw.Commit(tr.GetContext())
			})
		})
		tr.Go(func() error {
			return s.WithRead(tr.GetContext(), func(rt kvsql.ReadTransaction) error {
				// A committed batch is all or nothing; seeing the first key of
				// a writer implies its last key is committed too.
				first, err := rt.Has(tr.GetContext(), fmt.Sprintf("w%d_k%d", w, 0))
				if err != nil {
					return err
				}
				if !first {
					return nil
				}
				last, err := rt.Has(tr.GetContext(), fmt.Sprintf("w%d_k%d", w, keysPerWriter-1))
				if err != nil {
					return err
				}
				if !last {
					return fmt.Errorf("writer %d batch observed partially applied", w)
				}
				return nil
			})
		})
	}
	if err := tr.Wait(); err != nil {
		t.Fatalf("concurrent run failed, details: %v.", err)
	}

	if c := engine.TableCount(kvsql.FormatTableName("barstoreco")); c != writers*keysPerWriter {
		t.Errorf("committed row count, got = %d, want = %d.", c, writers*keysPerWriter)
	}
	s.WithRead(ctx, func(rt kvsql.ReadTransaction) error {
		var p person
		found, err := rt.Get(ctx, "w0_k0", &p)
		if err != nil || !found {
			t.Fatalf("Get(w0_k0), got = (%v, %v), want = (true, nil).", found, err)
		}
		if p.FirstName != "joe" {
			t.Errorf("value, got = %+v, want = first name joe.", p)
		}
		return nil
	})
}
