package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testRecord(id, hash string, expires time.Time) Record {
	return Record{
		TaskID:  id,
		Hash:    hash,
		Body:    []byte(fmt.Sprintf(`{"hash":%q,"html":"<b>&</b>"}`, hash)),
		Expires: expires.Truncate(time.Millisecond).UTC(),
	}
}

// testStoreContract runs the behavior every backend must share.
func testStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("PutThenGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testRecord("a", "h1", time.Now().Add(time.Hour))

		inserted, err := s.PutIfAbsentOrEqual(ctx, rec)
		if err != nil {
			t.Fatalf("PutIfAbsentOrEqual() failed: %v", err)
		}
		if !inserted {
			t.Error("first put should insert")
		}

		got, ok, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !ok {
			t.Fatal("Get() did not find record")
		}
		if got.Hash != rec.Hash {
			t.Errorf("Hash = %q, want %q", got.Hash, rec.Hash)
		}
		if string(got.Body) != string(rec.Body) {
			t.Errorf("Body = %s, want %s", got.Body, rec.Body)
		}
		if !got.Expires.Equal(rec.Expires) {
			t.Errorf("Expires = %v, want %v", got.Expires, rec.Expires)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, ok, err := s.Get(context.Background(), "missing")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if ok {
			t.Error("Get() found a record that was never written")
		}
	})

	t.Run("EqualPutIsNoop", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testRecord("a", "h1", time.Now().Add(time.Hour))

		if _, err := s.PutIfAbsentOrEqual(ctx, rec); err != nil {
			t.Fatalf("first put failed: %v", err)
		}
		inserted, err := s.PutIfAbsentOrEqual(ctx, rec)
		if err != nil {
			t.Fatalf("second put failed: %v", err)
		}
		if inserted {
			t.Error("second equal put should not insert")
		}
	})

	t.Run("DifferentPutConflicts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		first := testRecord("a", "h1", time.Now().Add(time.Hour))
		second := testRecord("a", "h2", time.Now().Add(time.Hour))

		if _, err := s.PutIfAbsentOrEqual(ctx, first); err != nil {
			t.Fatalf("first put failed: %v", err)
		}
		_, err := s.PutIfAbsentOrEqual(ctx, second)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("second put error = %v, want ErrConflict", err)
		}

		got, _, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Hash != "h1" {
			t.Errorf("conflicting put modified record: hash = %q", got.Hash)
		}
	})

	t.Run("ConcurrentPutsOneWinner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		const writers = 16

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			inserted  int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := testRecord("race", fmt.Sprintf("h%d", i), time.Now().Add(time.Hour))
				ok, err := s.PutIfAbsentOrEqual(ctx, rec)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, ErrConflict):
					conflicts++
				case err != nil:
					t.Errorf("put %d failed: %v", i, err)
				case ok:
					inserted++
				}
			}(i)
		}
		wg.Wait()

		if inserted != 1 {
			t.Errorf("inserted = %d, want exactly 1", inserted)
		}
		if conflicts != writers-1 {
			t.Errorf("conflicts = %d, want %d", conflicts, writers-1)
		}
	})

	t.Run("BodyIsCopied", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := testRecord("a", "h1", time.Now().Add(time.Hour))
		want := string(rec.Body)

		if _, err := s.PutIfAbsentOrEqual(ctx, rec); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		rec.Body[0] = 'X'

		got, _, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if string(got.Body) != want {
			t.Errorf("stored body changed with caller's slice: %s", got.Body)
		}
	})
}

// testDeleteExpired checks sweeping for backends that need an explicit sweep.
func testDeleteExpired(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	for _, rec := range []Record{
		testRecord("old", "h1", now.Add(-time.Hour)),
		testRecord("fresh", "h2", now.Add(time.Hour)),
	} {
		if _, err := s.PutIfAbsentOrEqual(ctx, rec); err != nil {
			t.Fatalf("put %s failed: %v", rec.TaskID, err)
		}
	}

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	if _, ok, _ := s.Get(ctx, "old"); ok {
		t.Error("expired record still present")
	}
	if _, ok, _ := s.Get(ctx, "fresh"); !ok {
		t.Error("unexpired record was removed")
	}
}
