// internal/pv/pv_test.go
package pv

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestPut_ReadOnlyRejected(t *testing.T) {
	p := New(Spec{Name: "temp:t1:temperature", ReadOnly: true, Initial: 21.5})

	if err := p.Put(context.Background(), 30); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if v, _ := p.Value(); v != 21.5 {
		t.Fatalf("read-only value changed: %v", v)
	}
}

func TestPut_CommitsOnlyOnPutterSuccess(t *testing.T) {
	p := New(Spec{Name: "temp:t1:setpoint", Initial: 1.01})

	fail := true
	p.SetPutter(func(_ context.Context, v float64) error {
		if fail {
			return errors.New("device write failed")
		}
		return nil
	})

	if err := p.Put(context.Background(), 50); err == nil {
		t.Fatalf("expected putter error")
	}
	if v, _ := p.Value(); v != 1.01 {
		t.Fatalf("value changed after failed put: %v", v)
	}

	fail = false
	if err := p.Put(context.Background(), 50); err != nil {
		t.Fatalf("Put err=%v", err)
	}
	if v, _ := p.Value(); v != 50 {
		t.Fatalf("value: got %v want 50", v)
	}
}

func TestPut_RejectsNonFinite(t *testing.T) {
	p := New(Spec{Name: "x"})
	called := false
	p.SetPutter(func(context.Context, float64) error { called = true; return nil })

	if err := p.Put(context.Background(), math.NaN()); err == nil {
		t.Fatalf("expected error for NaN")
	}
	if called {
		t.Fatalf("putter called for NaN")
	}
}

func TestIntKindTruncates(t *testing.T) {
	p := New(Spec{Name: "temp:t1:run_mode", Kind: KindInt})
	p.Set(1.9)
	if v, _ := p.Value(); v != 1 {
		t.Fatalf("int pv: got %v want 1", v)
	}
}

func TestSubscribe_ReceivesUpdates(t *testing.T) {
	p := New(Spec{Name: "temp:t1:temperature", ReadOnly: true})
	ch, cancel := p.Subscribe(4)
	defer cancel()

	p.Set(23.5)

	u := <-ch
	if u.Name != "temp:t1:temperature" || u.Value != 23.5 {
		t.Fatalf("update: %+v", u)
	}
}

func TestSubscribe_SlowSubscriberKeepsLatest(t *testing.T) {
	p := New(Spec{Name: "x"})
	ch, cancel := p.Subscribe(1)
	defer cancel()

	for i := 1; i <= 5; i++ {
		p.Set(float64(i))
	}

	u := <-ch
	if u.Value != 5 {
		t.Fatalf("expected latest value 5, got %v", u.Value)
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	p := New(Spec{Name: "x"})
	ch, cancel := p.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after cancel")
	}
	p.Set(1) // must not panic
}

func TestDatabase(t *testing.T) {
	db := NewDatabase()
	a := New(Spec{Name: "a", ReadOnly: true})
	b := New(Spec{Name: "b"})

	if err := db.Add(a); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := db.Add(b); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if err := db.Add(New(Spec{Name: "a"})); err == nil {
		t.Fatalf("expected duplicate error")
	}

	names := db.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names: %v", names)
	}

	if err := db.Put(context.Background(), "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put(context.Background(), "a", 1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := db.Put(context.Background(), "b", 7); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if v, _ := b.Value(); v != 7 {
		t.Fatalf("b: got %v", v)
	}
}
