package firestore

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
)

func TestTxFromContext(t *testing.T) {
	if _, ok := TxFromContext(context.Background()); ok {
		t.Fatalf("expected no transaction on a bare context")
	}
	if _, ok := TxFromContext(WithTx(context.Background(), nil)); ok {
		t.Fatalf("expected nil transaction to be ignored")
	}
	tx := &firestore.Transaction{}
	got, ok := TxFromContext(WithTx(context.Background(), tx))
	if !ok || got != tx {
		t.Fatalf("expected stored transaction, got %v %v", got, ok)
	}
}

func TestRunTransactionJoinsAmbientTransaction(t *testing.T) {
	outer := &firestore.Transaction{}
	ctx := WithTx(context.Background(), outer)

	calls := 0
	err := RunTransaction(ctx, nil, func(_ context.Context, tx *firestore.Transaction) error {
		calls++
		if tx != outer {
			t.Fatalf("expected the ambient transaction to be joined")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fn to run once, got %d", calls)
	}
}

func TestUnitOfWorkRequiresProvider(t *testing.T) {
	noop := func(context.Context) error { return nil }
	var unit *UnitOfWork
	if err := unit.RunInTx(context.Background(), noop); err == nil {
		t.Fatalf("expected error for nil unit of work")
	}
	if err := NewUnitOfWork(nil).RunInTx(context.Background(), noop); err == nil {
		t.Fatalf("expected error without provider")
	}
	if err := NewUnitOfWork(nil).RunInTx(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil function")
	}
}
