package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap/zaptest"

	"github.com/omnisoho/fitshop/internal/shop"
)

func testRepo(t *testing.T) *Repo {
	return &Repo{Log: zaptest.NewLogger(t)}
}

func TestRetryReadServesFallbackOnlyWhenStoreStaysDown(t *testing.T) {
	calls := 0
	fallback, err := testRepo(t).retryRead("list", func() error {
		calls++
		return &pgconn.PgError{Code: "08006"}
	})
	if !fallback {
		t.Fatal("store down on both attempts must trigger the fallback")
	}
	if err == nil {
		t.Fatal("the failing error must still be reported")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want one retry", calls)
	}
}

func TestRetryReadPropagatesNonInfraRetryError(t *testing.T) {
	// First attempt loses the connection, the retry hits a query bug. The
	// second error is not connection-class, so it propagates instead of
	// being masked by the snapshot.
	bad := errors.New("syntax error at or near \"FORM\"")
	calls := 0
	fallback, err := testRepo(t).retryRead("list", func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "08006"}
		}
		return bad
	})
	if fallback {
		t.Fatal("a non-infra retry error must not serve the fallback")
	}
	if !errors.Is(err, bad) {
		t.Fatalf("err = %v, want the retry's error", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryReadDoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	fallback, err := testRepo(t).retryRead("slug", func() error {
		calls++
		return shop.ErrInvalidProduct
	})
	if fallback || !errors.Is(err, shop.ErrInvalidProduct) {
		t.Fatalf("fallback=%v err=%v, want plain ErrInvalidProduct", fallback, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, business errors must not be retried", calls)
	}
}

func TestStoreUnavailableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"missing table", &pgconn.PgError{Code: "42P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := storeUnavailable(c.err); got != c.want {
				t.Fatalf("storeUnavailable(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}
