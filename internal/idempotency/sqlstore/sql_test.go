package sqlstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/idempotency"
	guard "github.com/frahmantamala/payment-gateway/internal/idempotency"
	"github.com/frahmantamala/payment-gateway/internal/idempotency/sqlstore"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

func TestSQLStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SQL Idempotency Store Suite")
}

var _ = Describe("SQL Store", func() {
	var (
		db    *sqlx.DB
		store *sqlstore.Store
		ctx   context.Context
		now   time.Time
	)

	newRecord := func(key, token string) *idempotency.Record {
		return &idempotency.Record{
			Key:         key,
			Token:       token,
			Fingerprint: "fp",
			State:       idempotency.StateInProgress,
			LockedAt:    now,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(time.Hour),
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Now().UTC().Truncate(time.Millisecond)

		db, err = sqlx.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		// one connection keeps the in-memory database alive
		db.SetMaxOpenConns(1)

		Expect(sqlstore.EnsureSQLiteSchema(ctx, db)).To(Succeed())
		store = sqlstore.New(db)
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("Reserve", func() {
		It("reserves a new key", func() {
			existing, reserved, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(reserved).To(BeTrue())
			Expect(existing).To(BeNil())
		})

		It("returns the holder of an existing key", func() {
			_, _, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())

			existing, reserved, err := store.Reserve(ctx, newRecord("key-1", "t2"))
			Expect(err).NotTo(HaveOccurred())
			Expect(reserved).To(BeFalse())
			Expect(existing.Token).To(Equal("t1"))
			Expect(existing.State).To(Equal(idempotency.StateInProgress))
			Expect(existing.Response).To(BeEmpty())
			Expect(existing.LockedAt.Equal(now)).To(BeTrue())
		})
	})

	Describe("Complete", func() {
		It("stores the response for the token holder", func() {
			_, _, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Complete(ctx, "key-1", "t1", json.RawMessage(`{"status":"Authorized"}`))).To(Succeed())

			existing, _, err := store.Reserve(ctx, newRecord("key-1", "t2"))
			Expect(err).NotTo(HaveOccurred())
			Expect(existing.Completed()).To(BeTrue())
			Expect(existing.Response).To(MatchJSON(`{"status":"Authorized"}`))
		})

		It("refuses a stale token", func() {
			_, _, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Complete(ctx, "key-1", "t2", json.RawMessage(`{}`))).To(MatchError(guard.ErrNotFound))
		})
	})

	Describe("TakeOver", func() {
		It("swaps the token only when the stale token still holds the key", func() {
			_, _, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())

			took, err := store.TakeOver(ctx, "t1", newRecord("key-1", "t2"))
			Expect(err).NotTo(HaveOccurred())
			Expect(took).To(BeTrue())

			took, err = store.TakeOver(ctx, "t1", newRecord("key-1", "t3"))
			Expect(err).NotTo(HaveOccurred())
			Expect(took).To(BeFalse())

			Expect(store.Complete(ctx, "key-1", "t2", json.RawMessage(`{}`))).To(Succeed())
		})
	})

	Describe("Release", func() {
		It("deletes the key for the holder of the token", func() {
			_, _, err := store.Reserve(ctx, newRecord("key-1", "t1"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Release(ctx, "key-1", "t2")).To(MatchError(guard.ErrNotFound))

			Expect(store.Release(ctx, "key-1", "t1")).To(Succeed())
			Expect(store.Release(ctx, "key-1", "t1")).To(MatchError(guard.ErrNotFound))

			_, reserved, err := store.Reserve(ctx, newRecord("key-1", "t2"))
			Expect(err).NotTo(HaveOccurred())
			Expect(reserved).To(BeTrue())
		})
	})

	It("backs the guard end to end", func() {
		g := guard.NewGuard(store, guard.Config{PollInterval: 5 * time.Millisecond}, logger.Discard())
		runs := 0
		run := func(context.Context) (json.RawMessage, error) {
			runs++
			return json.RawMessage(`{"id":"abc"}`), nil
		}

		_, replayed, err := g.Execute(ctx, "key-1", "fp", run)
		Expect(err).NotTo(HaveOccurred())
		Expect(replayed).To(BeFalse())

		resp, replayed, err := g.Execute(ctx, "key-1", "fp", run)
		Expect(err).NotTo(HaveOccurred())
		Expect(replayed).To(BeTrue())
		Expect(resp).To(MatchJSON(`{"id":"abc"}`))
		Expect(runs).To(Equal(1))
	})
})
