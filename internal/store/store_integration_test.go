// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agora-forum/agora/internal/auth"
	authpg "github.com/agora-forum/agora/internal/auth/postgres"
	"github.com/agora-forum/agora/internal/post"
	postpg "github.com/agora-forum/agora/internal/post/postgres"
	"github.com/agora-forum/agora/internal/store"
)

var _ = Describe("PostgreSQL storage", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
		users     *authpg.UserRepository
		posts     *postpg.PostRepository
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("agora_test"),
			postgres.WithUsername("agora"),
			postgres.WithPassword("agora"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, store.PoolOptions{}, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())

		users = authpg.NewUserRepository(pool)
		posts = postpg.NewPostRepository(pool)
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	BeforeEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE posts, users RESTART IDENTITY CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(name string) *auth.User {
		u, err := auth.NewUser(name, name+"@example.com", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, u)).To(Succeed())
		return u
	}

	Describe("migrations", func() {
		It("round-trips down and up", func() {
			migrator, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			defer migrator.Close()

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
			Expect(dirty).To(BeFalse())

			Expect(migrator.Steps(-1)).To(Succeed())
			pending, err := migrator.PendingMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{2}))

			Expect(migrator.Up()).To(Succeed())
			applied, err := migrator.AppliedMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(Equal([]uint{1, 2}))
		})
	})

	Describe("UserRepository", func() {
		It("assigns ids and finds users by every key", func() {
			u := newUser("alice")
			Expect(u.ID).To(BeNumerically(">", 0))

			byName, err := users.GetByUsername(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(u.ID))

			byEmail, err := users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(u.ID))

			_, err = users.GetByID(ctx, u.ID+100)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("reports which unique field collided", func() {
			newUser("alice")

			dup := &auth.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"}
			err := users.Create(ctx, dup)
			var dupErr *auth.ErrDuplicate
			Expect(errors.As(err, &dupErr)).To(BeTrue())
			Expect(dupErr.Field).To(Equal("username"))

			dup = &auth.User{Username: "bob", Email: "alice@example.com", PasswordHash: "h"}
			err = users.Create(ctx, dup)
			Expect(errors.As(err, &dupErr)).To(BeTrue())
			Expect(dupErr.Field).To(Equal("email"))
		})

		It("prefers the username match", func() {
			alice := newUser("alice")
			newUser("bob")

			found, err := users.FindByUsernameOrEmail(ctx, "alice", "bob@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(alice.ID))
		})

		It("updates the password hash", func() {
			u := newUser("alice")
			Expect(users.UpdatePassword(ctx, u.ID, "new-hash")).To(Succeed())

			got, err := users.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))

			Expect(users.UpdatePassword(ctx, u.ID+100, "x")).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("PostRepository", func() {
		var author *auth.User

		BeforeEach(func() {
			author = newUser("alice")
		})

		create := func(title string, at time.Time) *post.Post {
			p := &post.Post{Title: title, Text: "body", UserID: author.ID, CreatedAt: at, UpdatedAt: at}
			Expect(posts.Create(ctx, p)).To(Succeed())
			return p
		}

		It("pages newest first with tie-breaking on id", func() {
			base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
			for i := range 15 {
				// Pairs of posts share a timestamp.
				create(fmt.Sprintf("post %d", i), base.Add(time.Duration(i/2)*time.Minute))
			}

			count, err := posts.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(15)))

			oldest, err := posts.Oldest(ctx)
			Expect(err).NotTo(HaveOccurred())

			seen := map[int64]bool{}
			var cursor *post.Cursor
			for {
				page, err := posts.List(ctx, cursor, post.MaxPageSize)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(page)).To(BeNumerically("<=", post.MaxPageSize))
				for i, p := range page {
					Expect(seen).NotTo(HaveKey(p.ID))
					seen[p.ID] = true
					if i > 0 {
						prev := page[i-1]
						Expect(!prev.CreatedAt.Before(p.CreatedAt)).To(BeTrue())
					}
				}
				if len(page) == 0 {
					break
				}
				last := page[len(page)-1].Position()
				if last.Equal(oldest.Position()) {
					break
				}
				cursor = &last
			}
			Expect(seen).To(HaveLen(15))
		})

		It("supports timestamp-only cursors", func() {
			base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
			create("old", base)
			create("new", base.Add(time.Minute))

			page, err := posts.List(ctx, &post.Cursor{CreatedAt: base.Add(time.Minute)}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].Title).To(Equal("old"))
		})

		It("updates and deletes", func() {
			p := create("title", time.Now().UTC())

			p.Title = "changed"
			Expect(posts.Update(ctx, p)).To(Succeed())
			got, err := posts.Get(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("changed"))

			Expect(posts.Delete(ctx, p.ID)).To(Succeed())
			Expect(posts.Delete(ctx, p.ID)).To(MatchError(post.ErrNotFound))
			_, err = posts.Oldest(ctx)
			Expect(err).To(MatchError(post.ErrNotFound))
		})
	})
})
