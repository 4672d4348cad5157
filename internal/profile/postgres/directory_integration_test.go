// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

//go:build integration

package postgres_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/savika/savika/internal/profile/postgres"
)

var _ = Describe("Directory", func() {
	var (
		ctx context.Context
		dir *postgres.Directory
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = postgres.NewDirectory(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE profiles`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports unknown emails as absent", func() {
		ok, err := dir.Exists(ctx, "ghost@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("finds an upserted email case-insensitively", func() {
		Expect(dir.Upsert(ctx, "Ana@Example.com")).To(Succeed())

		ok, err := dir.Exists(ctx, "ana@EXAMPLE.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("accepts repeated upserts", func() {
		Expect(dir.Upsert(ctx, "ana@example.com")).To(Succeed())
		Expect(dir.Upsert(ctx, "ana@example.com")).To(Succeed())

		var count int
		Expect(testPool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})
