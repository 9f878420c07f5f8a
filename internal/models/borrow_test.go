package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBorrowOverdueClassification(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	borrow := &Borrow{
		Status:             BorrowActive,
		ExpectedReturnDate: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}

	require.True(t, borrow.IsOverdue(now))
	require.Equal(t, 2, borrow.DaysOverdue(now))
	require.Equal(t, BorrowOverdue, borrow.EffectiveStatus(now))
	// Stored status stays active: overdue is derived, never persisted.
	require.Equal(t, BorrowActive, borrow.Status)
}

func TestBorrowDueTodayIsNotOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)

	borrow := &Borrow{
		Status:             BorrowActive,
		ExpectedReturnDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	require.False(t, borrow.IsOverdue(now))
	require.Zero(t, borrow.DaysOverdue(now))
	require.Equal(t, BorrowActive, borrow.EffectiveStatus(now))
}

func TestReturnedBorrowIsNeverOverdue(t *testing.T) {
	now := time.Now()

	borrow := &Borrow{
		Status:             BorrowReturned,
		ExpectedReturnDate: now.AddDate(0, 0, -30),
	}

	require.False(t, borrow.IsOverdue(now))
	require.Equal(t, BorrowReturned, borrow.EffectiveStatus(now))
}

func TestBorrowStatusOpen(t *testing.T) {
	open := []BorrowStatus{BorrowPending, BorrowApproved, BorrowActive}
	for _, status := range open {
		require.True(t, status.Open(), string(status))
	}

	closed := []BorrowStatus{BorrowReturned, BorrowRejected}
	for _, status := range closed {
		require.False(t, status.Open(), string(status))
	}
}

func TestRoleChecks(t *testing.T) {
	admin := Actor{ID: "a1", Role: RoleAdmin}
	borrower := Actor{ID: "u1", Role: RoleRegular}

	require.True(t, admin.CanDecideLoans())
	require.False(t, borrower.CanDecideLoans())

	require.True(t, admin.CanActOn("u1"))
	require.True(t, borrower.CanActOn("u1"))
	require.False(t, borrower.CanActOn("u2"))

	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("superuser").Valid())
}
