// Package inmemdb implements every repository in memory. It backs the dev
// server when no database is configured, and the service tests.
package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
)

// DB guards all tables with a single lock.
// Transactions are serialized but not isolated: a failing transaction keeps the writes it already made.
type DB struct {
	sync.RWMutex
	txMutex sync.Mutex

	users           map[string]user.User
	roleTransitions []user.RoleTransition
	instructors     map[string]instructor.Instructor
	schools         map[string]school.School
	invitations     map[string]school.Invitation
	resorts         map[string]resort.Resort
	resortRequests  map[string]resort.Request
	rules           map[string]pricing.Rule
	bookings        map[string]booking.Booking
	blocks          map[string]calendar.Block
	deposits        map[string]booking.Deposit
	reviews         map[string]review.Review
	auditEntries    []audit.Entry
}

var _ core.TxRunner = (*DB)(nil)

func Open() *DB {
	return &DB{
		users:          make(map[string]user.User),
		instructors:    make(map[string]instructor.Instructor),
		schools:        make(map[string]school.School),
		invitations:    make(map[string]school.Invitation),
		resorts:        make(map[string]resort.Resort),
		resortRequests: make(map[string]resort.Request),
		rules:          make(map[string]pricing.Rule),
		bookings:       make(map[string]booking.Booking),
		blocks:         make(map[string]calendar.Block),
		deposits:       make(map[string]booking.Deposit),
		reviews:        make(map[string]review.Review),
	}
}

// WithTx runs fn with a nil executor; repositories ignore executors.
func (db *DB) WithTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	return fn(nil)
}

func newID() string { return uuid.New().String() }

func cloneStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return append(make([]string, 0, len(items)), items...)
}

// pageOf slices items according to a page request.
func pageOf[T any](items []T, pr core.PageRequest) []T {
	start, end := pr.Window(len(items))
	return items[start:end]
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
