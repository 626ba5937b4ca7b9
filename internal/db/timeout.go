package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const timeoutKey = "formgate:statement_timeout"

// statementTimeout bounds each create, query, update, delete and raw
// exec with its own deadline derived from the caller's context. Row
// scans through Rows() are left alone since the caller reads them
// after the statement returns.
type statementTimeout struct {
	timeout time.Duration
}

type pendingTimeout struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (statementTimeout) Name() string { return "formgate:statement_timeout" }

func (p statementTimeout) Initialize(d *gorm.DB) error {
	cb := d.Callback()
	steps := []struct {
		op     string
		before func() error
		after  func() error
	}{
		{"create",
			func() error { return cb.Create().Before("gorm:create").Register("formgate:timeout_start", p.start) },
			func() error { return cb.Create().After("gorm:create").Register("formgate:timeout_end", p.end) }},
		{"query",
			func() error { return cb.Query().Before("gorm:query").Register("formgate:timeout_start", p.start) },
			func() error { return cb.Query().After("gorm:query").Register("formgate:timeout_end", p.end) }},
		{"update",
			func() error { return cb.Update().Before("gorm:update").Register("formgate:timeout_start", p.start) },
			func() error { return cb.Update().After("gorm:update").Register("formgate:timeout_end", p.end) }},
		{"delete",
			func() error { return cb.Delete().Before("gorm:delete").Register("formgate:timeout_start", p.start) },
			func() error { return cb.Delete().After("gorm:delete").Register("formgate:timeout_end", p.end) }},
		{"raw",
			func() error { return cb.Raw().Before("gorm:raw").Register("formgate:timeout_start", p.start) },
			func() error { return cb.Raw().After("gorm:raw").Register("formgate:timeout_end", p.end) }},
	}
	for _, s := range steps {
		if err := s.before(); err != nil {
			return fmt.Errorf("register %s timeout: %w", s.op, err)
		}
		if err := s.after(); err != nil {
			return fmt.Errorf("register %s timeout: %w", s.op, err)
		}
	}
	return nil
}

func (p statementTimeout) start(d *gorm.DB) {
	parent := d.Statement.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	d.InstanceSet(timeoutKey, pendingTimeout{ctx: d.Statement.Context, cancel: cancel})
	d.Statement.Context = ctx
}

func (statementTimeout) end(d *gorm.DB) {
	v, ok := d.InstanceGet(timeoutKey)
	if !ok {
		return
	}
	pending := v.(pendingTimeout)
	pending.cancel()
	d.Statement.Context = pending.ctx
}
