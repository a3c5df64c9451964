package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GetOrCreateCompany returns the oldest company with exactly c.Name, or
// inserts c when there is none.
func (d *DB) GetOrCreateCompany(ctx context.Context, c Company) (Company, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Company{}, errors.New("company name is required")
	}
	var row companyRow
	err := d.db.GetContext(ctx, &row, d.q(`SELECT id, name, industry, employee_count_range, annual_revenue_range, website, created_at
		FROM companies WHERE name = ? ORDER BY created_at ASC LIMIT 1`), name)
	if err == nil {
		return row.toCompany(), nil
	}
	if notFound(err) != ErrNotFound {
		return Company{}, fmt.Errorf("find company: %w", err)
	}

	c.Name = name
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.now().UTC()
	}
	_, err = d.db.ExecContext(ctx, d.q(`INSERT INTO companies
		(id, name, industry, employee_count_range, annual_revenue_range, website, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Industry, c.EmployeeCountRange, c.AnnualRevenueRange, c.Website, timeToString(c.CreatedAt))
	if err != nil {
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	return c, nil
}

func (d *DB) GetCompany(ctx context.Context, id string) (Company, error) {
	var row companyRow
	err := d.db.GetContext(ctx, &row, d.q(`SELECT id, name, industry, employee_count_range, annual_revenue_range, website, created_at
		FROM companies WHERE id = ?`), id)
	if err != nil {
		return Company{}, notFound(err)
	}
	return row.toCompany(), nil
}
