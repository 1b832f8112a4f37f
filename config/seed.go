package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"civictrack/models"
	"civictrack/repository"
)

var defaultDepartments = []models.Department{
	{Name: "Public Works", Code: "PUBLIC_WORKS", Categories: []models.IssueCategory{models.CategoryPothole}},
	{Name: "Electrical", Code: "ELECTRICAL", Categories: []models.IssueCategory{models.CategoryStreetlight}},
	{Name: "Sanitation", Code: "SANITATION", Categories: []models.IssueCategory{models.CategoryGarbage}},
	{Name: "Water Supply", Code: "WATER_SUPPLY", Categories: []models.IssueCategory{models.CategoryWater}},
	{Name: "General", Code: "GENERAL", Categories: []models.IssueCategory{models.CategoryOther}},
}

// SeedDepartments creates the default category owners when no department
// exists yet.
func SeedDepartments(ctx context.Context, departments repository.DepartmentRepository) error {
	existing, err := departments.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Debug("skip seeding departments", "count", len(existing))
		return nil
	}

	// Distinct creation times keep the routing order equal to seed order.
	base := time.Now()
	for i, d := range defaultDepartments {
		dept := d.Clone()
		dept.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		if err := departments.Create(ctx, dept); err != nil {
			return fmt.Errorf("seed department %s: %w", d.Name, err)
		}
	}
	slog.Info("seeded departments", "count", len(defaultDepartments))
	return nil
}

// SeedAdmin creates the admin account from ADMIN_EMAIL/ADMIN_PASSWORD.
func SeedAdmin(ctx context.Context, users repository.UserRepository, cfg AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		slog.Warn("skip seeding admin: missing ADMIN_EMAIL/ADMIN_PASSWORD")
		return nil
	}

	_, err := users.FindByEmail(ctx, cfg.Email)
	if err == nil {
		slog.Debug("admin already exists", "email", cfg.Email)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	admin := &models.User{
		Name:     cfg.Name,
		Email:    cfg.Email,
		Password: cfg.Password,
		Role:     models.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("seeded admin", "email", cfg.Email)
	return nil
}
