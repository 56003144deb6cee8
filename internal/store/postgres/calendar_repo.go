package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// CalendarRepo reads resource working hours owned by staff management.
type CalendarRepo struct {
	db *bun.DB
}

func NewCalendarRepo(db *bun.DB) *CalendarRepo {
	return &CalendarRepo{db: db}
}

var _ store.CalendarSource = (*CalendarRepo)(nil)

func (r *CalendarRepo) GetResource(ctx context.Context, tenantID, resourceID string) (domain.Resource, error) {
	var res domain.Resource
	err := r.db.NewSelect().
		Model(&res).
		Relation("Weekly", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("weekday ASC")
		}).
		Relation("Overrides", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("date ASC")
		}).
		Where("resource.tenant_id = ?", tenantID).
		Where("resource.id = ?", resourceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Resource{}, mapError(ctx, err)
	}
	return res, nil
}

// CatalogRepo reads service duration and price for booking snapshots.
type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

var _ store.ServiceCatalog = (*CatalogRepo)(nil)

func (r *CatalogRepo) GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error) {
	var svc domain.Service
	err := r.db.NewSelect().
		Model(&svc).
		Where("tenant_id = ?", tenantID).
		Where("id = ?", serviceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, mapError(ctx, err)
	}
	return svc, nil
}
