package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"tokolite/backend/internal/domain"
)

const dashboardCacheTTL = 2 * time.Minute

func dashboardKey(day string) string {
	return fmt.Sprintf("dashboard:%s", day)
}

// DashboardSummary aggregates today's revenue and transaction count plus
// catalog health. The result is cached briefly; every write path
// invalidates the cache so the numbers are never more than one TTL stale
// even if an invalidation is lost.
func (s *Service) DashboardSummary(ctx context.Context) (*domain.DashboardSummary, error) {
	day := time.Now().UTC().Format("2006-01-02")
	key := dashboardKey(day)

	if cached, found, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("[cache] dashboard read failed: %v", err)
	} else if found {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.DashboardSummary{
		Date:         day,
		ProductCount: len(products),
	}
	for _, product := range products {
		if product.Stock <= s.lowStockThreshold {
			summary.LowStockProducts = append(summary.LowStockProducts, product)
		}
	}
	for _, transaction := range transactions {
		if transaction.Date.UTC().Format("2006-01-02") != day {
			continue
		}
		summary.RevenueToday += transaction.Total
		summary.TransactionsToday++
	}

	if err := s.cache.Set(ctx, key, summary, dashboardCacheTTL); err != nil {
		log.Printf("[cache] dashboard write failed: %v", err)
	}
	return summary, nil
}
