// Package snapshots is the read/consume surface over persisted price
// snapshots: the pricing side pulls pending snapshots from here and
// reports back what it did with them.
package snapshots

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/docstore"
)

var tracer = otel.Tracer("services/snapshots")

type Service struct {
	store      *docstore.Store
	collection string
}

func NewService(store *docstore.Store, collection string) Service {
	return Service{store: store, collection: collection}
}

// LatestByProduct returns the most recent snapshot for a product, or
// nil when the product has never been scraped.
func (s Service) LatestByProduct(ctx context.Context, productID string) (*models.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "LatestByProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID))

	docs, err := s.store.Collection(s.collection).Run(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("productId", "==", productID)},
		OrderBy: "scrapedAt",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query snapshots")
		return nil, fmt.Errorf("latest snapshot for product %q: %w", productID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var snapshot models.Snapshot
	if err := docs[0].Decode(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// NextPending claims the oldest snapshot still waiting for pricing,
// marking it processing so other consumers skip it. Returns (nil, nil)
// when nothing is pending or another consumer got there first.
func (s Service) NextPending(ctx context.Context) (*models.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "NextPending")
	defer span.End()

	docs, err := s.store.Collection(s.collection).Run(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("pricingStatus", "==", string(models.PricingPending))},
		OrderBy: "scrapedAt",
		Limit:   1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query pending snapshots")
		return nil, fmt.Errorf("query pending snapshots: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	candidateID := docs[0].ID

	var claimed *models.Snapshot
	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var snapshot models.Snapshot
		err := tx.Collection(s.collection).Get(ctx, candidateID, &snapshot)
		if err != nil {
			return err
		}
		if snapshot.PricingStatus != models.PricingPending {
			return nil
		}
		snapshot.PricingStatus = models.PricingProcessing
		err = tx.Collection(s.collection).Update(ctx, candidateID, map[string]any{
			"pricingStatus": snapshot.PricingStatus,
		})
		if err != nil {
			return err
		}
		claimed = &snapshot
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim snapshot")
		return nil, fmt.Errorf("claim snapshot %q: %w", candidateID, err)
	}
	if claimed != nil {
		slog.InfoContext(ctx, "snapshot claimed for pricing",
			"snapshot_id", claimed.SnapshotID,
			"product_id", claimed.ProductID)
	}
	return claimed, nil
}

// SetPricingStatus records the outcome of downstream pricing for a
// snapshot. lastError is only stored for a failed status.
func (s Service) SetPricingStatus(ctx context.Context, snapshotID string, status models.PricingStatus, lastError string) error {
	ctx, span := tracer.Start(ctx, "SetPricingStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("snapshot_id", snapshotID),
		attribute.String("status", string(status)),
	)

	switch status {
	case models.PricingPending, models.PricingProcessing, models.PricingCompleted, models.PricingFailed:
	default:
		return fmt.Errorf("invalid pricing status %q", status)
	}

	fields := map[string]any{"pricingStatus": status}
	if status == models.PricingFailed && lastError != "" {
		fields["lastError"] = lastError
	}
	err := s.store.Collection(s.collection).Update(ctx, snapshotID, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update snapshot")
		return fmt.Errorf("set pricing status on %q: %w", snapshotID, err)
	}

	slog.InfoContext(ctx, "pricing status updated",
		"snapshot_id", snapshotID,
		"status", status)
	return nil
}
