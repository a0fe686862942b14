package analytics

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	pkgbigquery "github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// SalesRow is one sold order line in the sales table.
type SalesRow struct {
	EventID     string              `bigquery:"event_id"`
	OrderID     string              `bigquery:"order_id"`
	OrderNumber string              `bigquery:"order_number"`
	ProductID   bigquery.NullString `bigquery:"product_id"`
	ProductName string              `bigquery:"product_name"`
	Quantity    int64               `bigquery:"quantity"`
	UnitPrice   string              `bigquery:"unit_price"`
	PaidAt      time.Time           `bigquery:"paid_at"`
}

// SalesRows expands a paid order into one row per line.
func SalesRows(eventID uuid.UUID, evt payloads.OrderStatusChangedEvent) []SalesRow {
	paidAt := evt.ChangedAt.UTC()
	rows := make([]SalesRow, 0, len(evt.Items))
	for _, item := range evt.Items {
		row := SalesRow{
			EventID:     eventID.String(),
			OrderID:     evt.OrderID.String(),
			OrderNumber: evt.OrderNumber,
			ProductName: item.ProductName,
			Quantity:    int64(item.Quantity),
			UnitPrice:   item.UnitPrice,
			PaidAt:      paidAt,
		}
		if item.ProductID != nil {
			row.ProductID = bigquery.NullString{StringVal: item.ProductID.String(), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// SalesTableSpec is the layout used when the sales table is auto-created.
func SalesTableSpec(name string) (pkgbigquery.TableSpec, error) {
	schema, err := bigquery.InferSchema(SalesRow{})
	if err != nil {
		return pkgbigquery.TableSpec{}, err
	}
	return pkgbigquery.TableSpec{Name: name, Schema: schema, PartitionField: "paid_at"}, nil
}
