package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type unitOfWork struct {
	tx *sql.Tx
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, tenant_id, location_id, status, version,
			subtotal_minor, tax_minor, total_minor, business_date,
			void_reason, voided_by, updated_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		order.ID, order.TenantID, order.LocationID, string(order.Status), order.Version,
		order.SubtotalMinor, order.TaxMinor, order.TotalMinor, order.BusinessDate,
		order.VoidReason, order.VoidedBy, order.UpdatedBy, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewInvalidState("order", order.ID, "order already exists")
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const selectOrderQuery = `
	SELECT id, tenant_id, location_id, status, version,
	       subtotal_minor, tax_minor, total_minor, business_date,
	       void_reason, voided_by, updated_by, created_at, updated_at
	FROM orders
	WHERE tenant_id = $1 AND id = $2`

func (u *unitOfWork) selectOrder(ctx context.Context, query, tenantID, orderID string) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)

	err := u.tx.QueryRowContext(ctx, query, tenantID, orderID).Scan(
		&order.ID, &order.TenantID, &order.LocationID, &status, &order.Version,
		&order.SubtotalMinor, &order.TaxMinor, &order.TotalMinor, &order.BusinessDate,
		&order.VoidReason, &order.VoidedBy, &order.UpdatedBy, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NewNotFound("order", orderID)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	return order, nil
}

// GetOrder читает заказ без блокировки, для query-пути.
func (u *unitOfWork) GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	return u.selectOrder(ctx, selectOrderQuery, tenantID, orderID)
}

// GetOrderForUpdate читает заказ под строчной блокировкой. Конкурирующая
// команда к тому же заказу встанет в очередь на этой строке и увидит
// состояние после коммита предыдущей.
func (u *unitOfWork) GetOrderForUpdate(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	return u.selectOrder(ctx, selectOrderQuery+`
	FOR UPDATE`, tenantID, orderID)
}

// UpdateOrder инкрементирует версию на стороне базы, а не из прочитанного
// значения. Версия в аргументе игнорируется.
func (u *unitOfWork) UpdateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := u.tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3,
		    subtotal_minor = $4,
		    tax_minor = $5,
		    total_minor = $6,
		    business_date = $7,
		    void_reason = $8,
		    voided_by = $9,
		    updated_by = $10,
		    updated_at = $11,
		    version = version + 1
		WHERE tenant_id = $1 AND id = $2
		RETURNING version
	`,
		order.TenantID, order.ID, string(order.Status),
		order.SubtotalMinor, order.TaxMinor, order.TotalMinor, order.BusinessDate,
		order.VoidReason, order.VoidedBy, order.UpdatedBy, order.UpdatedAt,
	).Scan(&order.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NewNotFound("order", order.ID)
		}
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	return order, nil
}

func (u *unitOfWork) ListLines(ctx context.Context, tenantID, orderID string) ([]domain.OrderLine, error) {
	rows, err := u.tx.QueryContext(ctx, `
		SELECT id, order_id, tenant_id, sort_order, item_id, item_name, sku, item_type,
		       qty, unit_price_minor, line_subtotal_minor, line_tax_minor, line_total_minor,
		       components, created_at
		FROM order_lines
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY sort_order, id
	`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.TenantID, &line.SortOrder,
			&line.ItemID, &line.ItemName, &line.SKU, &line.ItemType,
			&line.Qty, &line.UnitPriceMinor, &line.LineSubtotalMinor,
			&line.LineTaxMinor, &line.LineTotalMinor,
			&line.ComponentsJSON, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (u *unitOfWork) InsertLine(ctx context.Context, line domain.OrderLine) error {
	var components any
	if len(line.ComponentsJSON) > 0 {
		components = line.ComponentsJSON
	}

	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO order_lines (
			id, order_id, tenant_id, sort_order, item_id, item_name, sku, item_type,
			qty, unit_price_minor, line_subtotal_minor, line_tax_minor, line_total_minor,
			components, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		line.ID, line.OrderID, line.TenantID, line.SortOrder,
		line.ItemID, line.ItemName, line.SKU, line.ItemType,
		line.Qty, line.UnitPriceMinor, line.LineSubtotalMinor,
		line.LineTaxMinor, line.LineTotalMinor,
		components, line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func (u *unitOfWork) DeleteLine(ctx context.Context, tenantID, orderID, lineID string) (bool, error) {
	res, err := u.tx.ExecContext(ctx, `
		DELETE FROM order_lines
		WHERE tenant_id = $1 AND order_id = $2 AND id = $3
	`, tenantID, orderID, lineID)
	if err != nil {
		return false, fmt.Errorf("delete order line: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete order line rows affected: %w", err)
	}
	return affected > 0, nil
}

func (u *unitOfWork) InsertTaxLines(ctx context.Context, taxLines []domain.OrderTaxLine) error {
	for _, tl := range taxLines {
		if _, err := u.tx.ExecContext(ctx, `
			INSERT INTO order_tax_lines (
				id, order_id, line_id, tenant_id, tax_name, rate_bps, amount_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			tl.ID, tl.OrderID, tl.LineID, tl.TenantID,
			tl.TaxName, tl.RateBps, tl.AmountMinor, tl.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order tax line: %w", err)
		}
	}
	return nil
}

func (u *unitOfWork) DeleteTaxLinesForLine(ctx context.Context, tenantID, lineID string) error {
	if _, err := u.tx.ExecContext(ctx, `
		DELETE FROM order_tax_lines
		WHERE tenant_id = $1 AND line_id = $2
	`, tenantID, lineID); err != nil {
		return fmt.Errorf("delete tax lines for line: %w", err)
	}
	return nil
}

func (u *unitOfWork) ListCharges(ctx context.Context, tenantID, orderID string) ([]domain.OrderCharge, error) {
	rows, err := u.tx.QueryContext(ctx, `
		SELECT id, order_id, tenant_id, name, amount_minor, tax_amount_minor, created_at
		FROM order_charges
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY created_at, id
	`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order charges: %w", err)
	}
	defer rows.Close()

	charges := make([]domain.OrderCharge, 0)
	for rows.Next() {
		var charge domain.OrderCharge
		if err := rows.Scan(
			&charge.ID, &charge.OrderID, &charge.TenantID, &charge.Name,
			&charge.AmountMinor, &charge.TaxAmountMinor, &charge.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order charge: %w", err)
		}
		charges = append(charges, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order charges: %w", err)
	}

	return charges, nil
}

func (u *unitOfWork) ListDiscounts(ctx context.Context, tenantID, orderID string) ([]domain.OrderDiscount, error) {
	rows, err := u.tx.QueryContext(ctx, `
		SELECT id, order_id, tenant_id, name, amount_minor, created_at
		FROM order_discounts
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY created_at, id
	`, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order discounts: %w", err)
	}
	defer rows.Close()

	discounts := make([]domain.OrderDiscount, 0)
	for rows.Next() {
		var discount domain.OrderDiscount
		if err := rows.Scan(
			&discount.ID, &discount.OrderID, &discount.TenantID, &discount.Name,
			&discount.AmountMinor, &discount.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order discount: %w", err)
		}
		discounts = append(discounts, discount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order discounts: %w", err)
	}

	return discounts, nil
}

func (u *unitOfWork) GetIdempotencyRecord(ctx context.Context, tenantID, clientRequestID string) (domain.IdempotencyRecord, bool, error) {
	var record domain.IdempotencyRecord

	err := u.tx.QueryRowContext(ctx, `
		SELECT tenant_id, client_request_id, command_name, result, expires_at, created_at
		FROM idempotency_records
		WHERE tenant_id = $1 AND client_request_id = $2
	`, tenantID, clientRequestID).Scan(
		&record.TenantID, &record.ClientRequestID, &record.CommandName,
		&record.Result, &record.ExpiresAt, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, false, nil
		}
		return domain.IdempotencyRecord{}, false, fmt.Errorf("get idempotency record: %w", err)
	}

	return record, true, nil
}

// SaveIdempotencyRecord перезаписывает запись по тому же ключу только если та
// уже просрочена: экспирация ленивая, устаревшие строки живут до очистки
// воркером. Живая запись означает, что конкурирующий дубликат успел
// закоммитить результат раньше нас — тогда запись отклоняется, транзакция
// откатывается, а повтор клиента получит кэшированный результат.
func (u *unitOfWork) SaveIdempotencyRecord(ctx context.Context, record domain.IdempotencyRecord) error {
	res, err := u.tx.ExecContext(ctx, `
		INSERT INTO idempotency_records (
			tenant_id, client_request_id, command_name, result, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tenant_id, client_request_id) DO UPDATE
		SET command_name = EXCLUDED.command_name,
		    result = EXCLUDED.result,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
		WHERE idempotency_records.expires_at < EXCLUDED.created_at
	`,
		record.TenantID, record.ClientRequestID, record.CommandName,
		record.Result, record.ExpiresAt, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	if affected == 0 {
		return domain.NewInvalidState("idempotency_record", record.ClientRequestID,
			"a concurrent request with the same client key already committed a result")
	}
	return nil
}

func (u *unitOfWork) InsertOutboxEvent(ctx context.Context, event domain.OutboxEvent) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}

	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO outbox_events (
			id, tenant_id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,'pending',0,$7,$8)
	`,
		event.ID, event.TenantID, event.AggregateType, event.AggregateID,
		event.EventType, event.Payload, event.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
