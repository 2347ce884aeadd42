package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const entityTypeOrder = "order"

// fetchForMutation загружает агрегат заказа под блокировкой строки и проверяет
// статусное предусловие операции. Конкурирующие команды к одному заказу
// сериализуются блокировкой строки в объемлющей транзакции; версия агрегата
// продвигается атомарным инкрементом на стороне хранилища и служит клиентам
// наблюдаемым монотонным счётчиком, а не механизмом корректности.
func fetchForMutation(
	ctx context.Context,
	uow domain.UnitOfWork,
	tenantID, orderID string,
	allowedStatuses ...domain.OrderStatus,
) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.NewValidationFailed("order_id is required")
	}

	order, err := uow.GetOrderForUpdate(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for _, status := range allowedStatuses {
		if order.Status == status {
			return order, nil
		}
	}

	return domain.Order{}, domain.NewInvalidState(
		entityTypeOrder,
		orderID,
		fmt.Sprintf("status %q does not allow this operation (allowed: %s)", order.Status, joinStatuses(allowedStatuses)),
	)
}

func joinStatuses(statuses []domain.OrderStatus) string {
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	return strings.Join(parts, "|")
}
