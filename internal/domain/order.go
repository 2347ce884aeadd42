package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusOpen — заказ открыт, позиции можно добавлять и удалять.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusPlaced — заказ размещён, состав зафиксирован.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusClosed — заказ закрыт после исполнения.
	OrderStatusClosed OrderStatus = "closed"
	// OrderStatusVoided — заказ аннулирован; терминальный статус.
	OrderStatusVoided OrderStatus = "voided"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPlaced, OrderStatusClosed, OrderStatusVoided:
		return true
	default:
		return false
	}
}

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusVoided || s == OrderStatusClosed
}

// CanTransition проверяет допустимость перехода статуса:
// open → placed → closed; open|placed → voided.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case OrderStatusOpen:
		return to == OrderStatusPlaced || to == OrderStatusVoided
	case OrderStatusPlaced:
		return to == OrderStatusClosed || to == OrderStatusVoided
	default:
		return false
	}
}

// Order — корень агрегата заказа. Итоговые суммы всегда пересчитываются
// из дочерних записей, версия растёт ровно на 1 за каждую зафиксированную мутацию.
type Order struct {
	ID            string
	TenantID      string
	LocationID    string
	Status        OrderStatus
	Version       int64
	SubtotalMinor int64
	TaxMinor      int64
	TotalMinor    int64
	BusinessDate  string
	VoidReason    string
	VoidedBy      string
	UpdatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLine — позиция заказа. Поля товара — снимок каталога на момент добавления,
// не живое соединение. Количество и цена никогда не правятся на месте:
// изменение выражается как удаление плюс повторное добавление.
type OrderLine struct {
	ID                string
	OrderID           string
	TenantID          string
	SortOrder         int32
	ItemID            string
	ItemName          string
	SKU               string
	ItemType          string
	Qty               int32
	UnitPriceMinor    int64
	LineSubtotalMinor int64
	LineTaxMinor      int64
	LineTotalMinor    int64
	// ComponentsJSON хранит снимок распределения цены пакета по компонентам (если товар — пакет).
	ComponentsJSON []byte
	CreatedAt      time.Time
}

// OrderTaxLine — строка налоговой разбивки одной позиции.
type OrderTaxLine struct {
	ID          string
	OrderID     string
	LineID      string
	TenantID    string
	TaxName     string
	RateBps     int64
	AmountMinor int64
	CreatedAt   time.Time
}

// OrderCharge — сервисный сбор заказа (например, сервисный процент).
// Командный движок эти записи не мутирует, но учитывает в итогах.
type OrderCharge struct {
	ID             string
	OrderID        string
	TenantID       string
	Name           string
	AmountMinor    int64
	TaxAmountMinor int64
	CreatedAt      time.Time
}

// OrderDiscount — скидка на заказ; уменьшает итог, в итогах учитывается со знаком минус.
type OrderDiscount struct {
	ID          string
	OrderID     string
	TenantID    string
	Name        string
	AmountMinor int64
	CreatedAt   time.Time
}
