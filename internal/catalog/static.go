// Пакет catalog содержит in-memory реализацию read-only каталога товаров.
// Каталог — внешний коллаборатор движка; в production его заменяет клиент
// каталожного сервиса.
package catalog

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// StaticReader — потокобезопасный каталог с заранее заданными товарами.
type StaticReader struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

// NewStaticReader создаёт каталог с переданными товарами.
func NewStaticReader(items ...domain.CatalogItem) *StaticReader {
	reader := &StaticReader{items: make(map[string]domain.CatalogItem, len(items))}
	for _, item := range items {
		reader.items[item.ID] = item
	}
	return reader
}

// Put добавляет или заменяет товар.
func (r *StaticReader) Put(item domain.CatalogItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

// GetItemForPOS возвращает снимок товара для продажи.
func (r *StaticReader) GetItemForPOS(_ context.Context, _, _, itemID string) (domain.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return domain.CatalogItem{}, domain.NewNotFound("catalog_item", itemID)
	}
	return item, nil
}

// GetEffectivePrice возвращает действующую цену товара.
func (r *StaticReader) GetEffectivePrice(ctx context.Context, tenantID, locationID, itemID string) (int64, error) {
	item, err := r.GetItemForPOS(ctx, tenantID, locationID, itemID)
	if err != nil {
		return 0, err
	}
	return item.UnitPriceMinor, nil
}

// GetSubDepartmentForItem возвращает суб-департамент товара.
func (r *StaticReader) GetSubDepartmentForItem(ctx context.Context, tenantID, itemID string) (string, error) {
	item, err := r.GetItemForPOS(ctx, tenantID, "", itemID)
	if err != nil {
		return "", err
	}
	return item.SubDepartmentID, nil
}

var _ domain.CatalogReader = (*StaticReader)(nil)
