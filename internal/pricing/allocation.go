package pricing

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

var (
	// ErrNoComponents — пакет без компонентов распределить нельзя.
	ErrNoComponents = errors.New("package must contain at least one component")
	// ErrInvalidWeight — вес компонента должен быть положительным.
	ErrInvalidWeight = errors.New("component weight must be greater than zero")
	// ErrNegativePrice — отрицательная цена пакета.
	ErrNegativePrice = errors.New("unit price must be non-negative")
)

// AllocatedComponent — компонент пакета с назначенной долей цены.
type AllocatedComponent struct {
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	Weight      int64  `json:"weight"`
	AmountMinor int64  `json:"amount_minor"`
}

// AllocatePackage детерминированно распределяет цену пакетного товара по его
// компонентам пропорционально весам. База — целочисленное деление с полом,
// оставшиеся минимальные единицы раздаются компонентам в каталожном порядке,
// поэтому результат стабилен и воспроизводим для аудита.
// Инвариант: сумма AmountMinor всех компонентов равна unitPriceMinor.
func AllocatePackage(unitPriceMinor int64, components []domain.PackageComponent) ([]AllocatedComponent, error) {
	if unitPriceMinor < 0 {
		return nil, ErrNegativePrice
	}
	if len(components) == 0 {
		return nil, ErrNoComponents
	}

	var totalWeight int64
	for _, component := range components {
		if component.Weight <= 0 {
			return nil, fmt.Errorf("%w: %s=%d", ErrInvalidWeight, component.ItemID, component.Weight)
		}
		totalWeight += component.Weight
	}

	allocated := make([]AllocatedComponent, len(components))
	var assigned int64
	for i, component := range components {
		amount := unitPriceMinor * component.Weight / totalWeight
		allocated[i] = AllocatedComponent{
			ItemID:      component.ItemID,
			Name:        component.Name,
			Weight:      component.Weight,
			AmountMinor: amount,
		}
		assigned += amount
	}

	// Остаток от округления вниз уходит первым компонентам по одной единице.
	for i, leftover := 0, unitPriceMinor-assigned; leftover > 0; leftover-- {
		allocated[i].AmountMinor++
		i = (i + 1) % len(allocated)
	}

	return allocated, nil
}
