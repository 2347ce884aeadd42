package domain

// TaxMode определяет способ применения налоговых ставок к позиции.
type TaxMode string

const (
	// TaxModeExclusive — налог добавляется поверх цены позиции.
	TaxModeExclusive TaxMode = "exclusive"
	// TaxModeInclusive — налог уже включён в цену и выделяется из неё.
	TaxModeInclusive TaxMode = "inclusive"
)

// TaxRate — одна налоговая ставка каталога в базисных пунктах (100 bps = 1%).
type TaxRate struct {
	Name    string
	RateBps int64
}

// PackageComponent — именованный компонент пакетного товара.
// Weight задаёт долю компонента при распределении цены пакета.
type PackageComponent struct {
	ItemID string
	Name   string
	Weight int64
}

// CatalogItem — read-only снимок товара из каталога на момент запроса.
// Движок никогда не мутирует состояние каталога.
type CatalogItem struct {
	ID              string
	Name            string
	SKU             string
	ItemType        string
	UnitPriceMinor  int64
	TaxMode         TaxMode
	TaxRates        []TaxRate
	SubDepartmentID string
	Components      []PackageComponent
	Metadata        map[string]string
}

// IsPackage сообщает, является ли товар пакетом из нескольких компонентов.
func (i CatalogItem) IsPackage() bool {
	return len(i.Components) > 0
}
