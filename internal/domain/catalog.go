package domain

import "strings"

// JobTypeInfo — запись каталога типов задач.
//
// Каталог даёт расписанию имя по умолчанию, каденцию по умолчанию
// и kind — семейство задач, по которому берётся блокировка.
// Kind грубее типа: два расписания разных типов одного семейства
// всё равно сериализуются.
type JobTypeInfo struct {
	// Type — тег типа задачи, ключ Dispatch Router.
	Type string

	// Name — отображаемое имя по умолчанию.
	Name string

	// Kind — семейство задач, ключ Overlap Guard.
	Kind string

	// DefaultFrequency — каденция по умолчанию при создании расписания.
	DefaultFrequency Frequency
}

// Типы задач движка синхронизации.
const (
	JobTypeOrdersFetchNew    = "orders.fetch_new"
	JobTypeOrdersSyncStatus  = "orders.sync_status"
	JobTypeProductsSync      = "products.sync"
	JobTypeInventorySnapshot = "inventory.snapshot"
	JobTypeCustomersImport   = "customers.import"
	JobTypeAnalyticsRollup   = "analytics.rollup"
)

// Семейства задач (ключи блокировок).
const (
	KindOrders    = "orders"
	KindProducts  = "products"
	KindInventory = "inventory"
	KindCustomers = "customers"
	KindAnalytics = "analytics"
)

// jobCatalog — статический каталог. Новый тип задачи — новая запись
// здесь плюс регистрация обработчика, без веток в коде движка.
var jobCatalog = []JobTypeInfo{
	{JobTypeOrdersFetchNew, "Fetch new orders", KindOrders, FrequencyEveryMinute},
	{JobTypeOrdersSyncStatus, "Sync order statuses", KindOrders, FrequencyHourly},
	{JobTypeProductsSync, "Sync product catalog", KindProducts, FrequencyHourly},
	{JobTypeInventorySnapshot, "Inventory snapshot", KindInventory, FrequencyDaily},
	{JobTypeCustomersImport, "Import customers", KindCustomers, FrequencyDaily},
	{JobTypeAnalyticsRollup, "Analytics rollup", KindAnalytics, FrequencyDaily},
}

// JobTypes возвращает все записи каталога.
func JobTypes() []JobTypeInfo {
	out := make([]JobTypeInfo, len(jobCatalog))
	copy(out, jobCatalog)
	return out
}

// LookupJobType ищет запись каталога по тегу типа.
func LookupJobType(jobType string) (JobTypeInfo, bool) {
	for _, info := range jobCatalog {
		if info.Type == jobType {
			return info, true
		}
	}
	return JobTypeInfo{}, false
}

// KindFor возвращает семейство для типа задачи.
// Для типов вне каталога — префикс до первой точки,
// чтобы ключ блокировки оставался детерминированным.
func KindFor(jobType string) string {
	if info, ok := LookupJobType(jobType); ok {
		return info.Kind
	}
	if i := strings.IndexByte(jobType, '.'); i > 0 {
		return jobType[:i]
	}
	return jobType
}
