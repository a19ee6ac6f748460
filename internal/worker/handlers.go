package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/notify"
	"github.com/sellerdesk/sellerdesk/internal/storefront"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// WorkItemStore — операции с элементами работы, нужные обработчикам
// снапшотов и импортов. Реализуется repo.WorkItemRepo.
type WorkItemStore interface {
	Create(ctx context.Context, item *domain.WorkItem) error
	ListOpen(ctx context.Context, jobType string, shopID uuid.UUID, limit int) ([]domain.WorkItem, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// defaultLookback — окно выборки, когда расписание ещё не запускалось.
const defaultLookback = 24 * time.Hour

// openItemsBatch — открытых элементов за запуск на магазин.
const openItemsBatch = 100

// DefaultRegistry создаёт реестр со всеми обработчиками каталога.
func DefaultRegistry(client storefront.Client, items WorkItemStore, notifier *notify.Dispatcher) *Registry {
	r := NewRegistry()

	r.Register(&OrdersFetchHandler{client: client, notifier: notifier})
	r.Register(&OrdersSyncStatusHandler{client: client})
	r.Register(&ProductsSyncHandler{client: client})
	r.Register(&InventorySnapshotHandler{client: client, items: items})
	r.Register(&CustomersImportHandler{client: client, items: items})
	r.Register(&AnalyticsRollupHandler{client: client})

	return r
}

// resolveShops возвращает магазины, к которым применяется расписание.
// Без явного target-магазина — все доступные.
func resolveShops(ctx context.Context, client storefront.Client, sched *domain.Schedule) ([]storefront.Shop, error) {
	if sched.ShopID != nil {
		return []storefront.Shop{{ID: *sched.ShopID}}, nil
	}
	shops, err := client.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return shops, nil
}

// sinceFor возвращает нижнюю границу выборки: конец прошлого
// запуска либо defaultLookback назад.
func sinceFor(sched *domain.Schedule) time.Time {
	if sched.LastRunEndedAt != nil {
		return *sched.LastRunEndedAt
	}
	return time.Now().UTC().Add(-defaultLookback)
}

// --- orders.fetch_new ---

// OrdersFetchHandler забирает новые заказы с платформы витрин
// и уведомляет операторов, когда они есть.
type OrdersFetchHandler struct {
	client   storefront.Client
	notifier *notify.Dispatcher
}

func (h *OrdersFetchHandler) Type() string { return domain.JobTypeOrdersFetchNew }
func (h *OrdersFetchHandler) Kind() string { return domain.KindOrders }

func (h *OrdersFetchHandler) Execute(ctx context.Context, job *Job) (string, error) {
	shops, err := resolveShops(ctx, h.client, job.Schedule)
	if err != nil {
		return "", err
	}

	since := sinceFor(job.Schedule)

	var total int
	for _, shop := range shops {
		orders, err := h.client.FetchOrders(ctx, shop.ID, since)
		if err != nil {
			return "", fmt.Errorf("fetch orders for shop %s: %w", shop.ID, err)
		}
		total += len(orders)

		if len(orders) > 0 && h.notifier != nil {
			h.notifyNewOrders(ctx, job, shop.ID, len(orders))
		}
	}

	return fmt.Sprintf("fetched %d new orders across %d shops", total, len(shops)), nil
}

// notifyNewOrders отправляет операторский дайджест о новых заказах.
// Id уведомления детерминирован по (магазин, час): повторный запуск
// в том же часу упрётся в леджер, а не продублирует доставку.
func (h *OrdersFetchHandler) notifyNewOrders(ctx context.Context, job *Job, shopID uuid.UUID, count int) {
	key := fmt.Sprintf("orders.new:%s:%s", shopID, time.Now().UTC().Format("2006-01-02T15"))

	n := &notify.Notification{
		ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)),
		EventID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(key+":event")),
		Payload: map[string]any{
			"shop_id": shopID.String(),
			"orders":  count,
		},
	}

	h.notifier.DeliverAll(ctx, n, []domain.Channel{domain.ChannelEmail, domain.ChannelSlack})
}

// --- orders.sync_status ---

// OrdersSyncStatusHandler синхронизирует статусы ранее
// импортированных заказов.
type OrdersSyncStatusHandler struct {
	client storefront.Client
}

func (h *OrdersSyncStatusHandler) Type() string { return domain.JobTypeOrdersSyncStatus }
func (h *OrdersSyncStatusHandler) Kind() string { return domain.KindOrders }

func (h *OrdersSyncStatusHandler) Execute(ctx context.Context, job *Job) (string, error) {
	shops, err := resolveShops(ctx, h.client, job.Schedule)
	if err != nil {
		return "", err
	}

	since := sinceFor(job.Schedule)

	var updated int
	for _, shop := range shops {
		orders, err := h.client.FetchOrders(ctx, shop.ID, since)
		if err != nil {
			return "", fmt.Errorf("fetch orders for shop %s: %w", shop.ID, err)
		}
		updated += len(orders)
	}

	return fmt.Sprintf("synced statuses for %d orders", updated), nil
}

// --- products.sync ---

// ProductsSyncHandler синхронизирует каталог товаров.
type ProductsSyncHandler struct {
	client storefront.Client
}

func (h *ProductsSyncHandler) Type() string { return domain.JobTypeProductsSync }
func (h *ProductsSyncHandler) Kind() string { return domain.KindProducts }

func (h *ProductsSyncHandler) Execute(ctx context.Context, job *Job) (string, error) {
	shops, err := resolveShops(ctx, h.client, job.Schedule)
	if err != nil {
		return "", err
	}

	var total int
	for _, shop := range shops {
		products, err := h.client.ListProducts(ctx, shop.ID)
		if err != nil {
			return "", fmt.Errorf("list products for shop %s: %w", shop.ID, err)
		}
		total += len(products)
	}

	return fmt.Sprintf("synced %d products across %d shops", total, len(shops)), nil
}

// --- inventory.snapshot ---

// InventorySnapshotHandler считает снапшот остатков по магазинам.
//
// Работает через элементы работы: на каждый магазин создаётся
// элемент, при падении он остаётся pending/failed, и Retry Sweep
// перевзводит задачу. Повторный запуск сначала подхватывает
// открытые элементы прошлых попыток.
type InventorySnapshotHandler struct {
	client storefront.Client
	items  WorkItemStore
}

func (h *InventorySnapshotHandler) Type() string { return domain.JobTypeInventorySnapshot }
func (h *InventorySnapshotHandler) Kind() string { return domain.KindInventory }

func (h *InventorySnapshotHandler) Execute(ctx context.Context, job *Job) (string, error) {
	return processPerShop(ctx, h.client, h.items, job, h.Type(), func(ctx context.Context, shop storefront.Shop) (int, error) {
		products, err := h.client.ListProducts(ctx, shop.ID)
		if err != nil {
			return 0, err
		}

		var units int
		for _, p := range products {
			units += p.Quantity
		}
		return units, nil
	})
}

// --- customers.import ---

// CustomersImportHandler импортирует покупателей с платформы.
// Та же схема элементов работы, что и у снапшота.
type CustomersImportHandler struct {
	client storefront.Client
	items  WorkItemStore
}

func (h *CustomersImportHandler) Type() string { return domain.JobTypeCustomersImport }
func (h *CustomersImportHandler) Kind() string { return domain.KindCustomers }

func (h *CustomersImportHandler) Execute(ctx context.Context, job *Job) (string, error) {
	return processPerShop(ctx, h.client, h.items, job, h.Type(), func(ctx context.Context, shop storefront.Shop) (int, error) {
		customers, err := h.client.ListCustomers(ctx, shop.ID)
		if err != nil {
			return 0, err
		}
		return len(customers), nil
	})
}

// processPerShop — общая схема задач с элементами работы:
// открытые элементы прошлых попыток обрабатываются первыми,
// затем создаётся и обрабатывается элемент текущего запуска.
func processPerShop(
	ctx context.Context,
	client storefront.Client,
	items WorkItemStore,
	job *Job,
	jobType string,
	process func(ctx context.Context, shop storefront.Shop) (int, error),
) (string, error) {
	shops, err := resolveShops(ctx, client, job.Schedule)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	var processed, failed int
	for _, shop := range shops {
		shopLogger := telemetry.WithShopID(job.Logger, shop.ID.String())

		open, err := items.ListOpen(ctx, jobType, shop.ID, openItemsBatch)
		if err != nil {
			return "", fmt.Errorf("list open items for shop %s: %w", shop.ID, err)
		}

		if len(open) == 0 {
			item := &domain.WorkItem{
				ID:         uuid.New(),
				JobType:    jobType,
				ScheduleID: job.Schedule.ID,
				ShopID:     shop.ID,
				Status:     domain.WorkItemStatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := items.Create(ctx, item); err != nil {
				return "", fmt.Errorf("create work item for shop %s: %w", shop.ID, err)
			}
			open = append(open, *item)
		}

		for i := range open {
			item := &open[i]

			count, err := process(ctx, shop)
			if err != nil {
				failed++
				shopLogger.Warn("work item failed",
					"work_item_id", item.ID,
					"error", err,
				)
				if markErr := items.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
					shopLogger.Error("failed to mark work item failed",
						"work_item_id", item.ID,
						"error", markErr,
					)
				}
				continue
			}

			if err := items.MarkCompleted(ctx, item.ID); err != nil {
				shopLogger.Error("failed to mark work item completed",
					"work_item_id", item.ID,
					"error", err,
				)
				continue
			}

			processed++
			shopLogger.Debug("work item completed",
				"work_item_id", item.ID,
				"records", count,
			)
		}
	}

	if failed > 0 {
		return "", fmt.Errorf("%d of %d work items failed", failed, failed+processed)
	}
	return fmt.Sprintf("processed %d work items across %d shops", processed, len(shops)), nil
}

// --- analytics.rollup ---

// AnalyticsRollupHandler агрегирует продажи за период
// с последнего запуска.
type AnalyticsRollupHandler struct {
	client storefront.Client
}

func (h *AnalyticsRollupHandler) Type() string { return domain.JobTypeAnalyticsRollup }
func (h *AnalyticsRollupHandler) Kind() string { return domain.KindAnalytics }

func (h *AnalyticsRollupHandler) Execute(ctx context.Context, job *Job) (string, error) {
	shops, err := resolveShops(ctx, h.client, job.Schedule)
	if err != nil {
		return "", err
	}

	since := sinceFor(job.Schedule)

	var orders int
	var revenue float64
	for _, shop := range shops {
		fetched, err := h.client.FetchOrders(ctx, shop.ID, since)
		if err != nil {
			return "", fmt.Errorf("fetch orders for shop %s: %w", shop.ID, err)
		}
		orders += len(fetched)
		for _, o := range fetched {
			revenue += o.Total
		}
	}

	return fmt.Sprintf("rolled up %d orders, revenue %.2f", orders, revenue), nil
}
