// Package cli реализует операторский инструмент командной строки.
//
// # Обзор
//
// CLI — утилита для управления расписаниями и ручных прогонов
// планировщика. В отличие от типичного API-клиента, она работает
// напрямую с инфраструктурой (Postgres, RabbitMQ, Redis): движок
// не выставляет собственного HTTP API.
//
// # Ключевые компоненты
//
// ## Env
//
// Окружение команд: конфигурация плюс лениво открываемые
// соединения. Команда каталога не трогает БД, listing расписаний
// не трогает очередь. Close() закрывает всё открытое.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: sellerdesk schedule list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - schedule: list, create, show, delete, enable, disable
//   - jobs: list (каталог типов задач)
//   - tick: один проход планировщика вручную
//   - retry-sweep: перевзвод зависших элементов работы вручную
//
// Ручные tick и retry-sweep берут те же блокировки, что сервис
// планировщика, — столкновение с работающим сервисом исключено.
package cli
