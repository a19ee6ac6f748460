package worker

import "errors"

// ErrNoHandler — нет обработчика для данного типа задачи.
var ErrNoHandler = errors.New("no handler registered")
