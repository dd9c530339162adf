// Package steps содержит handler'ы конкретных шагов сборки.
//
// # Обзор
//
// Handler — внешний исполнитель шага. Runner знает только имя шага,
// находит по нему handler в Catalog и вызывает Execute. Каждый handler:
//   - Рендерит свои опции через Request.RenderOptions
//   - Выполняет действие (команда, удаление файлов, архив, HTTP запрос)
//   - Возвращает outputs, которые попадают в историю run
//
// # Интерфейс Handler
//
//	type Handler interface {
//	    Type() string
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит:
//   - Step — имя шага ("sass:dist")
//   - Task, RunID — задача и run, в рамках которых выполняется шаг
//   - Options — опции шага из конфигурации, ещё не отрендеренные
//   - Env — окружение запуска (рабочая директория, параметры, package.json)
//
// # Registry и Catalog
//
// Registry хранит handler'ы по типу, Catalog связывает имя шага с типом
// и опциями:
//
//	catalog := steps.NewCatalog(steps.DefaultRegistry())
//	catalog.Bind("clean:dest", steps.Binding{
//	    Type:    steps.StepTypeClean,
//	    Options: map[string]any{"paths": []any{"dest/"}},
//	})
//
//	handler, options, err := catalog.Lookup("clean:dest")
//
// # Встроенные типы
//
//   - exec     — внешняя команда (минификация, линтеры, тесты, релиз)
//   - clean    — удаление файлов и директорий по шаблонам
//   - compress — упаковка файлов в zip
//   - githooks — установка git hooks, вызывающих задачи
//   - http     — HTTP запрос
//   - delay    — пауза
//   - log      — сообщение в лог
//
// Опции каждого типа описаны в документации соответствующей структуры.
//
// # Обработка ошибок
//
//	var (
//	    ErrStepNotFound   // шаг или тип не найден
//	    ErrInvalidConfig  // неверные опции
//	    ErrStepTimeout    // превышен timeout_sec / timeout_ms
//	    ErrStepCancelled  // context отменён
//	    ErrCommandFailed  // команда завершилась с ненулевым кодом
//	    ErrHTTPStatus     // HTTP статус >= 400
//	)
//
// Таймауты — ответственность handler'а. Повторов нет: первая ошибка
// останавливает run.
package steps
