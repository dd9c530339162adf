// Package engine содержит ядро оркестрации задач.
//
// Включает:
//   - ref.go      — TaskDef и StepRef (шаг или ссылка на задачу)
//   - registry.go — Registry: регистрация, развёртывание (Resolve), проверка графа
//   - errors.go   — DuplicateTaskError, UnknownTaskError, CyclicReferenceError
//   - template.go — рендеринг Go templates в опциях шагов ({{ .Pkg.name }})
//
// Engine ничего не знает о том, как выполняются шаги: Resolve возвращает
// только имена конкретных шагов, а их выполнением занимается пакет runner.
package engine
