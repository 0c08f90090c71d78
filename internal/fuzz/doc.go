// Package fuzztests houses Go fuzz harnesses for the parts of gramfuzz that
// decode untrusted bytes: broker frames, core lists, the example harnesses
// and the havoc mutator. They guard against panics and runaway allocation.
//
// Назначение: прогонять произвольные байты через декодеры и мутаторы.
//
// Не делает: запуск интерпретатора грамматик, сетевые соединения, CLI.
//
// Зависимости: internal/engine, internal/frame, internal/harness,
// internal/launcher.
package fuzztests
