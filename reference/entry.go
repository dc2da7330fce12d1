package reference

import "harmonizer/flows"

// CanonicalEntry номенклатурно-корректная запись целевой базы данных.
// Неизменяема; владелец - индекс справочника на время запуска.
type CanonicalEntry struct {
	ID       string     // Уникальный идентификатор в целевой базе
	Name     string     // Каноническое название
	Unit     string     // Референсная единица
	Location string     // Код локации (для процессов)
	Category string     // Категория/компартмент
	Role     flows.Role // Процесс или элементарный поток
}
