package sync

import (
	"errors"
	"fmt"

	"bloodsheltie/internal/domain/record"
)

// Resolve вычисляет диапазоны страниц для запроса, по одному на отслеживаемую категорию.
// Страница из метки запрашивается повторно: при прошлой синхронизации она могла быть
// заполнена не до конца, повторы отсекает IsNew.
// Если журнал приёмника не доходит до страницы из метки, возвращается *DeviceResetError;
// проверяются все категории, несколько сбросов объединяются.
func Resolve(dir Directory, tag SyncTag) ([]PageRange, error) {
	var (
		ranges []PageRange
		resets []error
	)

	for _, t := range record.Tracked() {
		last := tag.ForType(t)

		info, ok := dir.Lookup(t)
		if !ok || info.IsEmpty() {
			if last != nil {
				resets = append(resets, &DeviceResetError{Type: t, TagPage: last.PageNumber, NewestPage: EmptyPage})
			}
			continue
		}

		if info.FirstPage > info.LastPage {
			return nil, fmt.Errorf("%w: %s first page %d after last page %d", ErrInvalidDirectory, t, info.FirstPage, info.LastPage)
		}

		if last == nil {
			ranges = append(ranges, PageRange{FirstPage: info.FirstPage, LastPage: info.LastPage, RecordType: t})
			continue
		}

		if info.LastPage < last.PageNumber {
			resets = append(resets, &DeviceResetError{Type: t, TagPage: last.PageNumber, NewestPage: info.LastPage})
			continue
		}

		// старые страницы могли быть перезаписаны по кругу
		first := max(last.PageNumber, info.FirstPage)
		ranges = append(ranges, PageRange{FirstPage: first, LastPage: info.LastPage, RecordType: t})
	}

	if len(resets) > 0 {
		return nil, errors.Join(resets...)
	}

	return ranges, nil
}
