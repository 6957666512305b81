package crdt

// VectorClock хранит логические счетчики по устройствам: deviceID -> counter.
// Отсутствующий ключ эквивалентен нулю.
type VectorClock map[string]int64

// Ordering описывает отношение двух векторных часов
type Ordering int

const (
	// Concurrent - ни одни часы не доминируют (включая равные часы)
	Concurrent Ordering = iota
	// Before - a строго предшествует b
	Before
	// After - b строго предшествует a
	After
)

// String returns the wire name of the ordering
func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// Compare сравнивает две карты причинности.
// Результат Before если a < b, After если b < a, иначе Concurrent.
// Равные часы считаются Concurrent: ничья не должна разрешаться автоматически.
func Compare(a, b VectorClock) Ordering {
	aLessOrEqual := true
	bLessOrEqual := true

	// Объединение ключей обоих часов
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	for k := range keys {
		av, bv := a[k], b[k]
		if av > bv {
			aLessOrEqual = false
		}
		if bv > av {
			bLessOrEqual = false
		}
	}

	switch {
	case aLessOrEqual && !bLessOrEqual:
		return Before
	case bLessOrEqual && !aLessOrEqual:
		return After
	default:
		return Concurrent
	}
}

// Clone returns a deep copy of the clock. A nil clock clones to an empty one.
func (vc VectorClock) Clone() VectorClock {
	result := make(VectorClock, len(vc))
	for k, v := range vc {
		result[k] = v
	}
	return result
}

// Merge поднимает каждый счетчик до максимума из двух часов (in place).
func (vc VectorClock) Merge(other VectorClock) {
	for k, v := range other {
		if v > vc[k] {
			vc[k] = v
		}
	}
}

// Get returns the counter for deviceID, zero when absent
func (vc VectorClock) Get(deviceID string) int64 {
	return vc[deviceID]
}
