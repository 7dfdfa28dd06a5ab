// internal/core/domain/bar/window.go
package bar

// Window - ограниченное окно последних баров потока. Значение
// неизменяемое: Push возвращает новое окно, не трогая старое.
// Используется детектором как контекст lookback-правил, поэтому
// сериализуется вместе с состоянием.
type Window struct {
	Bars []Bar `json:"bars"`
	Cap  int   `json:"cap"`
}

// NewWindow создает пустое окно на capacity баров
func NewWindow(capacity int) Window {
	if capacity < 1 {
		capacity = 1
	}
	return Window{Bars: nil, Cap: capacity}
}

// Push добавляет бар в конец окна, вытесняя самый старый при переполнении
func (w Window) Push(b Bar) Window {
	bars := make([]Bar, 0, w.Cap)
	start := 0
	if len(w.Bars)+1 > w.Cap {
		start = len(w.Bars) + 1 - w.Cap
	}
	bars = append(bars, w.Bars[start:]...)
	bars = append(bars, b)
	return Window{Bars: bars, Cap: w.Cap}
}

// Len возвращает число баров в окне
func (w Window) Len() int {
	return len(w.Bars)
}

// Last возвращает последний бар окна
func (w Window) Last() (Bar, bool) {
	if len(w.Bars) == 0 {
		return Bar{}, false
	}
	return w.Bars[len(w.Bars)-1], true
}

// Tail возвращает последние n баров окна (или меньше, если их нет)
func (w Window) Tail(n int) []Bar {
	if n <= 0 || len(w.Bars) == 0 {
		return nil
	}
	if n > len(w.Bars) {
		n = len(w.Bars)
	}
	return w.Bars[len(w.Bars)-n:]
}

// MinLow возвращает минимальный low по последним n барам
func (w Window) MinLow(n int) (float64, bool) {
	tail := w.Tail(n)
	if len(tail) == 0 {
		return 0, false
	}
	min := tail[0].Low
	for _, b := range tail[1:] {
		if b.Low < min {
			min = b.Low
		}
	}
	return min, true
}

// MaxHigh возвращает максимальный high по последним n барам
func (w Window) MaxHigh(n int) (float64, bool) {
	tail := w.Tail(n)
	if len(tail) == 0 {
		return 0, false
	}
	max := tail[0].High
	for _, b := range tail[1:] {
		if b.High > max {
			max = b.High
		}
	}
	return max, true
}
