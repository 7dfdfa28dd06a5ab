// internal/core/domain/trend/alternation.go
package trend

// AlternationEnforcer - строгое чередование подтвержденных сигналов:
// за стартом аптренда может идти только старт даунтренда и наоборот.
// Подтверждение того же типа, что и последнее, отбрасывается молча,
// режим уже действует.
type AlternationEnforcer struct{}

// NewAlternationEnforcer создает фильтр чередования
func NewAlternationEnforcer() *AlternationEnforcer {
	return &AlternationEnforcer{}
}

// Gate пропускает сигнал, если его тип чередуется с последним
// подтвержденным. Первый сигнал пары проходит всегда.
func (a *AlternationEnforcer) Gate(state PivotState, sig *TrendSignal) *TrendSignal {
	if sig == nil {
		return nil
	}
	if state.LastConfirmedType == sig.Type {
		return nil
	}
	return sig
}
