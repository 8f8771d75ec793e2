// Package readiness decides when a live room's message history may be
// hydrated, re-rendered or patched with deltas.
//
// Every function is pure and total: the caller supplies a fresh Snapshot on
// each decision and the package keeps no state. Callers must treat a false
// result as a gate and skip the corresponding side effect.
package readiness

// Snapshot is the caller's view of the room at decision time.
type Snapshot struct {
	IsRealtimeActive   bool `json:"is_realtime_active"`
	HasRenderedHistory bool `json:"has_rendered_history"`
	IsRenderingHistory bool `json:"is_rendering_history"`
	HasHistoryMessages bool `json:"has_history_messages"`
	ChatHistoryLoading bool `json:"chat_history_loading"`
	HasRoom            bool `json:"has_room"`
	SettingsChanged    bool `json:"settings_changed"`
}

// ShouldRenderInitialHistory reports whether the one-shot initial history
// render may run. Socket connectivity is deliberately not an input: data
// already fetched must hydrate even while the socket reconnects.
func ShouldRenderInitialHistory(s Snapshot) bool {
	return s.IsRealtimeActive &&
		!s.HasRenderedHistory &&
		!s.IsRenderingHistory &&
		s.HasHistoryMessages &&
		!s.ChatHistoryLoading &&
		s.HasRoom
}

// ShouldRerenderForSettingsChange reports whether a settings change needs a
// fresh render pass. With no history yet there is nothing to re-render.
func ShouldRerenderForSettingsChange(s Snapshot) bool {
	return s.SettingsChanged &&
		s.IsRealtimeActive &&
		s.HasHistoryMessages &&
		(s.HasRenderedHistory || s.IsRenderingHistory)
}

// ShouldProcessHistoryDelta reports whether an incremental history delta
// may be applied. Deltas never land on a render that has not finished its
// first pass.
func ShouldProcessHistoryDelta(s Snapshot) bool {
	return s.IsRealtimeActive &&
		!s.ChatHistoryLoading &&
		s.HasRenderedHistory &&
		!s.IsRenderingHistory &&
		s.HasHistoryMessages
}

// Decision bundles the three predicate results for one snapshot.
type Decision struct {
	RenderInitialHistory bool `json:"render_initial_history"`
	RerenderForSettings  bool `json:"rerender_for_settings"`
	ProcessHistoryDelta  bool `json:"process_history_delta"`
}

// Evaluate runs every predicate against s.
func Evaluate(s Snapshot) Decision {
	return Decision{
		RenderInitialHistory: ShouldRenderInitialHistory(s),
		RerenderForSettings:  ShouldRerenderForSettingsChange(s),
		ProcessHistoryDelta:  ShouldProcessHistoryDelta(s),
	}
}

// flagCount is the number of boolean fields in Snapshot.
const flagCount = 7

// AllSnapshots enumerates every flag combination, 2^7 in total, in a
// stable order (bit i of the index sets the i-th field).
func AllSnapshots() []Snapshot {
	out := make([]Snapshot, 0, 1<<flagCount)
	for i := 0; i < 1<<flagCount; i++ {
		out = append(out, fromBits(i))
	}
	return out
}

func fromBits(i int) Snapshot {
	bit := func(n int) bool { return i&(1<<n) != 0 }
	return Snapshot{
		IsRealtimeActive:   bit(0),
		HasRenderedHistory: bit(1),
		IsRenderingHistory: bit(2),
		HasHistoryMessages: bit(3),
		ChatHistoryLoading: bit(4),
		HasRoom:            bit(5),
		SettingsChanged:    bit(6),
	}
}
