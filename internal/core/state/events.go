package state

// Event is any typed record appended to the world log by a contract.
// Packages define their own event structs; consumers filter by type.
type Event any

// EventsOfType filters the committed log down to events of type T,
// preserving order.
func EventsOfType[T any](w *World) []T {
	var out []T
	for _, ev := range w.Events() {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
