package xy7z

import "github.com/nguyengg/xy7z/engine"

// OperationState is the bookkeeping of one Update or Extract call.
//
// A new OperationState is created for every call and is only ever touched by the goroutine running that call.
type OperationState struct {
	// Total is the number of items the engine was asked to process.
	Total uint32
	// OldCount is the number of items in the archive being appended to or modified.
	OldCount uint32
	// Bytes is the number of item bytes transferred so far.
	Bytes uint64
	// Current is the highest item index the engine has asked about, or -1 before the first item.
	Current int64
	// Result is the result of the current item.
	Result engine.OperationResult
	// Processed is the number of items whose operation result has been received.
	Processed int
}

func newOperationState(total, oldCount uint32) *OperationState {
	return &OperationState{Total: total, OldCount: oldCount, Current: -1}
}

// advance moves to the item at index. Current never decreases.
func (s *OperationState) advance(index uint32) {
	s.Current = max(s.Current, int64(index))
	s.Result = engine.OpOK
}

func (s *OperationState) finish(res engine.OperationResult) {
	s.Result = res
	s.Processed++
}

func (s *OperationState) addBytes(n int) {
	s.Bytes += uint64(n)
}
