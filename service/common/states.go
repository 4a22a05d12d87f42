package common

type PoolDropState uint
type SigningRequestState uint

const (
	PoolDropStateOpen PoolDropState = iota
	PoolDropStateFull
	PoolDropStateCancelled
	PoolDropStateExecuted
)

const (
	SigningRequestStateInit SigningRequestState = iota
	SigningRequestStateSent
	SigningRequestStateComplete
	SigningRequestStateFailed
)

func (s PoolDropState) String() string {
	switch s {
	case PoolDropStateOpen:
		return "open"
	case PoolDropStateFull:
		return "full"
	case PoolDropStateCancelled:
		return "cancelled"
	case PoolDropStateExecuted:
		return "executed"
	}
	return "unknown"
}

func (s SigningRequestState) String() string {
	switch s {
	case SigningRequestStateInit:
		return "init"
	case SigningRequestStateSent:
		return "sent"
	case SigningRequestStateComplete:
		return "complete"
	case SigningRequestStateFailed:
		return "failed"
	}
	return "unknown"
}
