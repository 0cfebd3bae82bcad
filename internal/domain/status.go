package domain

// ConnectionStatus is the lifecycle state of a room session.
// connecting is a transient state entered only from disconnected and
// always resolves to connected or disconnected. There is no reconnecting
// state: a dropped connection requires a full new connect.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
