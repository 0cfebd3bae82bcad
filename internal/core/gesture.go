package core

// Gesture is proof that the current call stack originates from a direct
// user action. Audio analysis sources stay suspended until resumed with
// one; minting it anywhere but an action entry point defeats the gate.
type Gesture struct {
	granted bool
}

// UserGesture mints a gesture token. Call it only inside user-action
// entry points (e.g. the speak toggle), never from network callbacks.
func UserGesture() Gesture {
	return Gesture{granted: true}
}

func (g Gesture) Granted() bool { return g.granted }
