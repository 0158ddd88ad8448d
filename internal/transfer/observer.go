package transfer

// Observer receives change notifications from a transfer. Every callback is
// optional. Callbacks run on the goroutine driving the transfer's events and
// must not block it; hand the value to a channel or program if more work is
// needed.
type Observer struct {
	StateChanged      func(State)
	ProgressChanged   func(progress int)
	DeviceNameChanged func(name string)
	ErrorChanged      func(err error)
}

func (o Observer) notifyState(s State) {
	if o.StateChanged != nil {
		o.StateChanged(s)
	}
}

func (o Observer) notifyProgress(progress int) {
	if o.ProgressChanged != nil {
		o.ProgressChanged(progress)
	}
}

func (o Observer) notifyDeviceName(name string) {
	if o.DeviceNameChanged != nil {
		o.DeviceNameChanged(name)
	}
}

func (o Observer) notifyError(err error) {
	if o.ErrorChanged != nil {
		o.ErrorChanged(err)
	}
}
