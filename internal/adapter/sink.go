package adapter

// SinkFunc adapts a plain function to a ModeEvent subscriber.
type SinkFunc func(ModeEvent)

func (f SinkFunc) Publish(ev ModeEvent) { f(ev) }
