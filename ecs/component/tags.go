package component

// ListenerTag marks the entity whose transform is the audio listener.
type ListenerTag struct{}

var ListenerTagComponent = NewComponent[ListenerTag]()
