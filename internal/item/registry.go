package item

// Handler constructs items of one or more types from a received item header.
type Handler interface {
	// CreateItem builds an item of the given type from the header's full
	// key/value map.
	CreateItem(typ string, props map[string]interface{}) (Item, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(typ string, props map[string]interface{}) (Item, error)

func (f HandlerFunc) CreateItem(typ string, props map[string]interface{}) (Item, error) {
	return f(typ, props)
}

// Registry maps type tags to the handler that reconstructs items of that
// type. Registration happens before a transfer starts; lookups during one.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register routes the type tag to h. Registering a tag again replaces the
// earlier handler.
func (r *Registry) Register(typ string, h Handler) {
	r.handlers[typ] = h
}

// Find resolves the handler for a type tag.
func (r *Registry) Find(typ string) (Handler, bool) {
	h, ok := r.handlers[typ]
	return h, ok
}
