package wire

// MetaDeserializeFunc parses a header-only record for a task type.
// Returns (consumed==0) if more bytes are needed.
type MetaDeserializeFunc func(buf []byte) (SimpleTaskRecord, int, error)

// FullDeserializeFunc parses a header-plus-payload record for a task type.
// Returns (consumed==0) if more bytes are needed.
type FullDeserializeFunc func(buf []byte) (SimpleTaskRecord, []byte, int, error)

// TaskTypeEntry bundles the pair of deserializers the registry keeps per
// taskType byte, mirroring the original orchestrator's
// {metadataDeserializer, fullDeserializer} pair.
type TaskTypeEntry struct {
	Meta MetaDeserializeFunc
	Full FullDeserializeFunc
}

// Registry maps a taskType byte to its deserializer pair. Populated at
// startup; EnsureDefault registers a default entry for SimpleTaskTypeID
// when called on an empty registry. Lookup never registers anything.
type Registry struct {
	entries map[uint8]TaskTypeEntry
}

// NewRegistry returns an empty registry. Call EnsureDefault or Register
// before use.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint8]TaskTypeEntry)}
}

// Register adds or replaces the deserializer pair for taskType.
func (r *Registry) Register(taskType uint8, entry TaskTypeEntry) {
	r.entries[taskType] = entry
}

// EnsureDefault registers the built-in SimpleTask deserializer under
// SimpleTaskTypeID if the registry is currently empty, per spec: "if
// empty, a default simple task deserializer is registered."
func (r *Registry) EnsureDefault() {
	if len(r.entries) > 0 {
		return
	}
	r.Register(SimpleTaskTypeID, TaskTypeEntry{
		Meta: UnmarshalSimpleTaskMeta,
		Full: UnmarshalSimpleTaskFull,
	})
}

// Lookup returns the deserializer pair for taskType, or ErrUnknownTaskType.
func (r *Registry) Lookup(taskType uint8) (TaskTypeEntry, error) {
	e, ok := r.entries[taskType]
	if !ok {
		return TaskTypeEntry{}, ErrUnknownTaskType
	}
	return e, nil
}

// Len reports how many task types are registered.
func (r *Registry) Len() int { return len(r.entries) }
