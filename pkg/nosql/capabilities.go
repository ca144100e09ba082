package nosql

// DriverCapabilities is the capability record a driver adapter reports to
// the store/index runtime at open time. The runtime branches on these flags
// instead of type-switching on the concrete backend.
type DriverCapabilities struct {
	// SupportsNativeFTS enables the FTS3/FTS5 MATCH branch in the full-text
	// search layer; when false the runtime falls back to LIKE (SQL variant)
	// or a range scan (indexed variant).
	SupportsNativeFTS bool

	// RequiresUnicodeReplacement flags a driver quirk where U+2028/U+2029 in
	// serialized payloads must be stripped before insertion.
	RequiresUnicodeReplacement bool

	// MaxVariablesPerStatement bounds the number of bound parameters in a
	// single statement; governs put batching. Zero defers to the executor's
	// own MaxVariables.
	MaxVariablesPerStatement int
}
