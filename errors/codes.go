package errors

// Category classifies errors by their retry semantics.
type Category string

const (
	CategoryTransient Category = "transient"
	CategoryPermanent Category = "permanent"
	CategoryResource  Category = "resource"
	CategoryInternal  Category = "internal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c Category) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// Code identifies a specific failure.
type Code string

const (
	// Transient
	CodeUnreachable Code = "UNREACHABLE" // Peer could not be reached
	CodeNetwork     Code = "NETWORK_ERR" // Socket level failure
	CodeTimeout     Code = "TIMEOUT"     // Operation timed out

	// Permanent
	CodeClosed         Code = "CLOSED"          // Transport or bus already shut down
	CodeNotInitialized Code = "NOT_INITIALIZED" // Transport could not be constructed
	CodeInvalidAddress Code = "INVALID_ADDRESS" // Address failed to parse
	CodeInvalidInput   Code = "INVALID_INPUT"   // Empty command, bad config value
	CodeAddressInUse   Code = "ADDRESS_IN_USE"  // Listen address already taken
	CodeCanceled       Code = "CANCELED"        // Context canceled

	// Resource
	CodeCapacity  Code = "CAPACITY"     // Inbox or queue full
	CodeRateLimit Code = "RATE_LIMITED" // Outbound limiter rejected the send

	// Internal
	CodeInternal Code = "INTERNAL"
	CodePanic    Code = "PANIC" // Recovered from a handler panic
)

var codeCategories = map[Code]Category{
	CodeUnreachable:    CategoryTransient,
	CodeNetwork:        CategoryTransient,
	CodeTimeout:        CategoryTransient,
	CodeClosed:         CategoryPermanent,
	CodeNotInitialized: CategoryPermanent,
	CodeInvalidAddress: CategoryPermanent,
	CodeInvalidInput:   CategoryPermanent,
	CodeAddressInUse:   CategoryPermanent,
	CodeCanceled:       CategoryPermanent,
	CodeCapacity:       CategoryResource,
	CodeRateLimit:      CategoryResource,
	CodeInternal:       CategoryInternal,
	CodePanic:          CategoryInternal,
}

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the category a code belongs to.
// Unknown codes are treated as internal.
func (c Code) DefaultCategory() Category {
	if cat, ok := codeCategories[c]; ok {
		return cat
	}
	return CategoryInternal
}
