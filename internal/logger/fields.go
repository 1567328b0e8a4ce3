package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID).
	FieldRequestID = "request_id"

	// FieldItemID is the wishlist item being enriched.
	FieldItemID = "item_id"

	// FieldUserID is the acting user ID.
	FieldUserID = "user_id"

	// FieldWishlistID is the parent wishlist ID.
	FieldWishlistID = "wishlist_id"

	// FieldStage is the enrichment pipeline stage name.
	FieldStage = "stage"

	// FieldComponent is the component/module name.
	FieldComponent = "component"
)

// Standard metric fields used for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldStatus is the operation status.
	FieldStatus = "status"
)
