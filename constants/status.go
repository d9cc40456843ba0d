package constants

// DocStatus is the canonical status for a document moving through the pipeline.
type DocStatus string

// Stable values (these exact strings appear in logs and API responses).
const (
	DocStatusReceived    DocStatus = "RECEIVED"     // accepted for processing
	DocStatusExtractOK   DocStatus = "EXTRACT_OK"   // stage 1 completed (text extracted)
	DocStatusStructureOK DocStatus = "STRUCTURE_OK" // stage 2 completed (line items structured)
	DocStatusCompleted   DocStatus = "COMPLETED"    // stage 3 completed (template populated)
	DocStatusFailed      DocStatus = "FAILED"       // terminal failure
)
