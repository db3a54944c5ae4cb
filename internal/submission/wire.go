// internal/submission/wire.go
package submission

// Multipart field names shared by the client and the collector.
const (
	FieldSubmissionID = "submission_id"
	FieldComments     = "comments"
	FieldEmail        = "email"
	FieldAttributes   = "attributes"
	FieldCrashLog     = "crash_log"
	FieldCrashLogDate = "crash_log_date"
	FieldAttachment   = "attachment"
)

// reservedFields cannot be used as per-attribute form fields; those
// attributes still travel in the JSON attributes document.
var reservedFields = map[string]bool{
	FieldSubmissionID: true,
	FieldComments:     true,
	FieldEmail:        true,
	FieldAttributes:   true,
	FieldCrashLog:     true,
	FieldCrashLogDate: true,
	FieldAttachment:   true,
}

// IsReservedField reports whether name is one of the fixed multipart fields.
func IsReservedField(name string) bool { return reservedFields[name] }
