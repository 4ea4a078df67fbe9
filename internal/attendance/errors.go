package attendance

import "ATLAS-backend/internal/platform/apperr"

var (
	ErrNotFound        = apperr.NotFound("ATTENDANCE_NOT_FOUND", "no attendance record")
	ErrNotOpen         = apperr.Conflict("ATTENDANCE_NOT_OPEN", "attendance is already closed")
	ErrClosedForToday  = apperr.Conflict("ATTENDANCE_CLOSED", "attendance for today is closed")
	ErrInvalidOverride = apperr.Invalid("INVALID_OVERRIDE", "invalid duty override")
)
