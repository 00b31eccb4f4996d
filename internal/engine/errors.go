package engine

import "fmt"

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(what, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s %s not found", what, id),
	}
}

func UnknownModuleError(id int64) *AppError {
	return &AppError{
		Code:    "UNKNOWN_MODULE",
		Status:  404,
		Message: fmt.Sprintf("Unknown reader module: %d", id),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

// ConfigurationError reports reader metadata that cannot be executed: a
// missing configuration, an unknown container or element type, or a
// condition list that does not compile.
type ConfigurationError struct {
	ModuleID int64
	ConfigID int64
	Message  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func missingConfigError(moduleID int64) *ConfigurationError {
	return &ConfigurationError{
		ModuleID: moduleID,
		Message:  fmt.Sprintf("The module %d has no valid reader config. Please set one.", moduleID),
	}
}

func configError(cfg configRef, err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		ModuleID: cfg.moduleID,
		ConfigID: cfg.configID,
		Message:  fmt.Sprintf("reader config %d: ", cfg.configID) + fmt.Sprintf(format, args...),
		Err:      err,
	}
}

type configRef struct {
	moduleID int64
	configID int64
}

// TemplateNotFoundError is returned when a template name resolves to nothing.
type TemplateNotFoundError struct {
	Template string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("Unable to find template %q.", e.Template)
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}
