package access

// 以下错误的文本即返回给客户端的响应正文，不应包含任何内部细节。
// 前五个是失败类别，其余都归属其中之一。
var (
	ErrForbidden    = &Outcome{Message: "Access forbidden"}
	ErrInvalidInput = &Outcome{Message: "Invalid input"}
	ErrNotFound     = &Outcome{Message: "The record was not found"}
	ErrConflict     = &Outcome{Message: "Cannot override an existing record"}
	ErrInternal     = &Outcome{Message: "Internal Server Error"}

	ErrInvalidKey    = &Outcome{Kind: ErrInvalidInput, Message: "Invalid hash"}
	ErrInvalidLength = &Outcome{Kind: ErrInvalidInput, Message: "Invalid Content-Length header"}

	ErrTokenNotFound    = &Outcome{Kind: ErrNotFound, Message: "Token not found"}
	ErrTokenIDExists    = &Outcome{Kind: ErrConflict, Message: "Conflict: token id already exists"}
	ErrTokenValueExists = &Outcome{Kind: ErrConflict, Message: "Conflict: token value already exists"}

	ErrReadFailure   = &Outcome{Kind: ErrInternal, Message: "Failed to read cache"}
	ErrCheckFailure  = &Outcome{Kind: ErrInternal, Message: "Failed to check cache"}
	ErrWriteFailure  = &Outcome{Kind: ErrInternal, Message: "Failed to write to cache"}
	ErrAddFailure    = &Outcome{Kind: ErrInternal, Message: "Failed to add token"}
	ErrDeleteFailure = &Outcome{Kind: ErrInternal, Message: "An error occurred while deleting the token"}
)

// Outcome 为一类失败附上面向客户端的具体说明，errors.Is 仍可匹配到 Kind。
// 失败类别本身的 Kind 为 nil。
type Outcome struct {
	Kind    error
	Message string
}

func (o *Outcome) Error() string {
	return o.Message
}

func (o *Outcome) Unwrap() error {
	return o.Kind
}

func invalidInput(message string) error {
	return &Outcome{Kind: ErrInvalidInput, Message: message}
}
