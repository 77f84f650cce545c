// Package dto defines the REST wire shapes. Every response is wrapped in
// the same envelope so clients branch on success before touching data.
package dto

// Envelope wraps every REST response.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func NewPagination(total, limit, offset int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
