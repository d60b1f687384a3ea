// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

package models

// BlogCreateRequest is the body of POST /blogs.
type BlogCreateRequest struct {
	Author       string `json:"author" validate:"required,max=128"`
	Content      string `json:"content" validate:"required"`
	Genre        string `json:"genre" validate:"required,max=64"`
	Location     string `json:"location" validate:"required,max=128"`
	ClientMsgID  string `json:"client_msg_id,omitempty" validate:"omitempty,max=36"`
	CreatedAtISO string `json:"created_at_iso,omitempty"`
}

// BlogUpdateRequest is the body of PUT /blogs/{id}.
type BlogUpdateRequest struct {
	Content      string `json:"content" validate:"required"`
	UpdatedAtISO string `json:"updated_at_iso,omitempty"`
}

// BulkDeleteRequest is the body of POST /blogs/bulk-delete.
type BulkDeleteRequest struct {
	IDs []uint64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// BulkUpdateSet names the fields a bulk update may set. At least one must
// carry a value; an empty string means do-not-change, same as absent.
type BulkUpdateSet struct {
	Content  *string `json:"content,omitempty"`
	Genre    *string `json:"genre,omitempty" validate:"omitempty,max=64"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=128"`
}

// Empty reports whether the set carries no value. A field that is present but
// empty counts as unset, since the store treats "" as leave-unchanged.
func (s *BulkUpdateSet) Empty() bool {
	return isUnset(s.Content) && isUnset(s.Genre) && isUnset(s.Location)
}

func isUnset(p *string) bool {
	return p == nil || *p == ""
}

// BulkUpdateRequest is the body of POST /blogs/bulk-update.
type BulkUpdateRequest struct {
	IDs []uint64      `json:"ids" validate:"required,min=1,dive,gt=0"`
	Set BulkUpdateSet `json:"set"`
}

// BlogOut is the API representation of a stored record. ClientMsgID
// serializes as null when the record has no idempotency key.
type BlogOut struct {
	ID           uint64  `json:"id"`
	ClientMsgID  *string `json:"client_msg_id"`
	Author       string  `json:"author"`
	CreatedAtISO string  `json:"created_at_iso"`
	UpdatedAtISO string  `json:"updated_at_iso"`
	Genre        string  `json:"genre"`
	Location     string  `json:"location"`
	Content      string  `json:"content"`
}

// EnqueueResponse is returned by the async create path.
type EnqueueResponse struct {
	Status    string `json:"status"`
	Stream    string `json:"stream"`
	MessageID string `json:"message_id"`
}

// CreateResponse is returned by the sync create path.
type CreateResponse struct {
	Status string `json:"status"`
	ID     uint64 `json:"id"`
}

// StatusResponse is returned by single update and delete operations.
type StatusResponse struct {
	Status string `json:"status"`
	ID     uint64 `json:"id"`
}

// BulkDeleteResponse reports the number of rows removed.
type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// BulkUpdateResponse reports the number of rows changed.
type BulkUpdateResponse struct {
	Updated int64 `json:"updated"`
}

// ErrorBody is the error envelope returned on every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
